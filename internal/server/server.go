package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localink/localink/internal/api"
	"github.com/localink/localink/internal/clock"
	"github.com/localink/localink/internal/config"
	"github.com/localink/localink/internal/geo"
	"github.com/localink/localink/internal/middleware"
	"github.com/localink/localink/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the gin engine with middleware and all routes.
// Useful for tests where you don't need the full HTTP server.
func NewRouter(cfg *config.Config, urls *service.URLManager, analytics *service.Analytics, activity *service.ActivityLog, pinger api.StorePinger, clk clock.Clock, logger *slog.Logger) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := api.NewHandler(urls, analytics, activity, geo.Local{}, pinger, clk, logger, cfg.App.BaseURL, cfg.App.DefaultTTL)
	handler.RegisterRoutes(r)
	return r
}

// NewServer wraps the router in an HTTP server with sane timeouts.
func NewServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
