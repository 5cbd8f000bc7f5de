package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localink/localink/internal/clock"
	"github.com/localink/localink/internal/model"
	"github.com/localink/localink/internal/service"
	"github.com/localink/localink/internal/shortcode"
	"github.com/skip2/go-qrcode"
)

// URLManagerInterface defines the URL record operations the handler needs.
type URLManagerInterface interface {
	Create(ctx context.Context, originalURL, customCode string, ttlMinutes int) (*model.ShortenedURL, error)
	Resolve(ctx context.Context, code string) (*model.ShortenedURL, error)
	List(ctx context.Context, activeOnly bool) ([]model.ShortenedURL, error)
	Deactivate(ctx context.Context, code string) error
	PurgeExpired(ctx context.Context) (int, error)
}

// AnalyticsInterface defines the click analytics operations the handler needs.
type AnalyticsInterface interface {
	RecordClick(ctx context.Context, urlID, referrer, userAgent string, geo *model.GeoInfo) error
	Summary(ctx context.Context, urlID string) (*model.URLAnalytics, error)
	Aggregate(ctx context.Context, urls []model.ShortenedURL) (*model.DashboardStats, error)
}

// ActivityLogInterface defines the log operations the handler needs.
type ActivityLogInterface interface {
	Query(ctx context.Context, filter service.LogFilter) ([]model.LogEntry, error)
	ExportJSON(ctx context.Context) (string, error)
}

// GeoProvider supplies optional location metadata for a click. Absence or
// failure must degrade to a nil GeoInfo, never fail the click record.
type GeoProvider interface {
	Locate(ctx context.Context, clientIP string) *model.GeoInfo
}

// StorePinger checks store connectivity for health reporting.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// Handler holds HTTP handlers and dependencies. It receives interfaces
// rather than concrete implementations for testability.
type Handler struct {
	urls       URLManagerInterface
	analytics  AnalyticsInterface
	activity   ActivityLogInterface
	geo        GeoProvider
	store      StorePinger
	clock      clock.Clock
	logger     *slog.Logger
	baseURL    string
	defaultTTL time.Duration
}

// NewHandler creates a new handler instance with the provided dependencies.
// geo may be nil when no location provider is configured.
func NewHandler(urls URLManagerInterface, analytics AnalyticsInterface, activity ActivityLogInterface, geo GeoProvider, store StorePinger, clk clock.Clock, logger *slog.Logger, baseURL string, defaultTTL time.Duration) *Handler {
	return &Handler{
		urls:       urls,
		analytics:  analytics,
		activity:   activity,
		geo:        geo,
		store:      store,
		clock:      clk,
		logger:     logger,
		baseURL:    baseURL,
		defaultTTL: defaultTTL,
	}
}

// RegisterRoutes registers all route definitions on the given Gin engine.
// The caller is responsible for creating the engine and adding middleware
// before calling this method, so middleware runs in the correct order.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/shorten", h.createShortURL)
		v1.GET("/urls", h.listURLs)
		v1.GET("/urls/:code", h.getURL)
		v1.DELETE("/urls/:code", h.deactivateURL)
		v1.GET("/urls/:code/analytics", h.getAnalytics)
		v1.GET("/urls/:code/qr", h.qrCode)
		v1.POST("/purge", h.purgeExpired)
		v1.GET("/stats", h.stats)
		v1.GET("/logs", h.queryLogs)
		v1.GET("/logs/export", h.exportLogs)
	}

	// Redirect route (public) - must be last to avoid conflicts
	r.GET("/:code", h.redirect)
}

// healthCheck handles GET /health
func (h *Handler) healthCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": gin.H{"store": "down"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": gin.H{"store": "up"}})
}

// createShortURL handles POST /api/v1/shorten
// Response codes:
//   - 201 Created: short URL successfully created
//   - 400 Bad Request: invalid body, URL, TTL, or custom code format
//   - 409 Conflict: custom code already in use
//   - 500 Internal Server Error: keyspace exhaustion or storage failure
func (h *Handler) createShortURL(c *gin.Context) {
	ctx := c.Request.Context()
	var req model.CreateURLRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ttl := req.TTLMinutes
	if ttl == 0 {
		ttl = int(h.defaultTTL / time.Minute)
	}

	record, err := h.urls.Create(ctx, req.URL, req.CustomCode, ttl)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			h.errorResponse(c, http.StatusBadRequest, "Invalid URL")
		case errors.Is(err, service.ErrInvalidTTL):
			h.errorResponse(c, http.StatusBadRequest, "TTL must be greater than zero")
		case errors.Is(err, shortcode.ErrInvalidFormat):
			h.errorResponse(c, http.StatusBadRequest, "Custom code must be 3-20 alphanumeric characters")
		case errors.Is(err, shortcode.ErrCodeTaken):
			h.errorResponse(c, http.StatusConflict, "Custom code already in use")
		case errors.Is(err, shortcode.ErrExhausted):
			h.logger.ErrorContext(ctx, "short code keyspace exhausted")
			h.errorResponse(c, http.StatusInternalServerError, "Could not generate a unique short code")
		default:
			h.logger.ErrorContext(ctx, "unexpected error creating short URL",
				slog.String("error", err.Error()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.JSON(http.StatusCreated, h.urlResponse(c, record))
}

// listURLs handles GET /api/v1/urls?active=true
func (h *Handler) listURLs(c *gin.Context) {
	ctx := c.Request.Context()
	activeOnly := c.Query("active") == "true"

	records, err := h.urls.List(ctx, activeOnly)
	if err != nil {
		h.logger.ErrorContext(ctx, "unexpected error listing URLs", slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]model.URLResponse, 0, len(records))
	for i := range records {
		out = append(out, h.urlResponse(c, &records[i]))
	}
	c.JSON(http.StatusOK, gin.H{"urls": out, "count": len(out)})
}

// getURL handles GET /api/v1/urls/:code
// Response codes:
//   - 200 OK: URL metadata retrieved successfully
//   - 404 Not Found: short code does not exist
//   - 410 Gone: URL has expired or was deactivated
func (h *Handler) getURL(c *gin.Context) {
	code := c.Param("code")

	record, err := h.resolveOrFail(c, code)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, h.urlResponse(c, record))
}

// deactivateURL handles DELETE /api/v1/urls/:code
func (h *Handler) deactivateURL(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	if err := h.urls.Deactivate(ctx, code); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			h.errorResponse(c, http.StatusNotFound, "URL not found")
		default:
			h.logger.ErrorContext(ctx, "unexpected error deactivating URL",
				slog.String("error", err.Error()),
				slog.String("code", code))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// getAnalytics handles GET /api/v1/urls/:code/analytics
func (h *Handler) getAnalytics(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	record, err := h.resolveOrFail(c, code)
	if err != nil {
		return
	}

	summary, err := h.analytics.Summary(ctx, record.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "unexpected error fetching analytics",
			slog.String("error", err.Error()),
			slog.String("code", code))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// qrCode handles GET /api/v1/urls/:code/qr
// Returns a PNG QR code pointing at the short link.
func (h *Handler) qrCode(c *gin.Context) {
	code := c.Param("code")

	if _, err := h.resolveOrFail(c, code); err != nil {
		return
	}

	png, err := qrcode.Encode(h.baseURL+"/"+code, qrcode.Medium, 256)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to generate QR code",
			slog.String("error", err.Error()),
			slog.String("code", code))
		h.errorResponse(c, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	c.Header("Content-Disposition", "inline; filename=qrcode.png")
	c.Data(http.StatusOK, "image/png", png)
}

// purgeExpired handles POST /api/v1/purge
func (h *Handler) purgeExpired(c *gin.Context) {
	ctx := c.Request.Context()

	removed, err := h.urls.PurgeExpired(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "unexpected error purging URLs", slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"purged": removed})
}

// stats handles GET /api/v1/stats
func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()

	records, err := h.urls.List(ctx, false)
	if err != nil {
		h.logger.ErrorContext(ctx, "unexpected error listing URLs", slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	stats, err := h.analytics.Aggregate(ctx, records)
	if err != nil {
		h.logger.ErrorContext(ctx, "unexpected error aggregating stats", slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// queryLogs handles GET /api/v1/logs?level=&q=
func (h *Handler) queryLogs(c *gin.Context) {
	ctx := c.Request.Context()

	entries, err := h.activity.Query(ctx, service.LogFilter{
		Level:      c.Query("level"),
		SearchText: c.Query("q"),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "unexpected error querying logs", slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// exportLogs handles GET /api/v1/logs/export
func (h *Handler) exportLogs(c *gin.Context) {
	ctx := c.Request.Context()

	data, err := h.activity.ExportJSON(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "unexpected error exporting logs", slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=activity-log.json")
	c.Data(http.StatusOK, "application/json", []byte(data))
}

// redirect handles GET /:code
// Resolves the short code, records a click event, and redirects.
// Response codes:
//   - 302 Found: redirects to the original URL
//   - 404 Not Found: short code does not exist
//   - 410 Gone: URL has expired or was deactivated
func (h *Handler) redirect(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	record, err := h.resolveOrFail(c, code)
	if err != nil {
		return
	}

	var geo *model.GeoInfo
	if h.geo != nil {
		geo = h.geo.Locate(ctx, c.ClientIP())
	}
	if err := h.analytics.RecordClick(ctx, record.ID, c.Request.Referer(), c.Request.UserAgent(), geo); err != nil {
		// The redirect must still happen; losing one click beats a 500.
		h.logger.ErrorContext(ctx, "failed to record click",
			slog.String("error", err.Error()),
			slog.String("code", code))
	}

	c.Redirect(http.StatusFound, record.OriginalURL)
}

// resolveOrFail resolves a short code or writes the mapped error response
// and returns a non-nil error so callers can bail out.
func (h *Handler) resolveOrFail(c *gin.Context, code string) (*model.ShortenedURL, error) {
	ctx := c.Request.Context()

	record, err := h.urls.Resolve(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			h.errorResponse(c, http.StatusNotFound, "URL not found")
		case errors.Is(err, service.ErrExpired):
			h.errorResponse(c, http.StatusGone, "URL has expired")
		default:
			h.logger.ErrorContext(ctx, "unexpected error resolving URL",
				slog.String("error", err.Error()),
				slog.String("code", code))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return nil, err
	}
	return record, nil
}

// urlResponse builds the API representation of a record, including its
// click count and derived active flag.
func (h *Handler) urlResponse(c *gin.Context, record *model.ShortenedURL) model.URLResponse {
	var clicks int64
	if summary, err := h.analytics.Summary(c.Request.Context(), record.ID); err == nil {
		clicks = summary.ClickCount
	}
	return model.URLResponse{
		ID:          record.ID,
		ShortCode:   record.ShortCode,
		OriginalURL: record.OriginalURL,
		ShortURL:    h.baseURL + "/" + record.ShortCode,
		CreatedAt:   record.CreatedAt.Format(time.RFC3339),
		ExpiresAt:   record.ExpiresAt.Format(time.RFC3339),
		IsActive:    record.Active(h.clock.Now()),
		ClickCount:  clicks,
	}
}

// errorResponse sends a standardized JSON error response.
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, model.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
