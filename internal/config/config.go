package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backend names accepted by STORE_BACKEND.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	App    AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend  string // "memory", "file" or "redis"
	DataDir  string // file backend only
	Host     string // redis backend only
	Port     string
	Password string
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	BaseURL          string // Base URL for generating short links
	Environment      string // "development" or "production"
	ShortCodeLen     int
	ShortCodeRetries int
	DefaultTTL       time.Duration
	LogMaxEntries    int
	PurgeInterval    time.Duration // 0 disables the background sweep
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Store: StoreConfig{
			Backend:  getEnv("STORE_BACKEND", BackendFile),
			DataDir:  getEnv("DATA_DIR", "./data"),
			Host:     getEnv("RDB_HOST", "localhost"),
			Port:     getEnv("RDB_PORT", "6379"),
			Password: getEnv("RDB_PASSWORD", ""),
		},
		App: AppConfig{
			BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
			Environment:      getEnv("ENVIRONMENT", "development"),
			ShortCodeLen:     getEnvInt("SHORT_CODE_LENGTH", 6),
			ShortCodeRetries: getEnvInt("SHORT_CODE_MAX_RETRIES", 10),
			DefaultTTL:       time.Duration(getEnvInt("DEFAULT_TTL_MINUTES", 30)) * time.Minute,
			LogMaxEntries:    getEnvInt("LOG_MAX_ENTRIES", 1000),
			PurgeInterval:    time.Duration(getEnvInt("PURGE_INTERVAL_SECONDS", 300)) * time.Second,
		},
	}

	switch cfg.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return cfg, nil
}

// RedisConnectionString returns the redis connection string for the store.
func (s *StoreConfig) RedisConnectionString() string {
	if s.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%s/0", s.Password, s.Host, s.Port)
	}
	return fmt.Sprintf("redis://%s:%s/0", s.Host, s.Port)
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
