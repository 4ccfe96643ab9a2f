package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageDriverS3         = "s3"
	StorageDriverFilesystem = "filesystem"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	DBMaxConns        int
	DBConnectTimeout  time.Duration
	DBApplicationName string
	AutoMigrate       bool

	GoogleAPIKey        string
	VeoModel            string
	VeoBaseURL          string
	VeoHTTPTimeout      time.Duration
	VeoDownloadTimeout  time.Duration
	IllustrationTimeout time.Duration

	StorageDriver     string
	StorageBucket     string
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StoragePublicURL  string
	StorageRegion     string
	StorageSignedTTL  time.Duration
	StoragePath       string
	StorageBaseURL    string
	CORSAllowedOrigin []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	WorkerInterval   time.Duration
	WorkerStaleAfter time.Duration
	WorkerBatch      int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              port,
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 10),
		DBConnectTimeout:  time.Second * time.Duration(getEnvInt("DB_CONNECT_TIMEOUT_SECONDS", 10)),
		DBApplicationName: getEnv("DB_APPLICATION_NAME", "planner"),
		AutoMigrate:       getEnvBool("DB_AUTO_MIGRATE", true),

		GoogleAPIKey:        firstEnv("GOOGLE_API_KEY", "GEMINI_API_KEY", "GOOGLE_GENERATIVE_AI_API_KEY"),
		VeoModel:            getEnv("GOOGLE_VEO_MODEL", "veo-3.1-generate-preview"),
		VeoBaseURL:          getEnv("VEO_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VeoHTTPTimeout:      time.Second * time.Duration(getEnvInt("VEO_HTTP_TIMEOUT_SECONDS", 60)),
		VeoDownloadTimeout:  time.Second * time.Duration(getEnvInt("VEO_DOWNLOAD_TIMEOUT_SECONDS", 300)),
		IllustrationTimeout: time.Second * time.Duration(getEnvInt("ILLUSTRATION_FETCH_TIMEOUT_SECONDS", 30)),

		StorageDriver:     strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverS3)),
		StorageBucket:     os.Getenv("STORAGE_BUCKET"),
		StorageEndpoint:   os.Getenv("STORAGE_URL"),
		StorageAccessKey:  os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:  os.Getenv("STORAGE_SECRET_KEY"),
		StoragePublicURL:  os.Getenv("STORAGE_PUBLIC_URL"),
		StorageRegion:     getEnv("STORAGE_REGION", "us-east-1"),
		StorageSignedTTL:  time.Second * time.Duration(getEnvInt("STORAGE_SIGNED_URL_TTL_SECONDS", 3600)),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		CORSAllowedOrigin: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		WorkerInterval:   time.Second * time.Duration(getEnvInt("WORKER_INTERVAL_SECONDS", 15)),
		WorkerStaleAfter: time.Second * time.Duration(getEnvInt("WORKER_STALE_AFTER_SECONDS", 30)),
		WorkerBatch:      getEnvInt("WORKER_BATCH", 10),
	}

	if cfg.StoragePublicURL == "" {
		cfg.StoragePublicURL = cfg.StorageEndpoint
	}

	if cfg.DBMaxConns <= 0 {
		cfg.DBMaxConns = 10
	}
	if cfg.DBConnectTimeout <= 0 {
		cfg.DBConnectTimeout = 10 * time.Second
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.StorageDriver {
	case StorageDriverS3:
		if cfg.StorageBucket == "" {
			return nil, fmt.Errorf("STORAGE_BUCKET must be set to upload files")
		}
		if cfg.StorageEndpoint == "" {
			return nil, fmt.Errorf("STORAGE_URL must be set to upload files")
		}
		if _, err := url.Parse(cfg.StoragePublicURL); err != nil {
			return nil, fmt.Errorf("STORAGE_PUBLIC_URL is invalid: %w", err)
		}
		if cfg.StorageAccessKey == "" || cfg.StorageSecretKey == "" {
			return nil, fmt.Errorf("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY must be set to upload files")
		}
	case StorageDriverFilesystem:
		if strings.TrimSpace(cfg.StoragePath) == "" {
			return nil, fmt.Errorf("STORAGE_PATH is required for the filesystem driver")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
