package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultLogLevel        = "info"
	defaultDatabaseDSN     = "siteproof.db"
	defaultJWTSecret       = "change-me-jwt-secret"
	defaultStorageBackend  = "local"
	defaultStorageDir      = "./data/photos"
	defaultS3Bucket        = "siteproof-photos"
	defaultS3UseSSL        = "true"
	defaultVisionModel     = "claude-3-5-sonnet-20241022"
	defaultVisionWorkers   = "2"
	defaultVisionMaxTokens = "1024"
	defaultMaxUploadMB     = "50"
	defaultChunkSizeMB     = "4"
	defaultStagingDir      = "./data/staging"
	defaultChunkSessionTTL = "24h"
)

// Config carries every runtime knob for the API server. It is loaded once in
// main and passed down explicitly; nothing reads the environment after Load.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	LogLevel    string
	LogFile     string
	DatabaseDSN string
	JWTSecret   string

	// StorageBackend selects where photo bytes live: "local" or "s3".
	StorageBackend string
	StorageDir     string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool

	AnthropicAPIKey string
	VisionModel     string
	VisionWorkers   int
	VisionMaxTokens int

	MaxUploadBytes  int64
	ChunkSizeBytes  int64
	StagingDir      string
	ChunkSessionTTL time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.HTTPAddr = ":" + port
	}

	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))
	cfg.LogFile = strings.TrimSpace(os.Getenv("LOG_FILE"))

	cfg.DatabaseDSN = strings.TrimSpace(getEnv("DATABASE_DSN", defaultDatabaseDSN))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))

	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(getEnv("STORAGE_BACKEND", defaultStorageBackend)))
	cfg.StorageDir = strings.TrimSpace(getEnv("STORAGE_DIR", defaultStorageDir))
	cfg.S3Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	cfg.S3AccessKey = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY"))
	cfg.S3SecretKey = strings.TrimSpace(os.Getenv("S3_SECRET_KEY"))
	cfg.S3Bucket = strings.TrimSpace(getEnv("S3_BUCKET", defaultS3Bucket))
	cfg.S3UseSSL = parseBoolEnv("S3_USE_SSL", defaultS3UseSSL)

	cfg.AnthropicAPIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	cfg.VisionModel = strings.TrimSpace(getEnv("VISION_MODEL", defaultVisionModel))

	var err error
	cfg.VisionWorkers, err = parseIntEnv("VISION_WORKERS", defaultVisionWorkers)
	if err != nil {
		return nil, err
	}
	cfg.VisionMaxTokens, err = parseIntEnv("VISION_MAX_TOKENS", defaultVisionMaxTokens)
	if err != nil {
		return nil, err
	}

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", defaultMaxUploadMB)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) << 20

	chunkSizeMB, err := parseIntEnv("CHUNK_SIZE_MB", defaultChunkSizeMB)
	if err != nil {
		return nil, err
	}
	cfg.ChunkSizeBytes = int64(chunkSizeMB) << 20

	cfg.StagingDir = strings.TrimSpace(getEnv("STAGING_DIR", defaultStagingDir))

	cfg.ChunkSessionTTL, err = parseDurationEnv("CHUNK_SESSION_TTL", defaultChunkSessionTTL)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN must not be empty")
	}
	if cfg.StorageBackend != "local" && cfg.StorageBackend != "s3" {
		return fmt.Errorf("STORAGE_BACKEND must be one of: local, s3")
	}
	if cfg.StorageBackend == "local" && cfg.StorageDir == "" {
		return fmt.Errorf("STORAGE_DIR must not be empty when STORAGE_BACKEND=local")
	}
	if cfg.StorageBackend == "s3" {
		if cfg.S3Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT must be set when STORAGE_BACKEND=s3")
		}
		if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set when STORAGE_BACKEND=s3")
		}
		if cfg.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET must not be empty when STORAGE_BACKEND=s3")
		}
	}
	if cfg.VisionWorkers <= 0 {
		return fmt.Errorf("VISION_WORKERS must be > 0")
	}
	if cfg.VisionMaxTokens <= 0 {
		return fmt.Errorf("VISION_MAX_TOKENS must be > 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be > 0")
	}
	if cfg.ChunkSizeBytes <= 0 {
		return fmt.Errorf("CHUNK_SIZE_MB must be > 0")
	}
	if cfg.StagingDir == "" {
		return fmt.Errorf("STAGING_DIR must not be empty")
	}
	if cfg.ChunkSessionTTL <= 0 {
		return fmt.Errorf("CHUNK_SESSION_TTL must be > 0")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.AnthropicAPIKey == "" {
			return fmt.Errorf("in prod/release ANTHROPIC_API_KEY must be set")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
