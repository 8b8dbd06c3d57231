// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RouteOptimizerConfig provides settings for the external route optimization provider.
type RouteOptimizerConfig interface {
	GetRouteOptimizerURL() string
	GetRouteOptimizerAPIKey() string
	GetRouteOptimizerTimeout() time.Duration
	GetAverageSpeedMph() float64
	IsRouteOptimizerEnabled() bool
}

// VisionConfig provides settings for the detection providers used in load verification.
type VisionConfig interface {
	GetDetectorURL() string
	GetDetectorAPIKey() string
	GetDetectorTimeout() time.Duration
	GetGeminiAPIKey() string
	GetVisionModel() string
	GetConfidenceThreshold() float64
	GetFallbackConfidenceThreshold() float64
	IsVisionFallbackEnabled() bool
}

// StorageConfig provides settings for MinIO S3-compatible storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketVerificationPhotos() string
	IsMinIOEnabled() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                         string
	HTTPAddr                    string
	DatabaseURL                 string
	JWTAccessSecret             string
	CORSAllowAll                bool
	CORSOrigins                 []string
	CORSAllowCreds              bool
	RouteOptimizerURL           string
	RouteOptimizerAPIKey        string
	RouteOptimizerTimeout       time.Duration
	AverageSpeedMph             float64
	DetectorURL                 string
	DetectorAPIKey              string
	DetectorTimeout             time.Duration
	GeminiAPIKey                string
	VisionModel                 string
	ConfidenceThreshold         float64
	FallbackConfidenceThreshold float64
	MinIOEndpoint               string
	MinIOAccessKey              string
	MinIOSecretKey              string
	MinIOUseSSL                 bool
	MinIOMaxFileSize            int64
	MinioBucketVerificationPhotos string
	RedisURL                    string
	RedisTLSInsecure            bool
	AsynqQueueName              string
	AsynqConcurrency            int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RouteOptimizerConfig implementation
func (c *Config) GetRouteOptimizerURL() string           { return c.RouteOptimizerURL }
func (c *Config) GetRouteOptimizerAPIKey() string        { return c.RouteOptimizerAPIKey }
func (c *Config) GetRouteOptimizerTimeout() time.Duration { return c.RouteOptimizerTimeout }
func (c *Config) GetAverageSpeedMph() float64            { return c.AverageSpeedMph }
func (c *Config) IsRouteOptimizerEnabled() bool          { return c.RouteOptimizerURL != "" }

// VisionConfig implementation
func (c *Config) GetDetectorURL() string                   { return c.DetectorURL }
func (c *Config) GetDetectorAPIKey() string                { return c.DetectorAPIKey }
func (c *Config) GetDetectorTimeout() time.Duration        { return c.DetectorTimeout }
func (c *Config) GetGeminiAPIKey() string                  { return c.GeminiAPIKey }
func (c *Config) GetVisionModel() string                   { return c.VisionModel }
func (c *Config) GetConfidenceThreshold() float64          { return c.ConfidenceThreshold }
func (c *Config) GetFallbackConfidenceThreshold() float64  { return c.FallbackConfidenceThreshold }
func (c *Config) IsVisionFallbackEnabled() bool            { return c.GeminiAPIKey != "" }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketVerificationPhotos() string {
	return c.MinioBucketVerificationPhotos
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                         getEnv("APP_ENV", "development"),
		HTTPAddr:                    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                 getEnv("DATABASE_URL", ""),
		JWTAccessSecret:             getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:                corsAllowAll,
		CORSOrigins:                 corsOrigins,
		CORSAllowCreds:              strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RouteOptimizerURL:           getEnv("ROUTE_OPTIMIZER_URL", ""),
		RouteOptimizerAPIKey:        getEnv("ROUTE_OPTIMIZER_API_KEY", ""),
		RouteOptimizerTimeout:       mustDuration(getEnv("ROUTE_OPTIMIZER_TIMEOUT", "8s")),
		AverageSpeedMph:             mustFloat(getEnv("ROUTE_AVERAGE_SPEED_MPH", "30")),
		DetectorURL:                 getEnv("DETECTOR_URL", ""),
		DetectorAPIKey:              getEnv("DETECTOR_API_KEY", ""),
		DetectorTimeout:             mustDuration(getEnv("DETECTOR_TIMEOUT", "20s")),
		GeminiAPIKey:                getEnv("GEMINI_API_KEY", ""),
		VisionModel:                 getEnv("VISION_MODEL", "gemini-2.0-flash"),
		ConfidenceThreshold:         mustFloat(getEnv("VERIFY_CONFIDENCE_THRESHOLD", "0.6")),
		FallbackConfidenceThreshold: mustFloat(getEnv("VERIFY_FALLBACK_CONFIDENCE_THRESHOLD", "0.75")),
		MinIOEndpoint:               getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:              getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:              getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                 strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:            mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "52428800")),
		MinioBucketVerificationPhotos: getEnv("MINIO_BUCKET_VERIFICATION_PHOTOS", "verification-photos"),
		RedisURL:                    getEnv("REDIS_URL", ""),
		RedisTLSInsecure:            strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:              getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:            int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("VERIFY_CONFIDENCE_THRESHOLD must be in (0,1]")
	}
	if cfg.FallbackConfidenceThreshold <= 0 || cfg.FallbackConfidenceThreshold > 1 {
		return nil, fmt.Errorf("VERIFY_FALLBACK_CONFIDENCE_THRESHOLD must be in (0,1]")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
