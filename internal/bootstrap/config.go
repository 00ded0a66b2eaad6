package bootstrap

import (
	"os"
	"strconv"
	"time"

	"github.com/vinscan/vinscan/internal/scan"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TextURL        string
	BarcodeURL     string
	QualityURL     string
	SidecarTimeout time.Duration

	Flags     scan.FeatureFlagSet
	MaxFrames int

	FrameArchiveTTL time.Duration
	ScanRetention   time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		TextURL:        getEnv("TEXT_RECOGNIZER_URL", "http://localhost:50052"),
		BarcodeURL:     getEnv("BARCODE_SCANNER_URL", "http://localhost:50053"),
		QualityURL:     getEnv("QUALITY_ANALYZER_URL", "http://localhost:50054"),
		SidecarTimeout: getEnvDuration("SIDECAR_TIMEOUT", 5*time.Second),

		Flags: scan.FeatureFlagSet{
			ContextFiltering: getEnvBool("CONTEXT_FILTERING", true),
			MultiFrameFusion: getEnvBool("MULTI_FRAME_FUSION", true),
			AdaptiveInterval: getEnvBool("ADAPTIVE_INTERVAL", true),
		},
		MaxFrames: getEnvInt("MAX_FRAMES", 3),

		FrameArchiveTTL: getEnvDuration("FRAME_ARCHIVE_TTL", 10*time.Minute),
		ScanRetention:   getEnvDuration("SCAN_RETENTION", 30*24*time.Hour),

		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
