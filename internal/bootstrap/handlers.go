package bootstrap

import (
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/vinscan/vinscan/internal/framestore"
	"github.com/vinscan/vinscan/internal/metrics"
	"github.com/vinscan/vinscan/internal/scan"
	"github.com/vinscan/vinscan/internal/scanapi"
	"github.com/vinscan/vinscan/internal/scanstore"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideScanHandler(
	manager *scan.Manager,
	scans *scanstore.Store,
	frames *framestore.Store,
	summary *metrics.MemorySink,
	hub *scanapi.Hub,
	logger *slog.Logger,
) *scanapi.Handler {
	return scanapi.NewHandler(manager, scans, frames, summary, hub, logger)
}

func RegisterRoutes(e *echo.Echo, handler *scanapi.Handler, cfg *Config) {
	api := e.Group("/v1")
	api.Use(scanapi.RateLimiter(scanapi.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimitPerSecond,
		Burst:             cfg.RateLimitBurst,
		CleanupInterval:   scanapi.DefaultRateLimiterConfig().CleanupInterval,
	}))
	handler.RegisterRoutes(api)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideScanHandler,
	),
	fx.Invoke(RegisterRoutes),
)
