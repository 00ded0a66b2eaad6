package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/vinscan/vinscan/internal/framestore"
	"github.com/vinscan/vinscan/internal/metrics"
	"github.com/vinscan/vinscan/internal/recognition"
	"github.com/vinscan/vinscan/internal/scan"
	"github.com/vinscan/vinscan/internal/scanapi"
	"github.com/vinscan/vinscan/internal/scanstore"
)

func ProvideRecognitionClient(cfg *Config) *recognition.Client {
	return recognition.NewClient(recognition.Config{
		TextURL:    cfg.TextURL,
		BarcodeURL: cfg.BarcodeURL,
		QualityURL: cfg.QualityURL,
		Timeout:    cfg.SidecarTimeout,
	})
}

func ProvideMemorySink() *metrics.MemorySink {
	return metrics.NewMemorySink(0)
}

func ProvideMetricsSink(memory *metrics.MemorySink, redisClient *redis.Client, logger *slog.Logger) metrics.Sink {
	return metrics.Fanout{
		memory,
		metrics.NewSlogSink(logger),
		metrics.NewRedisSink(redisClient, logger),
	}
}

func ProvideHub(logger *slog.Logger) *scanapi.Hub {
	return scanapi.NewHub(logger)
}

func ProvideManager(
	cfg *Config,
	client *recognition.Client,
	sink metrics.Sink,
	frames *framestore.Store,
	hub *scanapi.Hub,
	logger *slog.Logger,
) *scan.Manager {
	return scan.NewManager(scan.ManagerConfig{
		Flags:     cfg.Flags,
		MaxFrames: cfg.MaxFrames,
		Text:      client,
		Barcode:   client,
		Quality:   client,
		Metrics:   sink,
		Archiver:  frames,
		Notifier:  hub,
		Log:       logger,
	})
}

// StartRetentionSweeper prunes persisted scans past the retention window
// once an hour.
func StartRetentionSweeper(lc fx.Lifecycle, cfg *Config, store *scanstore.Store, logger *slog.Logger) {
	log := logger.With("component", "retention-sweeper")
	stop := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(time.Hour)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
						dropped, err := store.DeleteOld(sweepCtx, cfg.ScanRetention)
						cancel()
						if err != nil {
							log.Error("retention sweep failed", "error", err)
						} else if dropped > 0 {
							log.Info("retention sweep", "dropped", dropped)
						}
					case <-stop:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return nil
		},
	})
}

var EngineModule = fx.Options(
	fx.Provide(
		ProvideRecognitionClient,
		ProvideMemorySink,
		ProvideMetricsSink,
		ProvideHub,
		ProvideManager,
	),
	fx.Invoke(StartRetentionSweeper),
)
