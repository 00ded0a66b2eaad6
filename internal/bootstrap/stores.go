package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/vinscan/vinscan/internal/framestore"
	"github.com/vinscan/vinscan/internal/scanstore"
)

func ProvideScanStore(db *gorm.DB) *scanstore.Store {
	return scanstore.NewStore(db)
}

func ProvideFrameStore(redisClient *redis.Client, cfg *Config) *framestore.Store {
	return framestore.NewStore(redisClient, cfg.FrameArchiveTTL)
}

func RunMigrations(scanStore *scanstore.Store) error {
	return scanStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideScanStore,
		ProvideFrameStore,
	),
	fx.Invoke(RunMigrations),
)
