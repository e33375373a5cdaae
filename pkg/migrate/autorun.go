package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

type gormHandle interface {
	DB() *gorm.DB
}

// MaybeRunDev applies pending embedded migrations on startup. It only acts
// in the dev environment with ARTISANCRATE_AUTO_MIGRATE set; every other
// environment migrates through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client gormHandle) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	return applyEmbedded(logg.WithField(ctx, "env", cfg.App.Env), logg, sqlDB)
}

func applyEmbedded(ctx context.Context, logg *logger.Logger, sqlDB *sql.DB) error {
	migrations, err := fs.Sub(Embedded, embeddedDir)
	if err != nil {
		return fmt.Errorf("embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	for _, res := range results {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
			"duration_ms": res.Duration.Milliseconds(),
		}), "migration applied")
	}
	if err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	if len(results) == 0 {
		logg.Debug(ctx, "schema already current")
	}
	return nil
}
