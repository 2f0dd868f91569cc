package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/db"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at boot in dev when the
// auto-migrate flag is on. Elsewhere it only warns about pending migrations;
// production schema changes go through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := NewEmbedded(sqlDB, logg)
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "source": "embedded"})

	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		pending, err := m.Pending(ctx)
		if err != nil {
			logg.WarnErr(ctx, "unable to check for pending migrations", err)
			return nil
		}
		if pending {
			logg.Warn(ctx, "database schema is behind the embedded migrations")
		}
		return nil
	}

	logg.Info(ctx, "running migrations (dev auto-run)")
	if err := m.Up(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "migrations completed")
	return nil
}
