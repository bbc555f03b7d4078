package seed

import (
	"context"
	"time"

	"github.com/smallbiznis/semah/internal/config"
	"github.com/smallbiznis/semah/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, verifier *identity.Verifier, log *zap.Logger) {
	if !cfg.SeedDemoData || cfg.IsProduction() {
		return
	}
	log = log.Named("seed")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := EnsureDemoData(ctx, db); err != nil {
				return err
			}
			fields := []zap.Field{zap.String("client_id", DemoClientID.String())}
			if token, err := verifier.Issue(identity.Principal{ID: DemoClientID, Role: identity.RoleClient}, 24*time.Hour); err == nil {
				fields = append(fields, zap.String("client_token", token))
			}
			log.Info("demo data ready", fields...)
			return nil
		},
	})
}
