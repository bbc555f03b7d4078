package payment

import (
	"github.com/smallbiznis/semah/internal/config"
	"github.com/smallbiznis/semah/internal/payment/adapters"
	"github.com/smallbiznis/semah/internal/payment/adapters/stripe"
	"github.com/smallbiznis/semah/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.gateway",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
		)
	}),
	fx.Provide(NewGateway),
)

// NewGateway builds the configured processor gateway.
func NewGateway(cfg config.Config, registry *adapters.Registry, log *zap.Logger) (domain.Gateway, error) {
	gw, err := registry.NewGateway(cfg.Payment.Provider, domain.AdapterConfig{
		SecretKey:     cfg.Payment.StripeSecretKey,
		WebhookSecret: cfg.Payment.StripeWebhookSecret,
		Timeout:       cfg.Payment.GatewayTimeout,
	})
	if err != nil {
		log.Error("payment gateway unavailable", zap.String("provider", cfg.Payment.Provider), zap.Error(err))
		return nil, err
	}
	return gw, nil
}
