package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CheckoutConfig holds the redirect paths handed to the payment processor.
// It is hot-reloaded from checkout.yml so URLs can change without a restart.
type CheckoutConfig struct {
	SuccessPath string            `mapstructure:"successPath"`
	CancelPaths map[string]string `mapstructure:"cancelPaths"`
	ViewPaths   map[string]string `mapstructure:"viewPaths"`
}

func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		SuccessPath: "/api/v1/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelPaths: map[string]string{
			"consultation":          "/consultations/cancel",
			"incorporation_service": "/incorporate/cancel",
		},
		ViewPaths: map[string]string{
			"appointment":         "/myDates",
			"incorporation_order": "/myOrders",
		},
	}
}

// CancelPath returns the frontend cancel path for an offering kind.
func (c CheckoutConfig) CancelPath(kind string) string {
	if path, ok := c.CancelPaths[strings.ToLower(strings.TrimSpace(kind))]; ok {
		return path
	}
	return "/"
}

// ViewPath returns the frontend path prefix for a booking kind.
func (c CheckoutConfig) ViewPath(kind string) string {
	if path, ok := c.ViewPaths[strings.ToLower(strings.TrimSpace(kind))]; ok {
		return path
	}
	return ""
}

type CheckoutConfigHolder struct {
	current atomic.Value // holds CheckoutConfig
}

// NewStaticCheckoutConfigHolder returns a holder that never reloads.
func NewStaticCheckoutConfigHolder(cfg CheckoutConfig) *CheckoutConfigHolder {
	holder := &CheckoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCheckoutConfigHolder() (*CheckoutConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("checkout")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/semah")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SEMAH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCheckoutConfig()
	v.SetDefault("checkout.successPath", defaults.SuccessPath)
	v.SetDefault("checkout.cancelPaths", defaults.CancelPaths)
	v.SetDefault("checkout.viewPaths", defaults.ViewPaths)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
	}

	var cfg CheckoutConfig
	if err := v.UnmarshalKey("checkout", &cfg); err != nil {
		return nil, err
	}
	if err := validateCheckoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCheckoutConfigHolder(cfg)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CheckoutConfig
		if err := v.UnmarshalKey("checkout", &updated); err != nil {
			log.Printf("[checkout-config] reload failed: %v", err)
			return
		}
		if err := validateCheckoutConfig(updated); err != nil {
			log.Printf("[checkout-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[checkout-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *CheckoutConfigHolder) Get() CheckoutConfig {
	return h.current.Load().(CheckoutConfig)
}

func validateCheckoutConfig(cfg CheckoutConfig) error {
	if !strings.Contains(cfg.SuccessPath, "{CHECKOUT_SESSION_ID}") {
		return errors.New("checkout.successPath must contain {CHECKOUT_SESSION_ID}")
	}
	if len(cfg.CancelPaths) == 0 {
		return errors.New("checkout.cancelPaths cannot be empty")
	}
	return nil
}
