package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutConfigDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	holder, err := NewCheckoutConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, DefaultCheckoutConfig().SuccessPath, cfg.SuccessPath)
	assert.Equal(t, "/consultations/cancel", cfg.CancelPath("consultation"))
	assert.Equal(t, "/incorporate/cancel", cfg.CancelPath(" Incorporation_Service "))
	assert.Equal(t, "/", cfg.CancelPath("unknown"))
	assert.Equal(t, "/myDates", cfg.ViewPath("appointment"))
}

func TestCheckoutConfigRejectsSuccessPathWithoutPlaceholder(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	body := "checkout:\n  successPath: /done\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkout.yml"), []byte(body), 0o600))

	_, err := NewCheckoutConfigHolder()
	assert.Error(t, err)
}

func TestLoadReadsPaymentSettings(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY_TIMEOUT", "3s")
	t.Setenv("PAYMENT_CURRENCY", "USD")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")

	cfg := Load()
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Equal(t, "3s", cfg.Payment.GatewayTimeout.String())
	assert.Equal(t, "https://app.example.com", cfg.FrontendURL)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
