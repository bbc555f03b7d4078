package observability

import (
	"testing"

	"github.com/smallbiznis/semah/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "")
	t.Setenv("OTEL_ENABLED", "")

	cfg := LoadConfig(config.Config{AppName: "semah", Environment: "development"})
	assert.Equal(t, "semah", cfg.ServiceName)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())

	prod := LoadConfig(config.Config{Environment: "production"})
	assert.True(t, prod.OtelEnabled)
	assert.Equal(t, 0.1, prod.OtelSamplingRatio)
}

func TestLoadConfigClampsSamplingRatio(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "4")
	cfg := LoadConfig(config.Config{Environment: "development"})
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
}
