package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("offering_kind", "consultation"),
		attribute.String("client_id", "456"),
		attribute.String("outcome", "fulfilled"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("offering_kind"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCheckoutInitiated(context.Background(), "consultation", "paid")
		m.RecordCheckoutCompleted(context.Background(), "stripe", "fulfilled")
		m.RecordFulfillmentFailed(context.Background(), "unknown")
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "semah"}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordCheckoutInitiated(context.Background(), "incorporation_service", "free")
		m.RecordNotificationQueued(context.Background(), "enqueued")
	})
}
