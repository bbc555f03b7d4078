package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPaymentIdentifiers(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/v1/checkout/complete"),
		attribute.String("session_id", "cs_test_1"),
		attribute.String("payment_ref", "pi_1"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	base := errors.New("invalid_session")
	wrapped := fmt.Errorf("complete: %w", base)
	safe := SafeError(wrapped)
	assert.EqualError(t, safe, "complete: invalid_session")
	assert.False(t, errors.Is(safe, base))
}

func TestNewExporterRejectsUnknownProtocol(t *testing.T) {
	_, err := newExporter("smoke-signals", "")
	assert.Error(t, err)
}
