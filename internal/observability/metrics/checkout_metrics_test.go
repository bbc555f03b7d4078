package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: ReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "pg_unique_violation", err: &pgconn.PgError{Code: "23505"}, want: ReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCheckoutMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newCheckoutMetrics(registry, Config{ServiceName: "semah", Environment: "test"})

	m.ObserveGatewayCall("stripe", "retrieve_session", 20*time.Millisecond, nil)
	m.ObserveGatewayCall("stripe", "retrieve_session", 20*time.Millisecond, errors.New("timeout"))
	m.IncDuplicatePayment()
	m.IncFulfillmentError(&pgconn.PgError{Code: "40001"})

	if got := testutil.ToFloat64(m.gatewayCalls.WithLabelValues("stripe", "retrieve_session", "error")); got != 1 {
		t.Fatalf("expected 1 failed gateway call, got %v", got)
	}
	if got := testutil.ToFloat64(m.duplicatePayments); got != 1 {
		t.Fatalf("expected 1 duplicate payment, got %v", got)
	}
	if got := testutil.ToFloat64(m.fulfillmentErrors.WithLabelValues(ReasonSerializationFailure)); got != 1 {
		t.Fatalf("expected 1 serialization failure, got %v", got)
	}
}

func TestNilCheckoutMetricsIsSafe(t *testing.T) {
	var m *CheckoutMetrics
	m.ObserveCompletion(OutcomeFulfilled, time.Second)
	m.IncLockContention()
}
