package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonUnknown              = "unknown"
)

const (
	OutcomeFulfilled = "fulfilled"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// CheckoutMetrics holds the Prometheus collectors scraped from /metrics.
type CheckoutMetrics struct {
	completionDuration *prometheus.HistogramVec
	gatewayCalls       *prometheus.CounterVec
	gatewayDuration    *prometheus.HistogramVec
	fulfillmentErrors  *prometheus.CounterVec
	duplicatePayments  prometheus.Counter
	lockContention     prometheus.Counter
}

var (
	checkoutMetricsOnce sync.Once
	checkoutMetrics     *CheckoutMetrics
)

// Checkout returns the process-wide collectors registered on the default
// registerer.
func Checkout() *CheckoutMetrics {
	return CheckoutWithConfig(Config{})
}

func CheckoutWithConfig(cfg Config) *CheckoutMetrics {
	checkoutMetricsOnce.Do(func() {
		checkoutMetrics = newCheckoutMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return checkoutMetrics
}

func newCheckoutMetrics(registerer prometheus.Registerer, cfg Config) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "semah"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	completionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "semah_checkout_completion_duration_seconds",
		Help:        "Latency of session completion from gateway lookup to commit.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"outcome"})
	gatewayCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "semah_payment_gateway_calls_total",
		Help:        "Payment gateway calls by operation and result.",
		ConstLabels: constLabels,
	}, []string{"provider", "operation", "result"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "semah_payment_gateway_duration_seconds",
		Help:        "Payment gateway call latency.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"provider", "operation"})
	fulfillmentErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "semah_fulfillment_errors_total",
		Help:        "Fulfillment transaction failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	duplicatePayments := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "semah_duplicate_payments_total",
		Help:        "Completions that lost the race on a payment reference.",
		ConstLabels: constLabels,
	})
	lockContention := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "semah_checkout_lock_contention_total",
		Help:        "Completions that found the session lock already held.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		completionDuration,
		gatewayCalls,
		gatewayDuration,
		fulfillmentErrors,
		duplicatePayments,
		lockContention,
	)

	return &CheckoutMetrics{
		completionDuration: completionDuration,
		gatewayCalls:       gatewayCalls,
		gatewayDuration:    gatewayDuration,
		fulfillmentErrors:  fulfillmentErrors,
		duplicatePayments:  duplicatePayments,
		lockContention:     lockContention,
	}
}

func (m *CheckoutMetrics) ObserveCompletion(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.completionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *CheckoutMetrics) ObserveGatewayCall(provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayCalls.WithLabelValues(provider, operation, result).Inc()
	m.gatewayDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

func (m *CheckoutMetrics) IncFulfillmentError(err error) {
	if m == nil {
		return
	}
	m.fulfillmentErrors.WithLabelValues(ClassifyReason(err)).Inc()
}

func (m *CheckoutMetrics) IncDuplicatePayment() {
	if m == nil {
		return
	}
	m.duplicatePayments.Inc()
}

func (m *CheckoutMetrics) IncLockContention() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

// ClassifyReason maps storage errors to low-cardinality reasons.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return ReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return ReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return ReasonUniqueViolation
	}
	return ReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
