package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes checkout pipeline instruments.
type Metrics struct {
	checkoutInitiated  metric.Int64Counter
	checkoutCompleted  metric.Int64Counter
	fulfillmentFailed  metric.Int64Counter
	notificationQueued metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "semah"
	}
	meter := provider.Meter(name)

	checkoutInitiated, err := meter.Int64Counter("semah_checkout_initiated_total")
	if err != nil {
		return nil, err
	}
	checkoutCompleted, err := meter.Int64Counter("semah_checkout_completed_total")
	if err != nil {
		return nil, err
	}
	fulfillmentFailed, err := meter.Int64Counter("semah_fulfillment_failed_total")
	if err != nil {
		return nil, err
	}
	notificationQueued, err := meter.Int64Counter("semah_notification_queued_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("semah_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checkoutInitiated:  checkoutInitiated,
		checkoutCompleted:  checkoutCompleted,
		fulfillmentFailed:  fulfillmentFailed,
		notificationQueued: notificationQueued,
		rateLimitDenied:    rateLimitDenied,
	}, nil
}

// RecordCheckoutInitiated counts purchase intents by offering kind and path
// (free or paid).
func (m *Metrics) RecordCheckoutInitiated(ctx context.Context, offeringKind, path string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("offering_kind", strings.TrimSpace(offeringKind)),
		attribute.String("path", strings.TrimSpace(path)),
	)
	m.checkoutInitiated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCheckoutCompleted counts session completions by outcome.
func (m *Metrics) RecordCheckoutCompleted(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.checkoutCompleted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordFulfillmentFailed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.fulfillmentFailed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordNotificationQueued(ctx context.Context, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.notificationQueued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"offering_kind": {},
	"path":          {},
	"provider":      {},
	"outcome":       {},
	"result":        {},
	"endpoint":      {},
	"reason":        {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
