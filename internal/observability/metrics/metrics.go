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

// Metrics exposes obligation engine instruments.
type Metrics struct {
	obligationsGenerated metric.Int64Counter
	obligationsSkipped   metric.Int64Counter
	generationFailures   metric.Int64Counter
	overdueTransitions   metric.Int64Counter
	statusChanges        metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled || strings.TrimSpace(cfg.ExporterEndpoint) == "" {
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

// New configures the engine metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "clientdesk"
	}
	meter := provider.Meter(name)

	generated, err := meter.Int64Counter("clientdesk_obligations_generated_total")
	if err != nil {
		return nil, err
	}
	skipped, err := meter.Int64Counter("clientdesk_obligations_skipped_total")
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("clientdesk_obligation_generation_failures_total")
	if err != nil {
		return nil, err
	}
	overdue, err := meter.Int64Counter("clientdesk_obligations_overdue_total")
	if err != nil {
		return nil, err
	}
	statusChanges, err := meter.Int64Counter("clientdesk_obligation_status_changes_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		obligationsGenerated: generated,
		obligationsSkipped:   skipped,
		generationFailures:   failures,
		overdueTransitions:   overdue,
		statusChanges:        statusChanges,
	}, nil
}

// NewNoop returns instruments bound to a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordObligationsGenerated adds newly inserted obligations for a frequency.
func (m *Metrics) RecordObligationsGenerated(ctx context.Context, frequency string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("frequency", strings.TrimSpace(frequency)))
	m.obligationsGenerated.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordObligationsSkipped adds periods that already had an obligation.
func (m *Metrics) RecordObligationsSkipped(ctx context.Context, frequency string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("frequency", strings.TrimSpace(frequency)))
	m.obligationsSkipped.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordGenerationFailure counts a client whose generation pass failed.
func (m *Metrics) RecordGenerationFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.generationFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOverdueTransitions adds obligations moved from pending to overdue.
func (m *Metrics) RecordOverdueTransitions(ctx context.Context, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.overdueTransitions.Add(ctx, count)
}

// RecordStatusChange counts a manual status edit.
func (m *Metrics) RecordStatusChange(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
	)
	m.statusChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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
	"frequency":   {},
	"reason":      {},
	"from_status": {},
	"to_status":   {},
	"job":         {},
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
