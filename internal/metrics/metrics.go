package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/leafsii/rediskit/pkg/partition"
)

type Metrics struct {
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
	Operations        metric.Int64Counter
	OperationDuration metric.Float64Histogram
	Selections        metric.Int64Counter
}

// Setup registers the instruments on a fresh Prometheus registry and returns
// the handler that serves it.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"rk_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"rk_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Operations, err = meter.Int64Counter(
		"rk_operations_total",
		metric.WithDescription("Total number of store operations by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.OperationDuration, err = meter.Float64Histogram(
		"rk_operation_duration_seconds",
		metric.WithDescription("Store round-trip duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Selections, err = meter.Int64Counter(
		"rk_partition_selections_total",
		metric.WithDescription("Partition selections by cache result"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

// RecordOperation counts one store round-trip.
func (m *Metrics) RecordOperation(ctx context.Context, op string, db int, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	labels := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("db", partition.NameOf(db)),
		attribute.String("outcome", outcome),
	)

	m.Operations.Add(ctx, 1, labels)
	m.OperationDuration.Record(ctx, took.Seconds(), labels)
}

// RecordSelection counts a partition lookup, hit meaning the cached handle was reused.
func (m *Metrics) RecordSelection(ctx context.Context, db int, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.Selections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("db", partition.NameOf(db)),
		attribute.String("result", result),
	))
}
