// Package metrics records probe outcomes as OpenTelemetry instruments and
// exposes them in the Prometheus text format.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/hamed0406/healthreport"

type Recorder struct {
	total    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
	handler  http.Handler
}

// New builds a recorder backed by its own Prometheus registry.
func New() (*Recorder, error) {
	reg := prometheus.NewRegistry()
	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exp),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", "healthreport"))),
	)

	r, err := newRecorder(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	r.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return r, nil
}

// Noop returns a recorder that drops every measurement.
func Noop() *Recorder {
	r, _ := newRecorder(noop.NewMeterProvider().Meter(meterName))
	return r
}

func newRecorder(meter metric.Meter) (*Recorder, error) {
	total, err := meter.Int64Counter(
		"healthreport.probe.total",
		metric.WithDescription("Probe invocations, including skipped ones"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create total counter: %w", err)
	}
	failures, err := meter.Int64Counter(
		"healthreport.probe.failures",
		metric.WithDescription("Probe outcomes reported as failures"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"healthreport.probe.duration_ms",
		metric.WithDescription("Probe duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return &Recorder{total: total, failures: failures, duration: duration}, nil
}

// RecordProbe is safe on a nil recorder.
func (r *Recorder) RecordProbe(ctx context.Context, system, probe string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	opt := metric.WithAttributes(
		attribute.String("system", system),
		attribute.String("probe", probe),
	)
	r.total.Add(ctx, 1, opt)
	if !ok {
		r.failures.Add(ctx, 1, opt)
	}
	r.duration.Record(ctx, float64(d.Microseconds())/1000, opt)
}

// Handler serves the scrape endpoint; a recorder without a registry answers 404.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.handler == nil {
		return http.NotFoundHandler()
	}
	return r.handler
}
