package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/pagepack"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal        metric.Int64Counter
	BuildErrorsTotal   metric.Int64Counter
	BuildDuration      metric.Float64Histogram
	PagesRenderedTotal metric.Int64Counter

	// Dev server metrics
	RebuildsTriggeredTotal metric.Int64Counter
	ReloadsBroadcastTotal  metric.Int64Counter
	ReloadClients          metric.Int64UpDownCounter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"pagepack.builds.total",
		metric.WithDescription("Total number of builds started"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"pagepack.builds.errors.total",
		metric.WithDescription("Total number of failed builds"),
		metric.WithUnit("{error}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"pagepack.builds.duration",
		metric.WithDescription("Duration of builds"),
		metric.WithUnit("ms"),
	)

	m.PagesRenderedTotal, _ = meter.Int64Counter(
		"pagepack.pages.rendered.total",
		metric.WithDescription("Total number of pages rendered"),
		metric.WithUnit("{page}"),
	)

	m.RebuildsTriggeredTotal, _ = meter.Int64Counter(
		"pagepack.devserver.rebuilds.total",
		metric.WithDescription("Total number of rebuilds triggered by file changes"),
		metric.WithUnit("{build}"),
	)

	m.ReloadsBroadcastTotal, _ = meter.Int64Counter(
		"pagepack.devserver.reloads.total",
		metric.WithDescription("Total number of reload messages sent to browsers"),
		metric.WithUnit("{message}"),
	)

	m.ReloadClients, _ = meter.Int64UpDownCounter(
		"pagepack.devserver.reload_clients",
		metric.WithDescription("Number of connected live reload clients"),
		metric.WithUnit("{client}"),
	)

	return m
}
