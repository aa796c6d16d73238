package otel

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/hugolhafner/go-transit"

// Telemetry holds all OpenTelemetry instruments used by the pipeline.
// When no providers are configured, all instruments are noops with zero overhead
type Telemetry struct {
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator

	// Consumer metrics
	MessagesConsumed metric.Int64Counter
	PollDuration     metric.Float64Histogram
	IdleWaits        metric.Int64Counter
	HandlerDuration  metric.Float64Histogram

	// Producer metrics
	MessagesProduced metric.Int64Counter
	ProduceDuration  metric.Float64Histogram

	ProvisionAttempts metric.Int64Counter
	TableEntries      metric.Int64UpDownCounter
	WorkersActive     metric.Int64UpDownCounter

	// Error metrics
	Errors              metric.Int64Counter
	ErrorHandlerActions metric.Int64Counter
}

// NewTelemetry creates a Telemetry instance from the given providers.
// all providers are optional and defaulted to noops if nil
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, prop propagation.TextMapPropagator) (
	*Telemetry, error,
) {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if prop == nil {
		prop = propagation.TraceContext{}
	}

	meter := mp.Meter(scopeName)
	t := &Telemetry{
		Tracer:     tp.Tracer(scopeName),
		Propagator: prop,
	}

	var err error
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&t.MessagesConsumed, "messaging.consumer.messages", "Records consumed"},
		{&t.IdleWaits, "transit.consumer.idle_waits", "Idle sleeps taken after an empty drain cycle"},
		{&t.MessagesProduced, "messaging.producer.messages", "Records produced"},
		{&t.ProvisionAttempts, "transit.provision.attempts", "Resource provisioning calls"},
		{&t.Errors, "transit.errors", "Errors encountered"},
		{&t.ErrorHandlerActions, "transit.error_handler.actions", "Error handler decisions"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&t.PollDuration, "transit.poll.duration", "Time per Poll() call"},
		{&t.HandlerDuration, "transit.handler.duration", "Time spent handling one record"},
		{&t.ProduceDuration, "transit.produce.duration", "Time per Send() call"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(
			h.name, metric.WithDescription(h.desc), metric.WithUnit("s"),
		); err != nil {
			return nil, err
		}
	}

	if t.TableEntries, err = meter.Int64UpDownCounter(
		"transit.table.entries",
		metric.WithDescription("Keys held by materialized tables"),
	); err != nil {
		return nil, err
	}

	if t.WorkersActive, err = meter.Int64UpDownCounter(
		"transit.workers.active",
		metric.WithDescription("Active partition workers"),
	); err != nil {
		return nil, err
	}

	return t, nil
}

// Noop returns a Telemetry instance with all noop instruments
func Noop() *Telemetry {
	t, _ := NewTelemetry(nil, nil, nil)
	return t
}
