// Package telemetry wires the Event Hub's dispatch loop to OpenTelemetry.
// It is deliberately optional: a nil-safe no-op Hub lets internal/hub run
// without any exporter configured, and a real Hub can be swapped in by the
// host application without internal/hub knowing the difference.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Hub is the instrumentation surface the event dispatcher calls into on
// every dispatched event. It wraps an OTel tracer and a counter/histogram
// pair rather than exposing the SDK types directly, so internal/hub depends
// on this package's narrow contract instead of on otel itself.
type Hub struct {
	tracer      trace.Tracer
	dispatched  metric.Int64Counter
	matchCount  metric.Int64Histogram
	tp          *sdktrace.TracerProvider
	mp          *sdkmetric.MeterProvider
}

// Config selects which exporters back the hub's spans and metrics.
type Config struct {
	ServiceName string
	// TraceExporter and MetricExporter are left to the caller to construct
	// (stdouttrace, stdoutmetric, otlpmetrichttp, ...) and pass in, so this
	// package never hardcodes a destination.
	TraceExporter  sdktrace.SpanExporter
	MetricExporter sdkmetric.Exporter
}

// New builds a Hub backed by real OTel SDK providers. Pass a Config with
// nil exporters to get providers that export nothing: spans and
// measurements are accepted and dropped.
func New(cfg Config) (*Hub, error) {
	var tpOpts []sdktrace.TracerProviderOption
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	var mpOpts []sdkmetric.Option
	if cfg.MetricExporter != nil {
		mpOpts = append(mpOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(cfg.MetricExporter)))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)

	name := cfg.ServiceName
	if name == "" {
		name = "corehub-sdk"
	}
	tracer := tp.Tracer(name)
	meter := mp.Meter(name)

	dispatched, err := meter.Int64Counter("hub.events.dispatched",
		metric.WithDescription("events that completed preprocessing and listener matching"))
	if err != nil {
		return nil, err
	}
	matchCount, err := meter.Int64Histogram("hub.events.listeners_matched",
		metric.WithDescription("number of listeners matched per dispatched event"))
	if err != nil {
		return nil, err
	}

	return &Hub{tracer: tracer, dispatched: dispatched, matchCount: matchCount, tp: tp, mp: mp}, nil
}

// NoOp returns a Hub that records nothing, using OTel's global no-op
// implementations. Used as internal/hub's zero-config default.
func NoOp() *Hub {
	meter := noop.NewMeterProvider().Meter("corehub-sdk/noop")
	dispatched, _ := meter.Int64Counter("hub.events.dispatched")
	matchCount, _ := meter.Int64Histogram("hub.events.listeners_matched")
	return &Hub{
		tracer:     otel.Tracer("corehub-sdk/noop"),
		dispatched: dispatched,
		matchCount: matchCount,
	}
}

// StartDispatch opens a span for one event's dispatch cycle.
func (h *Hub) StartDispatch(ctx context.Context, eventType, eventSource string) (context.Context, trace.Span) {
	if h == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return h.tracer.Start(ctx, "hub.dispatch",
		trace.WithAttributes(
			attribute.String("event.type", eventType),
			attribute.String("event.source", eventSource),
		))
}

// RecordDispatch records the outcome of one dispatch cycle.
func (h *Hub) RecordDispatch(ctx context.Context, listenersMatched int) {
	if h == nil {
		return
	}
	h.dispatched.Add(ctx, 1)
	h.matchCount.Record(ctx, int64(listenersMatched))
}

// Shutdown flushes and releases the underlying providers, if any.
func (h *Hub) Shutdown(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if h.tp != nil {
		if err := h.tp.Shutdown(ctx); err != nil {
			return err
		}
	}
	if h.mp != nil {
		return h.mp.Shutdown(ctx)
	}
	return nil
}
