// Package resolver holds cross-cutting decorators for nutriguide.Resolver implementations.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"nutriguide"
)

// Instrumented wraps a Resolver with spans and call metrics.
type Instrumented struct {
	next   nutriguide.Resolver
	name   string
	tracer trace.Tracer

	calls       metric.Int64Counter
	failed      metric.Int64Counter
	duration    metric.Float64Histogram
	suggestions metric.Int64Histogram
	aggregated  metric.Int64Counter
}

// NewInstrumented decorates next. name identifies the backend in attributes (e.g. "local", "bedrock").
func NewInstrumented(next nutriguide.Resolver, name string, tracer trace.Tracer, meter metric.Meter) *Instrumented {
	calls, _ := meter.Int64Counter("resolver_calls_total",
		metric.WithDescription("Total number of resolver calls"))
	failed, _ := meter.Int64Counter("resolver_calls_failed_total",
		metric.WithDescription("Total number of resolver calls that failed"))
	duration, _ := meter.Float64Histogram("resolver_call_duration_seconds",
		metric.WithDescription("Duration of resolver calls in seconds"))
	suggestions, _ := meter.Int64Histogram("suggestions_returned",
		metric.WithDescription("Number of suggestions returned per Suggest call"))
	aggregated, _ := meter.Int64Counter("basket_items_aggregated",
		metric.WithDescription("Total number of basket items sent for aggregation"))

	return &Instrumented{
		next:        next,
		name:        name,
		tracer:      tracer,
		calls:       calls,
		failed:      failed,
		duration:    duration,
		suggestions: suggestions,
		aggregated:  aggregated,
	}
}

func (r *Instrumented) Identify(ctx context.Context, image []byte) (string, error) {
	ctx, span := r.tracer.Start(ctx, "Resolver.Identify", trace.WithAttributes(
		attribute.Int("image.bytes", len(image)),
	))
	defer span.End()

	start := time.Now()
	hint, err := r.next.Identify(ctx, image)
	r.record(ctx, span, "identify", start, err)
	if err == nil {
		span.SetAttributes(attribute.String("hint", hint))
	}
	return hint, err
}

func (r *Instrumented) Suggest(ctx context.Context, foodName string) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "Resolver.Suggest", trace.WithAttributes(
		attribute.String("food_name", foodName),
	))
	defer span.End()

	start := time.Now()
	out, err := r.next.Suggest(ctx, foodName)
	r.record(ctx, span, "suggest", start, err)
	if err == nil {
		r.suggestions.Record(ctx, int64(len(out)), metric.WithAttributes(r.attrs("suggest")...))
		span.SetAttributes(attribute.Int("suggestions", len(out)))
	}
	return out, err
}

func (r *Instrumented) Aggregate(ctx context.Context, items []nutriguide.MealItem) (nutriguide.Aggregate, error) {
	ctx, span := r.tracer.Start(ctx, "Resolver.Aggregate", trace.WithAttributes(
		attribute.Int("basket.items", len(items)),
	))
	defer span.End()

	r.aggregated.Add(ctx, int64(len(items)), metric.WithAttributes(r.attrs("aggregate")...))

	start := time.Now()
	agg, err := r.next.Aggregate(ctx, items)
	r.record(ctx, span, "aggregate", start, err)
	if err == nil {
		span.SetAttributes(attribute.Float64("total_calories", agg.TotalCalories))
	}
	return agg, err
}

func (r *Instrumented) record(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	attrs := metric.WithAttributes(r.attrs(op)...)
	r.calls.Add(ctx, 1, attrs)
	r.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		r.failed.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		slog.Error("RESOLVER: Call failed", "resolver", r.name, "op", op, "error", err)
	}
}

func (r *Instrumented) attrs(op string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("resolver", r.name),
		attribute.String("op", op),
	}
}
