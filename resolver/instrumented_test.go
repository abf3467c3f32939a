package resolver

import (
	"context"
	"errors"
	"testing"

	otelcodes "go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"nutriguide"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	hint        string
	suggestions []string
	aggregate   nutriguide.Aggregate
	err         error
}

func (s *stubResolver) Identify(ctx context.Context, image []byte) (string, error) {
	return s.hint, s.err
}

func (s *stubResolver) Suggest(ctx context.Context, foodName string) ([]string, error) {
	return s.suggestions, s.err
}

func (s *stubResolver) Aggregate(ctx context.Context, items []nutriguide.MealItem) (nutriguide.Aggregate, error) {
	return s.aggregate, s.err
}

type telemetry struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

func newInstrumented(t *testing.T, next nutriguide.Resolver) (*Instrumented, telemetry) {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	return NewInstrumented(next, "stub", tp.Tracer(nutriguide.TracerNameResolver), mp.Meter(nutriguide.TracerNameResolver)), telemetry{spans: spans, reader: reader}
}

// sums returns each counter's total across attribute sets.
func (tel telemetry) sums(t *testing.T) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tel.reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += int64(dp.Count)
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Sum
				}
			}
		}
	}
	return out
}

func TestInstrumented_Success(t *testing.T) {
	next := &stubResolver{
		hint:        "ramen",
		suggestions: []string{"ramen", "shoyu ramen", "miso ramen"},
		aggregate:   nutriguide.Aggregate{TotalCalories: 450},
	}
	r, tel := newInstrumented(t, next)
	ctx := context.Background()

	hint, err := r.Identify(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "ramen", hint)

	suggestions, err := r.Suggest(ctx, hint)
	require.NoError(t, err)
	assert.Len(t, suggestions, 3)

	agg, err := r.Aggregate(ctx, []nutriguide.MealItem{{Item: "ramen", Quantity: 1}, {Item: "egg", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, 450.0, agg.TotalCalories)

	sums := tel.sums(t)
	assert.Equal(t, int64(3), sums["resolver_calls_total"])
	assert.Equal(t, int64(0), sums["resolver_calls_failed_total"])
	assert.Equal(t, int64(3), sums["resolver_call_duration_seconds"])
	assert.Equal(t, int64(3), sums["suggestions_returned"])
	assert.Equal(t, int64(2), sums["basket_items_aggregated"])

	ended := tel.spans.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, "Resolver.Identify", ended[0].Name())
	assert.Equal(t, "Resolver.Suggest", ended[1].Name())
	assert.Equal(t, "Resolver.Aggregate", ended[2].Name())
}

func TestInstrumented_Failure(t *testing.T) {
	boom := errors.New("backend unavailable")
	r, tel := newInstrumented(t, &stubResolver{err: boom})

	_, err := r.Suggest(context.Background(), "tacos")
	assert.ErrorIs(t, err, boom)

	sums := tel.sums(t)
	assert.Equal(t, int64(1), sums["resolver_calls_total"])
	assert.Equal(t, int64(1), sums["resolver_calls_failed_total"])
	assert.Zero(t, sums["suggestions_returned"])

	ended := tel.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, otelcodes.Error, ended[0].Status().Code)
}
