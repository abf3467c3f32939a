package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nutriguide"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver records calls and returns canned results.
type fakeResolver struct {
	mu sync.Mutex

	hint         string
	identifyErr  error
	suggestions  []string
	suggestErr   error
	aggregate    nutriguide.Aggregate
	aggregateErr error

	identifyCalls  int
	suggestCalls   []string
	aggregateCalls [][]nutriguide.MealItem

	// when set, Suggest signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeResolver) Identify(ctx context.Context, image []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identifyCalls++
	return f.hint, f.identifyErr
}

func (f *fakeResolver) Suggest(ctx context.Context, foodName string) ([]string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestCalls = append(f.suggestCalls, foodName)
	return f.suggestions, f.suggestErr
}

func (f *fakeResolver) Aggregate(ctx context.Context, items []nutriguide.MealItem) (nutriguide.Aggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggregateCalls = append(f.aggregateCalls, items)
	return f.aggregate, f.aggregateErr
}

// fakeWriter is an in-memory meal log.
type fakeWriter struct {
	history    []nutriguide.LoggedMeal
	requests   []nutriguide.LogRequest
	logErr     error
	historyErr error
	clock      func() time.Time
}

func (w *fakeWriter) Log(ctx context.Context, req nutriguide.LogRequest) (nutriguide.LoggedMeal, error) {
	w.requests = append(w.requests, req)
	if w.logErr != nil {
		return nutriguide.LoggedMeal{}, w.logErr
	}
	meal := nutriguide.LoggedMeal{
		FoodName:      req.Aggregate.FoodName,
		MealItems:     req.MealItems,
		TotalCalories: req.Aggregate.TotalCalories,
		TotalProtein:  req.Aggregate.TotalProtein,
		Timestamp:     w.clock().Format("2006-01-02T15:04:05"),
	}
	w.history = append(w.history, meal)
	return meal, nil
}

func (w *fakeWriter) History(ctx context.Context) ([]nutriguide.LoggedMeal, error) {
	if w.historyErr != nil {
		return nil, w.historyErr
	}
	return append([]nutriguide.LoggedMeal(nil), w.history...), nil
}

type fakeGoals struct{ goals nutriguide.Goals }

func (g *fakeGoals) Goals(ctx context.Context) (nutriguide.Goals, error) { return g.goals, nil }
func (g *fakeGoals) SetGoals(ctx context.Context, goals nutriguide.Goals) error {
	g.goals = goals
	return nil
}

type fakeFeedback struct {
	recorded []nutriguide.Feedback
	err      error
}

func (f *fakeFeedback) RecordFeedback(ctx context.Context, fb nutriguide.Feedback) error {
	f.recorded = append(f.recorded, fb)
	return f.err
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []nutriguide.TransitionLog
}

func (l *recordingLogger) LogTransition(t nutriguide.TransitionLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, t)
	return nil
}

func (l *recordingLogger) path() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.To)
	}
	return out
}

var today = time.Date(2025, 1, 10, 13, 0, 0, 0, time.Local)

type fixture struct {
	resolver *fakeResolver
	writer   *fakeWriter
	goals    *fakeGoals
	feedback *fakeFeedback
	logger   *recordingLogger
	rec      *Reconciler
}

func newFixture(res *fakeResolver) *fixture {
	clock := func() time.Time { return today }
	f := &fixture{
		resolver: res,
		writer: &fakeWriter{clock: clock, history: []nutriguide.LoggedMeal{
			{FoodName: "eggs", Timestamp: "2025-01-10T08:00", TotalCalories: 500},
			{FoodName: "soup", Timestamp: "2025-01-09T19:00", TotalCalories: 400},
		}},
		goals:    &fakeGoals{goals: nutriguide.Goals{Calories: 2000}},
		feedback: &fakeFeedback{},
		logger:   &recordingLogger{},
	}
	f.rec = New(res, Config{
		Writer:   f.writer,
		Goals:    f.goals,
		Feedback: f.feedback,
		Logger:   f.logger,
		Profile:  nutriguide.UserProfile{"name": "sam"},
		Clock:    clock,
	})
	return f
}

func TestReconciler_IdentifyValidation(t *testing.T) {
	f := newFixture(&fakeResolver{})

	snap, err := f.rec.Identify(context.Background(), Input{Text: "   "})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrNoInput)
	assert.Equal(t, Idle, snap.State, "validation errors do not transition")
	assert.Zero(t, f.resolver.identifyCalls)
	assert.Empty(t, f.resolver.suggestCalls, "no network call is issued")
	assert.Empty(t, f.logger.path())
}

func TestReconciler_IdentifyText(t *testing.T) {
	tests := []struct {
		name            string
		suggestions     []string
		expectedBasket  []nutriguide.MealItem
		expectedOptions []string
	}{
		{
			name:            "non-empty suggestions seed the top one",
			suggestions:     []string{"grilled chicken", "chicken breast"},
			expectedBasket:  []nutriguide.MealItem{{Item: "grilled chicken", Quantity: 1}},
			expectedOptions: []string{"grilled chicken", "chicken breast", "grilled chiken"},
		},
		{
			name:            "empty suggestions seed the hint",
			suggestions:     nil,
			expectedBasket:  []nutriguide.MealItem{{Item: "grilled chiken", Quantity: 1}},
			expectedOptions: []string{"grilled chiken"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(&fakeResolver{suggestions: tt.suggestions})

			snap, err := f.rec.Identify(context.Background(), Input{Text: "grilled_chiken"})
			require.NoError(t, err)

			assert.Equal(t, AwaitingConfirmation, snap.State)
			assert.Equal(t, tt.expectedBasket, snap.Basket)
			assert.Equal(t, tt.expectedOptions, snap.Options)
			assert.Zero(t, f.resolver.identifyCalls, "text skips identify")
			assert.Equal(t, []string{"grilled_chiken"}, f.resolver.suggestCalls)
			assert.Equal(t, []string{"IDENTIFYING", "AWAITING_CONFIRMATION"}, f.logger.path())
		})
	}
}

func TestReconciler_IdentifyImage(t *testing.T) {
	f := newFixture(&fakeResolver{hint: "pad_thai", suggestions: []string{"pad thai", "pad see ew"}})

	snap, err := f.rec.Identify(context.Background(), Input{Image: []byte{0xff, 0xd8}, Text: "ignored"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.resolver.identifyCalls)
	assert.Equal(t, []string{"pad_thai"}, f.resolver.suggestCalls, "identified hint is passed to suggest")
	assert.Equal(t, "pad_thai", snap.Hint)
	assert.Equal(t, []string{"pad thai", "pad see ew"}, snap.Options, "normalized hint is not duplicated")
}

func TestReconciler_IdentifyFailure(t *testing.T) {
	tests := []struct {
		name     string
		resolver *fakeResolver
		input    Input
		op       string
	}{
		{
			name:     "identify network error",
			resolver: &fakeResolver{identifyErr: errors.New("connection refused")},
			input:    Input{Image: []byte{1}},
			op:       "identify",
		},
		{
			name:     "identify returns nothing",
			resolver: &fakeResolver{hint: " "},
			input:    Input{Image: []byte{1}},
			op:       "identify",
		},
		{
			name:     "suggest backend error",
			resolver: &fakeResolver{suggestErr: errors.New("503 service unavailable")},
			input:    Input{Text: "ramen"},
			op:       "suggest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.resolver)

			snap, err := f.rec.Identify(context.Background(), tt.input)

			var rerr *ResolutionError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.op, rerr.Op)
			assert.Equal(t, Idle, snap.State)
			assert.Empty(t, snap.Basket, "no basket is created")
			assert.NotEmpty(t, snap.Error)
			assert.Equal(t, rerr, f.rec.Err())

			// errors do not block a retry
			tt.resolver.identifyErr = nil
			tt.resolver.suggestErr = nil
			tt.resolver.hint = "ramen"
			snap, err = f.rec.Identify(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, AwaitingConfirmation, snap.State)
			assert.Empty(t, snap.Error)
		})
	}
}

func TestReconciler_ToggleAndAdjust(t *testing.T) {
	f := newFixture(&fakeResolver{suggestions: []string{"Grilled Chicken", "Rice", "Salad"}})
	_, err := f.rec.Identify(context.Background(), Input{Text: "chicken"})
	require.NoError(t, err)

	snap, err := f.rec.Toggle("Rice")
	require.NoError(t, err)
	assert.Equal(t, []nutriguide.MealItem{{Item: "Grilled Chicken", Quantity: 1}, {Item: "Rice", Quantity: 1}}, snap.Basket)

	snap, err = f.rec.Toggle("chicken")
	require.NoError(t, err, "the hint itself is an option")
	assert.Len(t, snap.Basket, 3)

	snap, err = f.rec.Toggle("chicken")
	require.NoError(t, err)
	assert.Len(t, snap.Basket, 2)

	_, err = f.rec.Toggle("Pizza")
	assert.ErrorIs(t, err, ErrUnknownItem)

	_, err = f.rec.Increment("Salad")
	assert.ErrorIs(t, err, ErrItemNotInBasket)

	for i := 0; i < 5; i++ {
		snap, err = f.rec.Decrement("Grilled Chicken")
		require.NoError(t, err)
	}
	assert.Equal(t, 0.5, snap.Basket[0].Quantity)

	snap, err = f.rec.Increment("Grilled Chicken")
	require.NoError(t, err)
	snap, err = f.rec.Increment("Grilled Chicken")
	require.NoError(t, err)
	assert.Equal(t, 1.5, snap.Basket[0].Quantity)
	assert.Equal(t, AwaitingConfirmation, snap.State)
}

func TestReconciler_EditOutsideConfirmation(t *testing.T) {
	f := newFixture(&fakeResolver{})

	_, err := f.rec.Toggle("rice")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.rec.Increment("rice")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.rec.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.rec.Cancel()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReconciler_Cancel(t *testing.T) {
	f := newFixture(&fakeResolver{suggestions: []string{"tacos"}})
	_, err := f.rec.Identify(context.Background(), Input{Text: "tacos"})
	require.NoError(t, err)

	snap, err := f.rec.Cancel()
	require.NoError(t, err)

	assert.Equal(t, Cancelled, snap.State)
	assert.Empty(t, snap.Basket)
	assert.Empty(t, snap.Hint)
	assert.Empty(t, f.resolver.aggregateCalls)
	assert.Empty(t, f.writer.requests)
}

func TestReconciler_ConfirmEmptyBasketCancels(t *testing.T) {
	f := newFixture(&fakeResolver{suggestions: []string{"tacos"}})
	_, err := f.rec.Identify(context.Background(), Input{Text: "tacos"})
	require.NoError(t, err)
	_, err = f.rec.Toggle("tacos")
	require.NoError(t, err)

	snap, err := f.rec.Confirm(context.Background())
	require.NoError(t, err, "an empty confirm is not an error")

	assert.Equal(t, Cancelled, snap.State, "same end state as an explicit cancel")
	assert.Empty(t, f.resolver.aggregateCalls)
	assert.Empty(t, f.writer.requests)
	assert.Nil(t, snap.Result)
}

func TestReconciler_ConfirmLogsAndRecomputes(t *testing.T) {
	res := &fakeResolver{
		suggestions: []string{"Grilled Chicken", "Rice"},
		aggregate: nutriguide.Aggregate{
			FoodName: "chicken", TotalCalories: 700, TotalProtein: 60, Advice: "Logged 2 items for a total of 700 calories. Well done!",
		},
	}
	f := newFixture(res)

	_, err := f.rec.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500.0, f.rec.Progress().Current)

	_, err = f.rec.Identify(context.Background(), Input{Text: "chicken"})
	require.NoError(t, err)
	_, err = f.rec.Increment("Grilled Chicken")
	require.NoError(t, err)
	_, err = f.rec.Toggle("Rice")
	require.NoError(t, err)

	snap, err := f.rec.Confirm(context.Background())
	require.NoError(t, err)

	expectedItems := []nutriguide.MealItem{{Item: "Grilled Chicken", Quantity: 1.5}, {Item: "Rice", Quantity: 1}}
	require.Len(t, res.aggregateCalls, 1)
	assert.Equal(t, expectedItems, res.aggregateCalls[0], "aggregate receives the basket in insertion order")

	require.Len(t, f.writer.requests, 1)
	req := f.writer.requests[0]
	assert.Equal(t, "chicken", req.ImageFoodName)
	assert.Equal(t, expectedItems, req.MealItems)
	assert.False(t, req.QuickCheck)
	assert.Equal(t, nutriguide.UserProfile{"name": "sam"}, req.UserProfile)

	assert.Equal(t, Logged, snap.State)
	assert.Empty(t, snap.Basket, "basket is cleared")
	assert.Empty(t, snap.Hint)
	require.NotNil(t, snap.Result)
	assert.Equal(t, res.aggregate, snap.Result.Aggregate)
	require.NotNil(t, snap.Result.Meal)
	assert.Len(t, f.writer.history, 3)

	assert.Equal(t, 1200.0, snap.Progress.Current, "recomputed from the updated history")
	assert.Equal(t, 2000.0, snap.Progress.Goal)
	assert.InDelta(t, 60, snap.Progress.Percent(), 1e-9)

	assert.Empty(t, f.feedback.recorded, "text identifications produce no feedback")
	assert.Equal(t, []string{
		"IDENTIFYING", "AWAITING_CONFIRMATION", "FINALIZING", "LOGGED",
	}, f.logger.path())
}

func TestReconciler_ResultNameFallsBackToHint(t *testing.T) {
	res := &fakeResolver{
		suggestions: []string{"pad thai"},
		aggregate:   nutriguide.Aggregate{TotalCalories: 357},
	}
	f := newFixture(res)
	_, err := f.rec.SetQuickCheck(true)
	require.NoError(t, err)
	_, err = f.rec.Identify(context.Background(), Input{Text: "pad_thai"})
	require.NoError(t, err)

	snap, err := f.rec.Confirm(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "pad thai", snap.Result.Aggregate.FoodName)
}

func TestReconciler_QuickCheck(t *testing.T) {
	res := &fakeResolver{
		suggestions: []string{"donut"},
		aggregate:   nutriguide.Aggregate{FoodName: "donut", TotalCalories: 450},
	}
	f := newFixture(res)
	_, err := f.rec.Refresh(context.Background())
	require.NoError(t, err)
	before := f.rec.Progress()

	_, err = f.rec.SetQuickCheck(true)
	require.NoError(t, err)
	_, err = f.rec.Identify(context.Background(), Input{Text: "donut"})
	require.NoError(t, err)

	snap, err := f.rec.Confirm(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Logged, snap.State)
	require.NotNil(t, snap.Result)
	assert.True(t, snap.Result.QuickCheck)
	assert.Nil(t, snap.Result.Meal)
	assert.Equal(t, 450.0, snap.Result.Aggregate.TotalCalories)

	assert.Empty(t, f.writer.requests, "quick check never reaches the log")
	history, err := f.writer.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, before, snap.Progress, "daily progress is unchanged")
}

func TestReconciler_FinalizationFailurePreservesBasket(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		op    string
	}{
		{
			name:  "aggregate fails",
			setup: func(f *fixture) { f.resolver.aggregateErr = errors.New("timeout") },
			op:    "aggregate",
		},
		{
			name:  "log fails",
			setup: func(f *fixture) { f.writer.logErr = errors.New("disk full") },
			op:    "log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &fakeResolver{
				suggestions: []string{"Grilled Chicken", "Rice"},
				aggregate:   nutriguide.Aggregate{FoodName: "chicken", TotalCalories: 700},
			}
			f := newFixture(res)
			_, err := f.rec.Identify(context.Background(), Input{Text: "chicken"})
			require.NoError(t, err)
			f.rec.Increment("Grilled Chicken")
			f.rec.Toggle("Rice")
			tt.setup(f)

			snap, err := f.rec.Confirm(context.Background())

			var ferr *FinalizationError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, tt.op, ferr.Op)
			assert.Equal(t, Errored, snap.State)
			expected := []nutriguide.MealItem{{Item: "Grilled Chicken", Quantity: 1.5}, {Item: "Rice", Quantity: 1}}
			assert.Equal(t, expected, snap.Basket, "basket retained unchanged")
			assert.NotEmpty(t, snap.Error)
			assert.Len(t, f.writer.history, 2)

			// retry with the same basket
			res.aggregateErr = nil
			f.writer.logErr = nil
			snap, err = f.rec.Confirm(context.Background())
			require.NoError(t, err)
			assert.Equal(t, Logged, snap.State)
			assert.Equal(t, expected, res.aggregateCalls[len(res.aggregateCalls)-1])
			assert.Len(t, f.writer.history, 3)
		})
	}
}

func TestReconciler_EditAfterFailureResumes(t *testing.T) {
	res := &fakeResolver{suggestions: []string{"pho", "banh mi"}, aggregateErr: errors.New("boom")}
	f := newFixture(res)
	_, err := f.rec.Identify(context.Background(), Input{Text: "pho"})
	require.NoError(t, err)
	_, err = f.rec.Confirm(context.Background())
	require.Error(t, err)

	snap, err := f.rec.Toggle("banh mi")
	require.NoError(t, err)
	assert.Equal(t, AwaitingConfirmation, snap.State)
	assert.Empty(t, snap.Error)
	assert.Len(t, snap.Basket, 2)

	snap, err = f.rec.Cancel()
	require.NoError(t, err)
	assert.Equal(t, Cancelled, snap.State)
}

func TestReconciler_HistoryFailureAfterLogIsNotFatal(t *testing.T) {
	res := &fakeResolver{suggestions: []string{"bagel"}, aggregate: nutriguide.Aggregate{TotalCalories: 300}}
	f := newFixture(res)
	_, err := f.rec.Identify(context.Background(), Input{Text: "bagel"})
	require.NoError(t, err)
	f.writer.historyErr = errors.New("read timeout")

	snap, err := f.rec.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Logged, snap.State)
	assert.Len(t, f.writer.requests, 1)
}

func TestReconciler_Feedback(t *testing.T) {
	tests := []struct {
		name     string
		hint     string
		toggle   []string
		quick    bool
		expected []nutriguide.Feedback
	}{
		{
			name:   "correction recorded when guess is not selected",
			hint:   "fried_rice",
			toggle: []string{"fried rice", "nasi goreng"},
			expected: []nutriguide.Feedback{
				{OriginalGuess: "fried rice", UserCorrection: "nasi goreng", ImageFilename: "lunch.jpg"},
			},
		},
		{
			name: "no feedback when guess is kept",
			hint: "fried_rice",
		},
		{
			name:   "no feedback for quick check",
			hint:   "fried_rice",
			toggle: []string{"fried rice", "nasi goreng"},
			quick:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &fakeResolver{hint: tt.hint, aggregate: nutriguide.Aggregate{TotalCalories: 500}}
			f := newFixture(res)
			res.suggestions = []string{"fried rice", "nasi goreng"}
			_, err := f.rec.SetQuickCheck(tt.quick)
			require.NoError(t, err)

			_, err = f.rec.Identify(context.Background(), Input{Image: []byte{1}, ImageFilename: "lunch.jpg"})
			require.NoError(t, err)
			for _, name := range tt.toggle {
				_, err := f.rec.Toggle(name)
				require.NoError(t, err)
			}

			_, err = f.rec.Confirm(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.feedback.recorded)
		})
	}
}

func TestReconciler_BusyWhileIdentifying(t *testing.T) {
	res := &fakeResolver{
		suggestions: []string{"sushi"},
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	f := newFixture(res)

	done := make(chan error, 1)
	go func() {
		_, err := f.rec.Identify(context.Background(), Input{Text: "sushi"})
		done <- err
	}()
	<-res.entered

	assert.Equal(t, Identifying, f.rec.State())
	_, err := f.rec.Identify(context.Background(), Input{Text: "ramen"})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.rec.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.rec.SetQuickCheck(true)
	assert.ErrorIs(t, err, ErrBusy)

	close(res.release)
	require.NoError(t, <-done)
	assert.Equal(t, AwaitingConfirmation, f.rec.State())
	assert.Equal(t, []string{"sushi"}, res.suggestCalls)
}

func TestReconciler_StaleResponseDiscarded(t *testing.T) {
	res := &fakeResolver{
		suggestions: []string{"sushi"},
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	f := newFixture(res)

	done := make(chan error, 1)
	go func() {
		_, err := f.rec.Identify(context.Background(), Input{Text: "sushi"})
		done <- err
	}()
	<-res.entered

	snap, err := f.rec.Cancel()
	require.NoError(t, err)
	assert.Equal(t, Cancelled, snap.State)

	close(res.release)
	assert.ErrorIs(t, <-done, ErrStaleResponse)

	snap = f.rec.Snapshot()
	assert.Equal(t, Cancelled, snap.State, "late response does not resurrect the session")
	assert.Empty(t, snap.Basket)
}

func TestReconciler_NewIdentificationReplacesBasket(t *testing.T) {
	res := &fakeResolver{suggestions: []string{"burger"}}
	f := newFixture(res)
	_, err := f.rec.Identify(context.Background(), Input{Text: "burger"})
	require.NoError(t, err)

	res.suggestions = []string{"fries"}
	snap, err := f.rec.Identify(context.Background(), Input{Text: "fries"})
	require.NoError(t, err)
	assert.Equal(t, []nutriguide.MealItem{{Item: "fries", Quantity: 1}}, snap.Basket)
}

func TestReconciler_NoWriter(t *testing.T) {
	res := &fakeResolver{suggestions: []string{"kale"}, aggregate: nutriguide.Aggregate{TotalCalories: 50}}
	rec := New(res, Config{})

	_, err := rec.Identify(context.Background(), Input{Text: "kale"})
	require.NoError(t, err)
	snap, err := rec.Confirm(context.Background())

	var ferr *FinalizationError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "log", ferr.Op)
	assert.Len(t, snap.Basket, 1)

	_, err = rec.SetQuickCheck(true)
	require.NoError(t, err)
	snap, err = rec.Confirm(context.Background())
	require.NoError(t, err, "quick check does not need a writer")
	assert.Equal(t, Logged, snap.State)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "AWAITING_CONFIRMATION", AwaitingConfirmation.String())
	assert.Equal(t, "ERROR", Errored.String())
	assert.Equal(t, "UNKNOWN", State(42).String())

	b, err := Logged.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "LOGGED", string(b))
}
