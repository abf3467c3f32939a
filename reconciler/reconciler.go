// Package reconciler drives the meal-confirmation workflow: an ambiguous food
// identification is turned into a confirmed, quantified basket, aggregated by the
// resolver, logged, and reconciled against the daily budget.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nutriguide"
	"nutriguide/budget"
)

var errNothingIdentified = errors.New("no food identified")

// Input starts an identification. At least one of Image or Text must be set; the image wins when both are.
type Input struct {
	Image         []byte
	ImageFilename string
	Text          string
}

// Result is the outcome of a successful confirm.
type Result struct {
	Aggregate  nutriguide.Aggregate   `json:"aggregate"`
	QuickCheck bool                   `json:"quick_check"`
	Meal       *nutriguide.LoggedMeal `json:"meal,omitempty"`
}

// Snapshot is a copy of the reconciler's observable state.
type Snapshot struct {
	State       State                 `json:"state"`
	QuickCheck  bool                  `json:"quick_check"`
	Hint        string                `json:"hint,omitempty"`
	Suggestions []string              `json:"suggestions,omitempty"`
	Options     []string              `json:"options,omitempty"`
	Basket      []nutriguide.MealItem `json:"basket,omitempty"`
	Result      *Result               `json:"result,omitempty"`
	Progress    budget.Progress       `json:"progress"`
	Error       string                `json:"error,omitempty"`
}

// Config holds the reconciler's collaborators. Writer is required for non quick-check confirms; the rest are optional.
type Config struct {
	Writer   nutriguide.MealLogWriter
	Goals    nutriguide.GoalStore
	Feedback nutriguide.FeedbackRecorder
	Logger   nutriguide.TransitionLogger
	Profile  nutriguide.UserProfile
	Clock    func() time.Time
}

// Reconciler is the per-session state machine. At most one resolver call is outstanding
// at a time; operations attempted while one is in flight fail with ErrBusy.
type Reconciler struct {
	resolver nutriguide.Resolver
	writer   nutriguide.MealLogWriter
	goals    nutriguide.GoalStore
	feedback nutriguide.FeedbackRecorder
	logger   nutriguide.TransitionLogger
	profile  nutriguide.UserProfile
	now      func() time.Time
	tracer   trace.Tracer

	mu            sync.Mutex
	state         State
	gen           uint64
	seq           int
	quickCheck    bool
	fromImage     bool
	imageFilename string
	hint          string
	suggestions   []string
	options       []string
	basket        *Basket
	lastErr       error
	result        *Result
	progress      budget.Progress
}

// New initializes a reconciler in the IDLE state.
func New(resolver nutriguide.Resolver, cfg Config) *Reconciler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = nutriguide.NewNoOpTransitionLogger()
	}
	r := &Reconciler{
		resolver: resolver,
		writer:   cfg.Writer,
		goals:    cfg.Goals,
		feedback: cfg.Feedback,
		logger:   cfg.Logger,
		profile:  cfg.Profile,
		now:      cfg.Clock,
		tracer:   otel.Tracer(nutriguide.TracerNameReconciler),
		state:    Idle,
	}
	r.progress = budget.Recompute(nil, nutriguide.Goals{}, r.now())
	return r
}

// Identify resolves an image or description into a hint and suggestions and seeds the basket.
func (r *Reconciler) Identify(ctx context.Context, in Input) (Snapshot, error) {
	ctx, span := r.tracer.Start(ctx, "Reconciler.Identify", trace.WithAttributes(
		attribute.Bool("input.image", len(in.Image) > 0),
		attribute.Int("input.text_len", len(in.Text)),
	))
	defer span.End()

	text := strings.TrimSpace(in.Text)
	if len(in.Image) == 0 && text == "" {
		err := &ValidationError{Err: ErrNoInput}
		span.SetStatus(codes.Error, err.Error())
		return r.Snapshot(), err
	}

	r.mu.Lock()
	if r.state.busy() {
		r.mu.Unlock()
		return r.Snapshot(), ErrBusy
	}
	r.gen++
	gen := r.gen
	r.clearLocked()
	r.fromImage = len(in.Image) > 0
	r.imageFilename = in.ImageFilename
	r.transitionLocked(Identifying, "identify", nil)
	r.mu.Unlock()

	slog.Info("RECONCILER: Identification started", "image", len(in.Image) > 0, "text", text)

	hint := text
	if len(in.Image) > 0 {
		h, err := r.resolver.Identify(ctx, in.Image)
		if err == nil && strings.TrimSpace(h) == "" {
			err = errNothingIdentified
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "identify failed")
			return r.failResolution(gen, "identify", err)
		}
		hint = strings.TrimSpace(h)
	}

	suggestions, err := r.resolver.Suggest(ctx, hint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "suggest failed")
		return r.failResolution(gen, "suggest", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		slog.Warn("RECONCILER: Discarding stale identification", "hint", hint)
		return r.snapshotLocked(), ErrStaleResponse
	}

	r.hint = hint
	r.suggestions = append([]string(nil), suggestions...)
	r.options = buildOptions(suggestions, hint)
	r.basket = SeedBasket(suggestions, hint)
	r.transitionLocked(AwaitingConfirmation, "suggestions", nil)

	span.SetAttributes(
		attribute.String("hint", hint),
		attribute.Int("suggestions", len(suggestions)),
	)

	return r.snapshotLocked(), nil
}

// Toggle adds or removes one of the offered options.
func (r *Reconciler) Toggle(name string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.editableLocked(); err != nil {
		return r.snapshotLocked(), err
	}
	if !r.offeredLocked(name) {
		return r.snapshotLocked(), ErrUnknownItem
	}

	present := r.basket.Toggle(name)
	slog.Info("RECONCILER: Toggled item", "item", name, "present", present, "basket_len", r.basket.Len())
	r.resumeLocked("toggle")
	return r.snapshotLocked(), nil
}

// Increment raises a selected item's quantity by QuantityStep.
func (r *Reconciler) Increment(name string) (Snapshot, error) {
	return r.adjust(name, 1)
}

// Decrement lowers a selected item's quantity by QuantityStep, never below MinQuantity.
func (r *Reconciler) Decrement(name string) (Snapshot, error) {
	return r.adjust(name, -1)
}

func (r *Reconciler) adjust(name string, steps int) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.editableLocked(); err != nil {
		return r.snapshotLocked(), err
	}

	q, err := r.basket.Adjust(name, steps)
	if err != nil {
		return r.snapshotLocked(), err
	}
	slog.Info("RECONCILER: Adjusted quantity", "item", name, "quantity", q)
	r.resumeLocked("adjust")
	return r.snapshotLocked(), nil
}

// SetQuickCheck switches quick-check mode. Quick-check meals are aggregated for display but never logged.
func (r *Reconciler) SetQuickCheck(on bool) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.busy() {
		return r.snapshotLocked(), ErrBusy
	}
	r.quickCheck = on
	return r.snapshotLocked(), nil
}

// Cancel discards the basket and any pending identification.
func (r *Reconciler) Cancel() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.state == Finalizing:
		return r.snapshotLocked(), ErrBusy
	case r.state == AwaitingConfirmation, r.state == Identifying, r.state == Errored && r.basket != nil:
		r.gen++
		r.clearLocked()
		r.transitionLocked(Cancelled, "cancel", nil)
		return r.snapshotLocked(), nil
	default:
		return r.snapshotLocked(), ErrInvalidTransition
	}
}

// Confirm aggregates the basket, logs it unless quick-check is on, and recomputes the daily budget.
// Confirming an empty basket is equivalent to Cancel. On failure the basket is kept so Confirm can be retried.
func (r *Reconciler) Confirm(ctx context.Context) (Snapshot, error) {
	ctx, span := r.tracer.Start(ctx, "Reconciler.Confirm")
	defer span.End()

	r.mu.Lock()
	if r.state.busy() {
		r.mu.Unlock()
		return r.Snapshot(), ErrBusy
	}
	if r.state != AwaitingConfirmation && !(r.state == Errored && r.basket != nil) {
		r.mu.Unlock()
		return r.Snapshot(), ErrInvalidTransition
	}
	if r.basket.Len() == 0 {
		r.gen++
		r.clearLocked()
		r.transitionLocked(Cancelled, "confirm_empty", nil)
		snap := r.snapshotLocked()
		r.mu.Unlock()
		return snap, nil
	}

	r.gen++
	gen := r.gen
	items := r.basket.Items()
	quick := r.quickCheck
	hint := r.hint
	fromImage := r.fromImage
	imageFilename := r.imageFilename
	r.lastErr = nil
	r.transitionLocked(Finalizing, "confirm", items)
	r.mu.Unlock()

	span.SetAttributes(
		attribute.Int("basket.items", len(items)),
		attribute.Bool("quick_check", quick),
	)

	agg, err := r.resolver.Aggregate(ctx, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return r.failFinalization(gen, "aggregate", err)
	}

	if agg.FoodName == "" {
		agg.FoodName = mealName(hint)
	}

	var meal *nutriguide.LoggedMeal
	if !quick {
		logged, err := r.log(ctx, hint, items, agg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "log failed")
			return r.failFinalization(gen, "log", err)
		}
		meal = &logged
	}

	if fromImage && !quick {
		r.recordFeedback(ctx, hint, imageFilename, items)
	}

	var progress *budget.Progress
	if !quick {
		p, err := r.recompute(ctx)
		if err != nil {
			// the meal is already logged; a retry would log it twice
			slog.Warn("RECONCILER: Budget recompute failed after logging", "error", err)
		} else {
			progress = &p
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		return r.snapshotLocked(), ErrStaleResponse
	}
	if progress != nil {
		r.progress = *progress
	}
	r.clearLocked()
	r.result = &Result{Aggregate: agg, QuickCheck: quick, Meal: meal}
	r.transitionLocked(Logged, "finalized", items)

	slog.Info("RECONCILER: Meal finalized",
		"food_name", agg.FoodName,
		"total_calories", agg.TotalCalories,
		"quick_check", quick,
		"daily_current", r.progress.Current,
		"daily_goal", r.progress.Goal,
	)

	return r.snapshotLocked(), nil
}

// Refresh recomputes the daily progress from the full history and current goals.
func (r *Reconciler) Refresh(ctx context.Context) (budget.Progress, error) {
	p, err := r.recompute(ctx)
	if err != nil {
		return r.Progress(), err
	}
	r.mu.Lock()
	r.progress = p
	r.mu.Unlock()
	return p, nil
}

// Progress returns the last computed daily progress.
func (r *Reconciler) Progress() budget.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Options returns the names the user may toggle: the suggestions followed by the normalized hint.
func (r *Reconciler) Options() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.options...)
}

// State returns the current state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error that moved the session to its current state, if any.
func (r *Reconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) log(ctx context.Context, hint string, items []nutriguide.MealItem, agg nutriguide.Aggregate) (nutriguide.LoggedMeal, error) {
	if r.writer == nil {
		return nutriguide.LoggedMeal{}, errors.New("no meal log configured")
	}
	req := nutriguide.LogRequest{
		ImageFoodName: mealName(hint),
		MealItems:     items,
		QuickCheck:    false,
		UserProfile:   r.profile,
		Aggregate:     &agg,
	}
	if err := req.Validate(); err != nil {
		return nutriguide.LoggedMeal{}, err
	}
	return r.writer.Log(ctx, req)
}

func (r *Reconciler) recompute(ctx context.Context) (budget.Progress, error) {
	if r.writer == nil {
		return budget.Progress{}, errors.New("no meal log configured")
	}
	history, err := r.writer.History(ctx)
	if err != nil {
		return budget.Progress{}, fmt.Errorf("failed to load history: %w", err)
	}
	var goals nutriguide.Goals
	if r.goals != nil {
		goals, err = r.goals.Goals(ctx)
		if err != nil {
			return budget.Progress{}, fmt.Errorf("failed to load goals: %w", err)
		}
	}
	return budget.Recompute(history, goals, r.now()), nil
}

func (r *Reconciler) recordFeedback(ctx context.Context, hint, imageFilename string, items []nutriguide.MealItem) {
	if r.feedback == nil || hint == "" {
		return
	}
	guess := NormalizeHint(hint)
	names := make([]string, 0, len(items))
	for _, it := range items {
		if ItemKey(it.Item) == ItemKey(guess) {
			return
		}
		names = append(names, it.Item)
	}
	fb := nutriguide.Feedback{
		OriginalGuess:  guess,
		UserCorrection: strings.Join(names, ", "),
		ImageFilename:  imageFilename,
	}
	if err := r.feedback.RecordFeedback(ctx, fb); err != nil {
		slog.Warn("RECONCILER: Failed to record feedback", "error", err, "original_guess", guess)
	}
}

func (r *Reconciler) failResolution(gen uint64, op string, err error) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		slog.Warn("RECONCILER: Discarding stale resolution failure", "op", op, "error", err)
		return r.snapshotLocked(), ErrStaleResponse
	}

	rerr := &ResolutionError{Op: op, Err: err}
	r.clearLocked()
	r.lastErr = rerr
	r.transitionLocked(Idle, op+"_failed", nil)
	slog.Error("RECONCILER: Resolution failed", "op", op, "error", err)
	return r.snapshotLocked(), rerr
}

func (r *Reconciler) failFinalization(gen uint64, op string, err error) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		return r.snapshotLocked(), ErrStaleResponse
	}

	ferr := &FinalizationError{Op: op, Err: err}
	r.lastErr = ferr
	r.transitionLocked(Errored, op+"_failed", r.basket.Items())
	slog.Error("RECONCILER: Finalization failed, basket kept", "op", op, "error", err, "basket_len", r.basket.Len())
	return r.snapshotLocked(), ferr
}

// editableLocked reports whether the basket can be changed in the current state.
func (r *Reconciler) editableLocked() error {
	if r.state.busy() {
		return ErrBusy
	}
	if r.basket == nil || (r.state != AwaitingConfirmation && r.state != Errored) {
		return ErrInvalidTransition
	}
	return nil
}

// resumeLocked returns an errored session to confirmation once the user edits the basket.
func (r *Reconciler) resumeLocked(trigger string) {
	if r.state == Errored {
		r.lastErr = nil
		r.transitionLocked(AwaitingConfirmation, trigger, nil)
	}
}

func (r *Reconciler) offeredLocked(name string) bool {
	key := ItemKey(name)
	for _, o := range r.options {
		if ItemKey(o) == key {
			return true
		}
	}
	return false
}

func (r *Reconciler) clearLocked() {
	r.basket = nil
	r.hint = ""
	r.suggestions = nil
	r.options = nil
	r.fromImage = false
	r.imageFilename = ""
	r.lastErr = nil
	r.result = nil
}

func (r *Reconciler) transitionLocked(to State, trigger string, items []nutriguide.MealItem) {
	from := r.state
	r.state = to
	r.seq++

	entry := nutriguide.TransitionLog{
		Seq:       r.seq,
		Timestamp: r.now(),
		From:      from.String(),
		To:        to.String(),
		Trigger:   trigger,
		Hint:      r.hint,
		Items:     items,
	}
	if r.lastErr != nil {
		entry.Error = r.lastErr.Error()
	}

	slog.Info("RECONCILER: Transition", "seq", r.seq, "from", from.String(), "to", to.String(), "trigger", trigger)
	if err := r.logger.LogTransition(entry); err != nil {
		slog.Error("Failed to log reconciler transition", "error", err, "seq", r.seq)
	}
}

func (r *Reconciler) snapshotLocked() Snapshot {
	s := Snapshot{
		State:       r.state,
		QuickCheck:  r.quickCheck,
		Hint:        r.hint,
		Suggestions: append([]string(nil), r.suggestions...),
		Options:     append([]string(nil), r.options...),
		Basket:      r.basket.Items(),
		Progress:    r.progress,
	}
	if r.result != nil {
		res := *r.result
		s.Result = &res
	}
	if r.lastErr != nil {
		s.Error = r.lastErr.Error()
	}
	return s
}

// buildOptions lists the suggestions followed by the normalized hint when it is not already among them.
func buildOptions(suggestions []string, hint string) []string {
	options := make([]string, 0, len(suggestions)+1)
	seen := make(map[string]bool, len(suggestions)+1)
	for _, s := range suggestions {
		k := ItemKey(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		options = append(options, strings.TrimSpace(s))
	}
	if h := NormalizeHint(hint); h != "" && !seen[ItemKey(h)] {
		options = append(options, h)
	}
	return options
}

func mealName(hint string) string {
	if h := NormalizeHint(hint); h != "" {
		return h
	}
	return nutriguide.DefaultMealName
}
