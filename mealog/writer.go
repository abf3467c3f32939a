package mealog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nutriguide"
)

var errNoAggregate = errors.New("log request carries no aggregate")

// Writer implements nutriguide.MealLogWriter over a SQLiteStore. It stores the totals the
// resolver already computed instead of computing its own.
type Writer struct {
	store *SQLiteStore
	now   func() time.Time
}

func NewWriter(store *SQLiteStore, clock func() time.Time) *Writer {
	if clock == nil {
		clock = time.Now
	}
	return &Writer{store: store, now: clock}
}

func (w *Writer) Log(ctx context.Context, req nutriguide.LogRequest) (nutriguide.LoggedMeal, error) {
	if err := req.Validate(); err != nil {
		return nutriguide.LoggedMeal{}, err
	}
	if req.QuickCheck {
		return nutriguide.LoggedMeal{}, errors.New("quick-check meals are not logged")
	}
	if req.Aggregate == nil {
		return nutriguide.LoggedMeal{}, errNoAggregate
	}

	agg := *req.Aggregate
	name := agg.FoodName
	if name == "" {
		name = req.ImageFoodName
	}
	if name == "" {
		name = nutriguide.DefaultMealName
	}

	meal := nutriguide.LoggedMeal{
		ID:            uuid.NewString(),
		FoodName:      name,
		MealItems:     append([]nutriguide.MealItem(nil), req.MealItems...),
		TotalCalories: agg.TotalCalories,
		TotalProtein:  agg.TotalProtein,
		TotalFat:      agg.TotalFat,
		TotalCarbs:    agg.TotalCarbs,
		Advice:        agg.Advice,
		Timestamp:     w.now().Format(TimestampLayout),
	}
	if err := w.store.SaveMeal(ctx, meal); err != nil {
		return nutriguide.LoggedMeal{}, err
	}

	slog.Info("MEALOG: Meal logged", "id", meal.ID, "food_name", meal.FoodName, "total_calories", meal.TotalCalories)
	return meal, nil
}

func (w *Writer) History(ctx context.Context) ([]nutriguide.LoggedMeal, error) {
	return w.store.History(ctx)
}
