// Package local resolves foods against an in-process nutrition database.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"nutriguide"
	"nutriguide/nutrition"
)

// ErrImageUnsupported is returned by Identify; the local resolver has no vision model.
var ErrImageUnsupported = errors.New("image identification is not available")

type Options struct {
	SuggestLimit    int
	SuggestMinScore int
}

type Resolver struct {
	db   *nutrition.Database
	opts Options
}

func New(db *nutrition.Database, opts Options) *Resolver {
	if opts.SuggestLimit <= 0 {
		opts.SuggestLimit = nutrition.DefaultSearchLimit
	}
	if opts.SuggestMinScore <= 0 {
		opts.SuggestMinScore = nutrition.DefaultSearchMinScore
	}
	return &Resolver{db: db, opts: opts}
}

func (r *Resolver) Identify(ctx context.Context, image []byte) (string, error) {
	return "", ErrImageUnsupported
}

// Suggest returns the highest-scoring database names for foodName.
func (r *Resolver) Suggest(ctx context.Context, foodName string) ([]string, error) {
	if strings.TrimSpace(foodName) == "" {
		return nil, errors.New("food name is required")
	}
	matches := r.db.Search(foodName, r.opts.SuggestLimit, r.opts.SuggestMinScore)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Name)
	}
	slog.Info("RESOLVER: Local suggest", "food_name", foodName, "suggestions", len(out))
	return out, nil
}

// Aggregate sums per-serving macros times quantity. Items missing from the database count as zero.
func (r *Resolver) Aggregate(ctx context.Context, items []nutriguide.MealItem) (nutriguide.Aggregate, error) {
	agg, unknown := r.db.Totals(items)
	if len(unknown) > 0 {
		slog.Warn("RESOLVER: Items not in nutrition database", "unknown", unknown)
	}
	agg.Advice = fmt.Sprintf("Logged %d items for a total of %.0f calories. Well done!", len(items), agg.TotalCalories)
	return agg, nil
}
