// Package mock provides a deterministic resolver for demos and tests. It never calls out.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"nutriguide"
)

// DefaultHint is what Identify returns for any image.
const DefaultHint = "grilled_chicken"

type macros struct {
	calories, protein, fat, carbs float64
}

var catalog = map[string]macros{
	"grilled chicken": {165, 31, 3.6, 0},
	"chicken breast":  {172, 30, 4.5, 0},
	"chicken salad":   {220, 18, 14, 6},
	"rice":            {130, 2.7, 0.3, 28},
	"fried rice":      {238, 5.5, 9, 33},
	"salad":           {35, 2, 0.5, 7},
	"pad thai":        {357, 14, 16, 38},
	"apple":           {52, 0.3, 0.2, 14},
}

// unknownCalories is charged per serving of items outside the catalog.
const unknownCalories = 100

type Resolver struct {
	hint string
}

// New returns a mock resolver. An empty hint uses DefaultHint.
func New(hint string) *Resolver {
	if hint == "" {
		hint = DefaultHint
	}
	return &Resolver{hint: hint}
}

func (m *Resolver) Identify(ctx context.Context, image []byte) (string, error) {
	slog.Info("RESOLVER: Mock identify", "image_bytes", len(image), "hint", m.hint)
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	return m.hint, nil
}

// Suggest returns catalog names sharing a word with foodName, exact match first.
func (m *Resolver) Suggest(ctx context.Context, foodName string) ([]string, error) {
	query := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(foodName, "_", " ")))
	words := strings.Fields(query)

	var out []string
	if _, ok := catalog[query]; ok {
		out = append(out, query)
	}
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == query {
			continue
		}
		for _, w := range words {
			if strings.Contains(name, w) {
				out = append(out, name)
				break
			}
		}
	}
	if len(out) > 4 {
		out = out[:4]
	}
	slog.Info("RESOLVER: Mock suggest", "food_name", foodName, "suggestions", len(out))
	return out, nil
}

func (m *Resolver) Aggregate(ctx context.Context, items []nutriguide.MealItem) (nutriguide.Aggregate, error) {
	var agg nutriguide.Aggregate
	for _, it := range items {
		f, ok := catalog[strings.ToLower(strings.TrimSpace(it.Item))]
		if !ok {
			f = macros{calories: unknownCalories}
		}
		agg.TotalCalories += f.calories * it.Quantity
		agg.TotalProtein += f.protein * it.Quantity
		agg.TotalFat += f.fat * it.Quantity
		agg.TotalCarbs += f.carbs * it.Quantity
	}
	agg.Advice = fmt.Sprintf("Logged %d items for a total of %.0f calories. Well done!", len(items), agg.TotalCalories)
	slog.Info("RESOLVER: Mock aggregate", "items", len(items), "total_calories", agg.TotalCalories)
	return agg, nil
}
