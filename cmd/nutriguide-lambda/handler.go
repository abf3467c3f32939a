package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"nutriguide"
	"nutriguide/reconciler"
	"nutriguide/setup"
)

// Params is one reconciliation: identify from Text or Image, replace the seeded basket with
// Selections when given, then confirm.
type Params struct {
	Text          string                `json:"text,omitempty"`
	Image         []byte                `json:"image,omitempty"` // base64 in JSON
	ImageFilename string                `json:"image_filename,omitempty"`
	Selections    []nutriguide.MealItem `json:"selections,omitempty"`
	QuickCheck    bool                  `json:"quick_check"`
}

var (
	errDuplicateSelection = errors.New("item selected more than once")
	errQuantityStep       = errors.New("quantity is not a multiple of 0.5")
)

type Results struct {
	Session reconciler.Snapshot `json:"session"`
}

func handle(ctx context.Context, stack *setup.Stack, logger nutriguide.TransitionLogger, params Params) (Results, error) {
	rec := reconciler.New(stack.Resolver, reconciler.Config{
		Writer:   stack.Writer,
		Goals:    stack.Goals,
		Feedback: stack.Feedback,
		Logger:   logger,
	})

	if _, err := rec.SetQuickCheck(params.QuickCheck); err != nil {
		return Results{}, err
	}

	snap, err := rec.Identify(ctx, reconciler.Input{
		Text:          params.Text,
		Image:         params.Image,
		ImageFilename: params.ImageFilename,
	})
	if err != nil {
		return Results{Session: snap}, err
	}

	if len(params.Selections) > 0 {
		if snap, err = applySelections(rec, snap, params.Selections); err != nil {
			return Results{Session: snap}, err
		}
	}

	snap, err = rec.Confirm(ctx)
	if err != nil {
		slog.Error("RESULT: Confirm failed", "error", err)
		return Results{Session: snap}, err
	}
	return Results{Session: snap}, nil
}

// validateSelections rejects selections that cannot be replayed exactly as basket edits.
func validateSelections(selections []nutriguide.MealItem) error {
	seen := make(map[string]bool, len(selections))
	for _, sel := range selections {
		key := reconciler.ItemKey(sel.Item)
		if key == "" {
			return nutriguide.ErrEmptyItemName
		}
		if seen[key] {
			return fmt.Errorf("selection %q: %w", sel.Item, errDuplicateSelection)
		}
		seen[key] = true

		if sel.Quantity < reconciler.MinQuantity {
			return fmt.Errorf("selection %q: %w", sel.Item, nutriguide.ErrQuantityTooSmall)
		}
		if steps := sel.Quantity / reconciler.QuantityStep; steps != math.Trunc(steps) {
			return fmt.Errorf("selection %q: %w", sel.Item, errQuantityStep)
		}
	}
	return nil
}

// applySelections clears the seeded basket, then toggles each selection in and steps it to its quantity.
func applySelections(rec *reconciler.Reconciler, snap reconciler.Snapshot, selections []nutriguide.MealItem) (reconciler.Snapshot, error) {
	if err := validateSelections(selections); err != nil {
		return snap, err
	}

	var err error
	for _, it := range snap.Basket {
		if snap, err = rec.Toggle(it.Item); err != nil {
			return snap, err
		}
	}

	for _, sel := range selections {
		if snap, err = rec.Toggle(sel.Item); err != nil {
			return snap, fmt.Errorf("selection %q: %w", sel.Item, err)
		}

		steps := int((sel.Quantity - reconciler.InitialQuantity) / reconciler.QuantityStep)
		for ; steps > 0; steps-- {
			if snap, err = rec.Increment(sel.Item); err != nil {
				return snap, err
			}
		}
		for ; steps < 0; steps++ {
			if snap, err = rec.Decrement(sel.Item); err != nil {
				return snap, err
			}
		}
	}

	// confirming an empty basket cancels silently
	if len(snap.Basket) == 0 {
		return snap, nutriguide.ErrEmptyMeal
	}
	return snap, nil
}
