package storage

import (
	"context"
	"errors"
)

// NutritionState loads the raw nutrition database (CSV bytes).
type NutritionState interface {
	Load(ctx context.Context) ([]byte, error)
}

// TestNutritionState is a simple in-memory implementation for testing
type TestNutritionState struct {
	data []byte
	err  error
}

func NewTestNutritionState(data []byte) *TestNutritionState {
	return &TestNutritionState{data: data}
}

func NewTestNutritionStateWithError() *TestNutritionState {
	return &TestNutritionState{err: errors.New("not found")}
}

func (t *TestNutritionState) Load(ctx context.Context) ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.data, nil
}
