package mock

import (
	"context"
	"testing"

	"nutriguide"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Identify(t *testing.T) {
	r := New("")

	hint, err := r.Identify(context.Background(), []byte{0xff})
	require.NoError(t, err)
	assert.Equal(t, DefaultHint, hint)

	_, err = r.Identify(context.Background(), nil)
	assert.Error(t, err)

	hint, err = New("pad_thai").Identify(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "pad_thai", hint)
}

func TestResolver_Suggest(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{
			name:     "exact match first then word matches",
			query:    "grilled_chicken",
			expected: []string{"grilled chicken", "chicken breast", "chicken salad"},
		},
		{
			name:     "word match",
			query:    "Rice",
			expected: []string{"rice", "fried rice"},
		},
		{
			name:     "nothing similar",
			query:    "lasagna",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New("").Suggest(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolver_Aggregate(t *testing.T) {
	agg, err := New("").Aggregate(context.Background(), []nutriguide.MealItem{
		{Item: "Grilled Chicken", Quantity: 1.5},
		{Item: "Rice", Quantity: 1},
		{Item: "mystery", Quantity: 2},
	})
	require.NoError(t, err)

	assert.InDelta(t, 165*1.5+130+200, agg.TotalCalories, 1e-9)
	assert.InDelta(t, 31*1.5+2.7, agg.TotalProtein, 1e-9)
	assert.Equal(t, "Logged 3 items for a total of 578 calories. Well done!", agg.Advice)
}
