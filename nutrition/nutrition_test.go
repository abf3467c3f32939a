package nutrition

import (
	"context"
	"strings"
	"testing"

	"nutriguide"
	"nutriguide/tools/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `Food_Item,Calories,Protein_g,Fat_g,Carbs_g
Rice,130,2.7,0.3,28
Fried Rice,238,5.5,9,33
Brown Rice,112,2.3,0.8,23.5
Grilled Chicken,165,31,3.6,0
Chicken Breast,172,30,4.5,0
Pad Thai,357,14,16,38
Apple,52,0.3,0.2,14
Mystery Stew,N/A,1,1,1
,100,1,1,1
rice,999,0,0,0
`

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := Parse(strings.NewReader(testCSV))
	require.NoError(t, err)
	return db
}

func TestParse(t *testing.T) {
	db := testDB(t)

	assert.Equal(t, 7, db.Len(), "unparseable, unnamed and duplicate rows are dropped")

	f, ok := db.Lookup("  GRILLED chicken ")
	require.True(t, ok)
	assert.Equal(t, Food{Name: "Grilled Chicken", Calories: 165, Protein: 31, Fat: 3.6, Carbs: 0}, f)

	f, ok = db.Lookup("rice")
	require.True(t, ok)
	assert.Equal(t, 130.0, f.Calories, "first row wins")

	_, ok = db.Lookup("mystery stew")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty input", input: "", wantErr: "missing header"},
		{name: "missing column", input: "Food_Item,Calories,Protein_g,Fat_g\nRice,1,1,1\n", wantErr: `missing column "Carbs_g"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	db, err := Load(context.Background(), storage.NewTestNutritionState([]byte(testCSV)))
	require.NoError(t, err)
	assert.Equal(t, 7, db.Len())

	_, err = Load(context.Background(), storage.NewTestNutritionStateWithError())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read nutrition database")
}

func TestDatabase_Search(t *testing.T) {
	db := testDB(t)

	tests := []struct {
		name     string
		query    string
		limit    int
		minScore int
		expected []string
	}{
		{
			name:     "misspelling finds the close match",
			query:    "grilled_chiken",
			expected: []string{"grilled chicken"},
		},
		{
			name:     "exact match ranks first then containing names",
			query:    "Rice",
			expected: []string{"rice", "fried rice", "brown rice"},
		},
		{
			name:     "limit caps the result",
			query:    "rice",
			limit:    2,
			expected: []string{"rice", "fried rice"},
		},
		{
			name:     "nothing above the threshold",
			query:    "pizza",
			expected: []string{},
		},
		{
			name:     "blank query",
			query:    "  ",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := db.Search(tt.query, tt.limit, tt.minScore)
			names := make([]string, 0, len(matches))
			for _, m := range matches {
				assert.GreaterOrEqual(t, m.Score, DefaultSearchMinScore)
				names = append(names, m.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestDatabase_Best(t *testing.T) {
	db := testDB(t)

	f, s, ok := db.Best("Apple", 0)
	require.True(t, ok)
	assert.Equal(t, "Apple", f.Name)
	assert.Equal(t, 100, s)

	f, s, ok = db.Best("grilled chiken", 0)
	require.True(t, ok)
	assert.Equal(t, "Grilled Chicken", f.Name)
	assert.GreaterOrEqual(t, s, DefaultMatchThreshold)

	_, _, ok = db.Best("pizza", 0)
	assert.False(t, ok)
}

func TestScore(t *testing.T) {
	assert.Equal(t, 100, score("rice", "rice"))
	assert.Equal(t, 90, score("rice", "fried rice"))
	assert.Equal(t, 93, score("grilled chiken", "grilled chicken"))
	assert.Less(t, score("pizza", "rice"), DefaultSearchMinScore)
}

func TestDatabase_Totals(t *testing.T) {
	db := testDB(t)

	agg, unknown := db.Totals([]nutriguide.MealItem{
		{Item: "Grilled Chicken", Quantity: 1.5},
		{Item: "rice", Quantity: 1},
		{Item: "dragonfruit", Quantity: 2},
	})

	assert.InDelta(t, 165*1.5+130, agg.TotalCalories, 1e-9)
	assert.InDelta(t, 31*1.5+2.7, agg.TotalProtein, 1e-9)
	assert.InDelta(t, 3.6*1.5+0.3, agg.TotalFat, 1e-9)
	assert.InDelta(t, 28, agg.TotalCarbs, 1e-9)
	assert.Equal(t, []string{"dragonfruit"}, unknown)
}
