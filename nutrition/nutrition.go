// Package nutrition holds the per-food macro table used to suggest and aggregate meals.
package nutrition

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"nutriguide"
	"nutriguide/tools/storage"
)

const (
	DefaultSearchLimit    = 4
	DefaultSearchMinScore = 75
	// DefaultMatchThreshold is the score a single best match must reach in Best.
	DefaultMatchThreshold = 85
)

var requiredColumns = []string{"Food_Item", "Calories", "Protein_g", "Fat_g", "Carbs_g"}

// Food is one row of the database, per serving.
type Food struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Fat      float64 `json:"fat_g"`
	Carbs    float64 `json:"carbs_g"`
}

// Match is a search hit with its similarity score in 0..100.
type Match struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Database is an immutable, lower-case keyed food table.
type Database struct {
	foods map[string]Food
	names []string
}

// Load reads and parses the database from state.
func Load(ctx context.Context, state storage.NutritionState) (*Database, error) {
	b, err := state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read nutrition database: %w", err)
	}
	db, err := Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("parse nutrition database: %w", err)
	}
	slog.Info("SETUP: Nutrition database loaded", "foods", db.Len())
	return db, nil
}

// Parse reads a CSV with the columns Food_Item, Calories, Protein_g, Fat_g and Carbs_g.
// Rows with a blank name or a non-numeric macro are dropped.
func Parse(r io.Reader) (*Database, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header")
		}
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	db := &Database{foods: make(map[string]Food)}
	dropped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		food, ok := parseRow(rec, cols)
		if !ok {
			dropped++
			continue
		}
		key := Key(food.Name)
		if _, dup := db.foods[key]; dup {
			continue
		}
		db.foods[key] = food
		db.names = append(db.names, key)
	}

	if dropped > 0 {
		slog.Warn("SETUP: Dropped nutrition rows with unparseable values", "dropped", dropped)
	}
	return db, nil
}

func parseRow(rec []string, cols map[string]int) (Food, bool) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	f := Food{Name: field("Food_Item")}
	if f.Name == "" {
		return Food{}, false
	}
	for _, m := range []struct {
		col string
		dst *float64
	}{
		{"Calories", &f.Calories},
		{"Protein_g", &f.Protein},
		{"Fat_g", &f.Fat},
		{"Carbs_g", &f.Carbs},
	} {
		v, err := strconv.ParseFloat(field(m.col), 64)
		if err != nil {
			return Food{}, false
		}
		*m.dst = v
	}
	return f, true
}

// Key is the lookup form of a food name: lower-cased and trimmed with underscores as spaces.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
}

// Len returns the number of foods.
func (db *Database) Len() int {
	return len(db.names)
}

// Lookup finds a food by exact (case-insensitive) name.
func (db *Database) Lookup(name string) (Food, bool) {
	f, ok := db.foods[Key(name)]
	return f, ok
}

// Search returns up to limit lower-case food names ranked by similarity to name,
// keeping those scoring at least minScore. Non-positive arguments use the defaults.
func (db *Database) Search(name string, limit, minScore int) []Match {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if minScore <= 0 {
		minScore = DefaultSearchMinScore
	}
	query := Key(name)
	if query == "" {
		return nil
	}

	matches := make([]Match, 0, limit)
	for _, candidate := range db.names {
		s := score(query, candidate)
		if s >= minScore {
			matches = append(matches, Match{Name: candidate, Score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Best returns the single closest food when it scores at least threshold.
func (db *Database) Best(name string, threshold int) (Food, int, bool) {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	if f, ok := db.Lookup(name); ok {
		return f, 100, true
	}
	hits := db.Search(name, 1, threshold)
	if len(hits) == 0 {
		return Food{}, 0, false
	}
	return db.foods[hits[0].Name], hits[0].Score, true
}

// score rates similarity in 0..100 from the edit distance. A candidate containing
// the whole query scores at least 90.
func score(query, candidate string) int {
	if query == candidate {
		return 100
	}
	longest := max(utf8.RuneCountInString(query), utf8.RuneCountInString(candidate))
	if longest == 0 {
		return 0
	}
	d := fuzzy.LevenshteinDistance(query, candidate)
	s := 100 * (longest - d) / longest
	if s < 90 && strings.Contains(candidate, query) {
		s = 90
	}
	return s
}

// Totals sums macros scaled by quantity. Items not in the database contribute nothing and are
// returned in unknown.
func (db *Database) Totals(items []nutriguide.MealItem) (agg nutriguide.Aggregate, unknown []string) {
	for _, it := range items {
		f, ok := db.Lookup(it.Item)
		if !ok {
			unknown = append(unknown, it.Item)
			continue
		}
		agg.TotalCalories += f.Calories * it.Quantity
		agg.TotalProtein += f.Protein * it.Quantity
		agg.TotalFat += f.Fat * it.Quantity
		agg.TotalCarbs += f.Carbs * it.Quantity
	}
	return agg, unknown
}
