package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"nutriguide/nutrition"
)

type FoodSearch struct{ db *nutrition.Database }

func NewFoodSearch(db *nutrition.Database) *FoodSearch { return &FoodSearch{db: db} }

func (t *FoodSearch) Name() string  { return "food_search" }
func (t *FoodSearch) Title() string { return "Search Foods" }
func (t *FoodSearch) Description() string {
	return "Finds database food names similar to a query, ranked by score (0-100)."
}

func (t *FoodSearch) InputSchema() *jsonschema.Schema {
	minLimit := 1.0
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query": {Type: "string"},
			"limit": {Type: "integer", Minimum: &minLimit},
		},
		Required: []string{"query"},
	}
}

func (t *FoodSearch) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"matches": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"name":  {Type: "string"},
						"score": {Type: "integer"},
					},
					Required: []string{"name", "score"},
				},
			},
		},
		Required: []string{"matches"},
	}
}

func (t *FoodSearch) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	query, _ := input["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is required")
	}
	limit := nutrition.DefaultSearchLimit
	if v, ok := number(input["limit"]); ok && v >= 1 {
		limit = int(v)
	}

	matches := t.db.Search(query, limit, nutrition.DefaultSearchMinScore)
	if matches == nil {
		matches = []nutrition.Match{}
	}
	return toOutput(map[string]any{"matches": matches})
}
