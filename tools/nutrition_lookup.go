package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"nutriguide/nutrition"
)

type NutritionLookup struct{ db *nutrition.Database }

func NewNutritionLookup(db *nutrition.Database) *NutritionLookup { return &NutritionLookup{db: db} }

func (t *NutritionLookup) Name() string  { return "nutrition_lookup" }
func (t *NutritionLookup) Title() string { return "Look Up Nutrition" }
func (t *NutritionLookup) Description() string {
	return "Returns calories, protein_g, fat_g and carbs_g for each meal item scaled by its quantity, plus totals. Items with no close database match are listed under unknown."
}

func (t *NutritionLookup) InputSchema() *jsonschema.Schema {
	minQty := 0.5
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"items": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"item":     {Type: "string"},
						"quantity": {Type: "number", Minimum: &minQty},
					},
					Required: []string{"item", "quantity"},
				},
			},
		},
		Required: []string{"items"},
	}
}

func (t *NutritionLookup) OutputSchema() *jsonschema.Schema {
	macros := func() map[string]*jsonschema.Schema {
		return map[string]*jsonschema.Schema{
			"calories":  {Type: "number"},
			"protein_g": {Type: "number"},
			"fat_g":     {Type: "number"},
			"carbs_g":   {Type: "number"},
		}
	}
	item := macros()
	item["item"] = &jsonschema.Schema{Type: "string"}
	item["matched"] = &jsonschema.Schema{Type: "string"}
	item["quantity"] = &jsonschema.Schema{Type: "number"}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"items": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "object", Properties: item},
			},
			"unknown": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
			"totals": {Type: "object", Properties: macros()},
		},
		Required: []string{"items", "unknown", "totals"},
	}
}

type macroLine struct {
	Item     string  `json:"item"`
	Matched  string  `json:"matched"`
	Quantity float64 `json:"quantity"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Fat      float64 `json:"fat_g"`
	Carbs    float64 `json:"carbs_g"`
}

type macroTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Fat      float64 `json:"fat_g"`
	Carbs    float64 `json:"carbs_g"`
}

func (t *NutritionLookup) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	raw, ok := input["items"].([]any)
	if !ok {
		return nil, errors.New("items must be an array")
	}

	out := struct {
		Items   []macroLine `json:"items"`
		Unknown []string    `json:"unknown"`
		Totals  macroTotals `json:"totals"`
	}{
		Items:   make([]macroLine, 0, len(raw)),
		Unknown: make([]string, 0),
	}

	for i, v := range raw {
		m, _ := v.(map[string]any)
		name, _ := m["item"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("items[%d]: item is required", i)
		}
		qty, ok := number(m["quantity"])
		if !ok {
			qty = 1
		}

		food, _, found := t.db.Best(name, nutrition.DefaultMatchThreshold)
		if !found {
			out.Unknown = append(out.Unknown, name)
			continue
		}

		line := macroLine{
			Item:     name,
			Matched:  food.Name,
			Quantity: qty,
			Calories: food.Calories * qty,
			Protein:  food.Protein * qty,
			Fat:      food.Fat * qty,
			Carbs:    food.Carbs * qty,
		}
		out.Items = append(out.Items, line)
		out.Totals.Calories += line.Calories
		out.Totals.Protein += line.Protein
		out.Totals.Fat += line.Fat
		out.Totals.Carbs += line.Carbs
	}

	return toOutput(out)
}
