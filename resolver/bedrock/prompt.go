package bedrock

import (
	"encoding/json"
	"fmt"

	"nutriguide"
	"nutriguide/tools"
)

// toolProvider is satisfied by *tools.Registry.
type toolProvider interface {
	GetTools() []tools.Tool
	GetTool(name string) (tools.Tool, error)
}

type Prompt struct {
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
}

func newPrompt(system string, user MessageParts, tp toolProvider) Prompt {
	p := Prompt{
		Messages: []Message{
			{Role: "system", Content: MessageParts{{Type: "text", Text: system}}},
			{Role: "user", Content: user},
		},
	}
	if tp == nil {
		return p
	}
	for _, tool := range tp.GetTools() {
		p.Tools = append(p.Tools, Tool{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	return p
}

// NewIdentifyPrompt asks the model to name the food in a JPEG image.
func NewIdentifyPrompt(image []byte) Prompt {
	return newPrompt(identifyPrompt, MessageParts{
		{Type: "image", Image: image},
		{Type: "text", Text: "Identify the main food in this photo."},
	}, nil)
}

// NewSuggestPrompt asks for database names matching a (possibly misspelled) food name.
func NewSuggestPrompt(foodName string, limit int, tp toolProvider) Prompt {
	return newPrompt(suggestPrompt, MessageParts{
		{Type: "text", Text: fmt.Sprintf("Food name: %q. Return at most %d suggestions.", foodName, limit)},
	}, tp)
}

// NewAggregatePrompt asks for macro totals of a confirmed basket.
func NewAggregatePrompt(items []nutriguide.MealItem, tp toolProvider) (Prompt, error) {
	b, err := json.Marshal(items)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to marshal meal items: %w", err)
	}
	return newPrompt(aggregatePrompt, MessageParts{
		{Type: "text", Text: "Meal items: " + string(b)},
	}, tp), nil
}

const identifyPrompt = `You are a food recognition assistant.

Look at the photo and name the single most prominent dish or food item.

FINAL OUTPUT FORMAT:
Return ONLY a JSON object, no markdown and no commentary:
{"food_name": string}   // lower case, words separated by underscores, e.g. "pad_thai"

If you cannot tell what the food is, return {"food_name": ""}.
`

const suggestPrompt = `You are a nutrition database assistant.

GOAL:
Map the user's food name, which may be misspelled or vague, to names that exist in the nutrition database.

TOOL USE:
Call food_search to find candidate names. Only return names that food_search returned. Do not invent names.
Use the provided tool interface directly; do not write tool calls as text.

FINAL OUTPUT FORMAT:
Return ONLY a JSON object, no markdown and no commentary:
{"suggestions": [string, ...]}   // best match first; [] when nothing is close
`

const aggregatePrompt = `You are a nutrition calculator.

GOAL:
Compute the total calories, protein, fat and carbohydrates for the user's confirmed meal items. Each item has a quantity in servings.

TOOL USE:
Call nutrition_lookup once with all the items. It returns per-item values already multiplied by quantity, plus totals.
Items listed under unknown contribute nothing.

FINAL OUTPUT FORMAT:
Return ONLY a JSON object, no markdown and no commentary:
{
  "total_calories": number,
  "total_protein": number,   // grams
  "total_fat": number,       // grams
  "total_carbs": number,     // grams
  "advice": string           // one short, positive sentence about this meal
}
`
