package tools

import (
	"errors"
	"fmt"
	"sort"

	"nutriguide/nutrition"
)

// Registry maps tool names to implementations
type Registry map[string]Tool

// NewRegistry creates a tool registry over the nutrition database.
func NewRegistry(db *nutrition.Database) (*Registry, error) {
	if db == nil {
		return nil, errors.New("nutrition database is required")
	}
	tools := map[string]Tool{
		"nutrition_lookup": NewNutritionLookup(db),
		"food_search":      NewFoodSearch(db),
	}

	registry := Registry(tools)
	return &registry, nil
}

// GetTools returns all tools in the registry sorted by name
func (r *Registry) GetTools() []Tool {
	tools := make([]Tool, 0, len(*r))
	for _, tool := range *r {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// GetTool retrieves a tool by name from the registry
func (r Registry) GetTool(name string) (Tool, error) {
	tool, exists := r[name]
	if !exists {
		return nil, fmt.Errorf("tool %q not found in registry", name)
	}
	return tool, nil
}
