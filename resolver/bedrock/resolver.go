// Package bedrock resolves foods with a vision-capable model on Amazon Bedrock. Suggestions and
// totals are grounded through the nutrition tools so the model cannot invent database entries.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"nutriguide"
)

const (
	defaultMaxIterations = 6
	defaultSuggestLimit  = 4
)

type llmClient interface {
	Invoke(ctx context.Context, prompt Prompt) (Response, error)
}

type Options struct {
	MaxIterations int
	SuggestLimit  int
}

// Resolver implements nutriguide.Resolver on top of an llmClient and the nutrition tools.
type Resolver struct {
	llm           llmClient
	toolProvider  toolProvider
	maxIterations int
	suggestLimit  int
}

func NewResolver(llm llmClient, tp toolProvider, opts Options) *Resolver {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.SuggestLimit <= 0 {
		opts.SuggestLimit = defaultSuggestLimit
	}
	return &Resolver{
		llm:           llm,
		toolProvider:  tp,
		maxIterations: opts.MaxIterations,
		suggestLimit:  opts.SuggestLimit,
	}
}

func (r *Resolver) Identify(ctx context.Context, image []byte) (string, error) {
	ctx, span := otel.Tracer(nutriguide.TracerNameBedrock).Start(ctx, "BedrockResolver.Identify")
	defer span.End()

	jpeg, err := prepareImage(image)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int("image.original_bytes", len(image)), attribute.Int("image.sent_bytes", len(jpeg)))

	var out struct {
		FoodName string `json:"food_name"`
	}
	if err := r.run(ctx, NewIdentifyPrompt(jpeg), &out, nil); err != nil {
		return "", fmt.Errorf("identify: %w", err)
	}
	return strings.TrimSpace(out.FoodName), nil
}

func (r *Resolver) Suggest(ctx context.Context, foodName string) ([]string, error) {
	ctx, span := otel.Tracer(nutriguide.TracerNameBedrock).Start(ctx, "BedrockResolver.Suggest")
	defer span.End()

	var out struct {
		Suggestions *[]string `json:"suggestions"`
	}
	validate := func() error {
		if out.Suggestions == nil {
			return errors.New(`missing "suggestions" array`)
		}
		return nil
	}
	if err := r.run(ctx, NewSuggestPrompt(foodName, r.suggestLimit, r.toolProvider), &out, validate); err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	suggestions := make([]string, 0, len(*out.Suggestions))
	for _, s := range *out.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	if len(suggestions) > r.suggestLimit {
		suggestions = suggestions[:r.suggestLimit]
	}
	return suggestions, nil
}

func (r *Resolver) Aggregate(ctx context.Context, items []nutriguide.MealItem) (nutriguide.Aggregate, error) {
	ctx, span := otel.Tracer(nutriguide.TracerNameBedrock).Start(ctx, "BedrockResolver.Aggregate")
	defer span.End()

	prompt, err := NewAggregatePrompt(items, r.toolProvider)
	if err != nil {
		return nutriguide.Aggregate{}, err
	}

	var out struct {
		TotalCalories *float64 `json:"total_calories"`
		TotalProtein  float64  `json:"total_protein"`
		TotalFat      float64  `json:"total_fat"`
		TotalCarbs    float64  `json:"total_carbs"`
		Advice        string   `json:"advice"`
	}
	validate := func() error {
		if out.TotalCalories == nil {
			return errors.New(`missing "total_calories"`)
		}
		if *out.TotalCalories < 0 || out.TotalProtein < 0 || out.TotalFat < 0 || out.TotalCarbs < 0 {
			return errors.New("totals must not be negative")
		}
		return nil
	}
	if err := r.run(ctx, prompt, &out, validate); err != nil {
		return nutriguide.Aggregate{}, fmt.Errorf("aggregate: %w", err)
	}

	return nutriguide.Aggregate{
		TotalCalories: *out.TotalCalories,
		TotalProtein:  out.TotalProtein,
		TotalFat:      out.TotalFat,
		TotalCarbs:    out.TotalCarbs,
		Advice:        out.Advice,
	}, nil
}

// run drives the conversation until the model returns a final JSON object that decodes into out
// and passes validate. Tool calls are executed and fed back; malformed answers are sent back with
// the reason so the model can restate them.
func (r *Resolver) run(ctx context.Context, prompt Prompt, out any, validate func() error) error {
	for iter := 0; iter < r.maxIterations; iter++ {
		res, err := r.llm.Invoke(ctx, prompt)
		if err != nil {
			return fmt.Errorf("invoke failed: %w", err)
		}

		slog.Info("RESOLVER: LLM response received",
			"iteration", iter+1,
			"content_length", len(res.Content),
			"tool_calls", len(res.ToolCalls),
		)

		if len(res.ToolCalls) == 0 {
			reason := decodeFinal(res.Content, out, validate)
			if reason == nil {
				return nil
			}
			slog.Info("RESOLVER: Final answer rejected", "iteration", iter+1, "reason", reason)
			prompt.Messages = append(prompt.Messages,
				Message{Role: "assistant", Content: MessageParts{{Type: "text", Text: nonEmpty(res.Content)}}},
				Message{Role: "user", Content: MessageParts{{Type: "text", Text: rejection(reason)}}},
			)
			continue
		}

		r.runTools(ctx, &prompt, res, iter)
	}

	return fmt.Errorf("no valid answer after %d iterations", r.maxIterations)
}

func (r *Resolver) runTools(ctx context.Context, prompt *Prompt, res Response, iter int) {
	assistantMsg := Message{Role: "assistant", Content: MessageParts{}}
	if res.Content != "" {
		assistantMsg.Content = append(assistantMsg.Content, MessagePart{Type: "text", Text: res.Content})
	}
	for _, call := range res.ToolCalls {
		assistantMsg.Content = append(assistantMsg.Content, MessagePart{
			Type:      "tool_use",
			ToolUseID: call.ToolUseID,
			ToolName:  call.Name,
			Data:      call.Input,
		})
	}
	prompt.Messages = append(prompt.Messages, assistantMsg)

	results := make([]ToolResult, 0, len(res.ToolCalls))
	for _, call := range res.ToolCalls {
		slog.Info("RESOLVER: Handling tool call", "name", call.Name, "iteration", iter+1)

		if r.toolProvider == nil {
			results = append(results, ToolResult{
				ToolUseID: call.ToolUseID, ToolName: call.Name, IsError: true,
				Data: map[string]any{"error": "no tools are available"},
			})
			continue
		}
		tool, err := r.toolProvider.GetTool(call.Name)
		if err != nil {
			results = append(results, ToolResult{
				ToolUseID: call.ToolUseID, ToolName: call.Name, IsError: true,
				Data: map[string]any{"error": err.Error()},
			})
			continue
		}

		output, err := tool.Run(ctx, call.Input)
		if err != nil {
			slog.Warn("RESOLVER: Tool failed", "name", call.Name, "error", err)
			results = append(results, ToolResult{
				ToolUseID: call.ToolUseID, ToolName: call.Name, IsError: true,
				Data: map[string]any{"error": fmt.Sprintf("tool %q failed: %v", call.Name, err)},
			})
			continue
		}
		results = append(results, ToolResult{ToolUseID: call.ToolUseID, ToolName: tool.Name(), Data: output})
	}

	prompt.Messages = append(prompt.Messages, NewToolResultMessage(results))
}

func decodeFinal(content string, out any, validate func() error) error {
	s := strings.TrimSpace(content)
	if s == "" || !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return errors.New("response is not a single JSON object")
	}
	// fields from an earlier rejected answer must not leak into this one
	reflect.ValueOf(out).Elem().SetZero()
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if validate != nil {
		return validate()
	}
	return nil
}

func rejection(reason error) string {
	b, _ := json.Marshal(map[string]any{
		"error":  "invalid_final_json",
		"reason": reason.Error(),
		"hint":   "Reply with only the JSON object described in the instructions.",
	})
	return string(b)
}

// nonEmpty keeps the conversation valid; Bedrock rejects blank text blocks.
func nonEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(no content)"
	}
	return s
}
