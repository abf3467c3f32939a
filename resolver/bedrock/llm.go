package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"nutriguide/tools"
)

const (
	// defaultModelID is an inference profile ID for a vision-capable Claude model.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	defaultMaxTokens   = 1024
	defaultTemperature = 0.2
	defaultTopP        = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{
		brc:  brc,
		opts: opts,
	}
}

func (c *LLMClient) Invoke(ctx context.Context, prompt Prompt) (Response, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages))

	var sys []types.SystemContentBlock
	for _, m := range prompt.Messages {
		if m.Role == "system" {
			sys = append(sys, &types.SystemContentBlockMemberText{Value: m.Content.Join()})
		}
	}

	var msgs []types.Message
	for _, m := range prompt.Messages {
		if m.Role == "system" {
			continue
		}
		msg := types.Message{Role: types.ConversationRole(m.Role)}

		for _, part := range m.Content {
			switch part.Type {
			case "text":
				msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: part.Text})

			case "image":
				msg.Content = append(msg.Content, &types.ContentBlockMemberImage{Value: types.ImageBlock{
					Format: types.ImageFormatJpeg,
					Source: &types.ImageSourceMemberBytes{Value: part.Image},
				}})
				slog.Info("LLM_CLIENT: Added image content", "image_bytes", len(part.Image))

			case "tool_use":
				tub := types.ToolUseBlock{
					ToolUseId: aws.String(part.ToolUseID),
					Name:      aws.String(part.ToolName),
					Input:     document.NewLazyDocument(plainJSON(part.Data)),
				}
				msg.Content = append(msg.Content, &types.ContentBlockMemberToolUse{Value: tub})

				slog.Info("LLM_CLIENT: Added tool use content", "tool_name", part.ToolName, "tool_use_id", part.ToolUseID)

			case "tool_result":
				if part.Data == nil {
					return Response{}, fmt.Errorf("tool result %s has no data", part.ToolUseID)
				}
				status := types.ToolResultStatusSuccess
				if part.IsError {
					status = types.ToolResultStatusError
				}
				tr := types.ToolResultBlock{
					ToolUseId: aws.String(part.ToolUseID),
					Status:    status,
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberJson{
							Value: document.NewLazyDocument(plainJSON(part.Data)),
						},
					},
				}
				msg.Content = append(msg.Content, &types.ContentBlockMemberToolResult{Value: tr})

				slog.Info("LLM_CLIENT: Added tool result content", "tool_use_id", part.ToolUseID, "is_error", part.IsError)
			}
		}

		msgs = append(msgs, msg)
	}

	var specs []types.Tool
	for _, t := range prompt.Tools {
		spec, err := buildToolSpec(t)
		if err != nil {
			slog.Error("LLM_CLIENT: Failed to build tool spec", "error", err)
			continue
		}
		specs = append(specs, &types.ToolMemberToolSpec{Value: spec})
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  &c.opts.ModelID,
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}
	// Bedrock rejects an empty tool list
	if len(specs) > 0 {
		in.ToolConfig = &types.ToolConfiguration{Tools: specs, ToolChoice: &types.ToolChoiceMemberAuto{}}
	}

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock invoke failed", "error", err, "model_id", c.opts.ModelID)
		return Response{}, err
	}

	attrs := []any{"stop_reason", out.StopReason}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	if out.Usage != nil {
		attrs = append(attrs, "input_tokens", aws.ToInt32(out.Usage.InputTokens), "output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	slog.Info("LLM_CLIENT: Bedrock invoke succeeded", attrs...)

	switch out.StopReason {
	case types.StopReasonToolUse:
		calls, err := toolCallsFromOutput(out)
		if err != nil {
			return Response{}, fmt.Errorf("failed to parse tool calls: %w", err)
		}
		text, _ := textFromOutput(out)
		return Response{Content: text, ToolCalls: calls}, nil

	case types.StopReasonEndTurn, types.StopReasonStopSequence:
		text, err := textFromOutput(out)
		if err != nil {
			return Response{}, fmt.Errorf("failed to extract final text: %w", err)
		}
		return Response{Content: text}, nil

	case types.StopReasonMaxTokens:
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit")
		return Response{}, errors.New("model hit MaxTokens limit; consider increasing MAX_TOKENS")

	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		slog.Warn("LLM_CLIENT: Model response blocked by Bedrock safety filters")
		return Response{}, errors.New("model response blocked by Bedrock safety filters")

	default:
		text, err := textFromOutput(out)
		if err != nil {
			return Response{}, fmt.Errorf("failed to extract text: %w", err)
		}
		calls, err := toolCallsFromOutput(out)
		if err != nil {
			return Response{}, fmt.Errorf("failed to parse tool calls: %w", err)
		}
		return Response{Content: text, ToolCalls: calls}, nil
	}
}

// plainJSON copies m through encoding/json so the document encoder only sees maps, slices and scalars.
func plainJSON(m map[string]any) map[string]any {
	out := make(map[string]any)
	b, err := json.Marshal(m)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return make(map[string]any)
	}
	return out
}

// buildToolSpec constructs a ToolSpecification for a tool.
// The schema is marshalled first so jsonschema's own MarshalJSON decides the wire shape.
func buildToolSpec(t Tool) (types.ToolSpecification, error) {
	schemaJSON, err := json.Marshal(t.InputSchema)
	if err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to marshal tool schema for %s: %w", t.Name, err)
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to unmarshal tool schema for %s: %w", t.Name, err)
	}

	return types.ToolSpecification{
		Name:        aws.String(t.Name),
		Description: aws.String(t.Description),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schemaMap),
		},
	}, nil
}

// textFromOutput returns assistant text, preferring the last block that looks like a JSON object.
func textFromOutput(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil || out.Output == nil {
		return "", nil
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil || len(msg.Value.Content) == 0 {
		return "", nil
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	if len(texts) == 0 {
		return "", nil
	}

	for i := len(texts) - 1; i >= 0; i-- {
		s := strings.TrimSpace(texts[i])
		if len(s) > 1 && s[0] == '{' && s[len(s)-1] == '}' {
			return s, nil
		}
	}

	return strings.Join(texts, "\n"), nil
}

// toolCallsFromOutput extracts tool uses emitted by the assistant.
func toolCallsFromOutput(out *bedrockruntime.ConverseOutput) ([]tools.Call, error) {
	var calls []tools.Call

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil || msg.Value.Content == nil {
		return calls, nil
	}

	for _, cb := range msg.Value.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil {
			continue
		}

		var input map[string]any
		if tu.Value.Input == nil || tu.Value.Input.UnmarshalSmithyDocument(&input) != nil || input == nil {
			input = map[string]any{}
		}

		calls = append(calls, tools.Call{
			Name:      aws.ToString(tu.Value.Name),
			Input:     normalizeInput(input).(map[string]any),
			ToolUseID: aws.ToString(tu.Value.ToolUseId),
		})
	}

	return calls, nil
}

// normalizeInput recursively coerces decoded document values for the tools: numbers become
// float64 (int when whole) and stringified JSON objects or arrays are decoded.
func normalizeInput(val any) any {
	switch v := val.(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
		return v

	case interface{ Float64() (float64, error) }:
		f, err := v.Float64()
		if err != nil {
			return v
		}
		return normalizeInput(f)

	case string:
		s := strings.TrimSpace(v)
		if len(s) > 1 && (s[0] == '{' || s[0] == '[') {
			var decoded any
			if json.Unmarshal([]byte(s), &decoded) == nil {
				return normalizeInput(decoded)
			}
		}
		return v

	case []any:
		for i := range v {
			v[i] = normalizeInput(v[i])
		}
		return v

	case map[string]any:
		for key, val := range v {
			v[key] = normalizeInput(val)
		}
		return v

	default:
		return v
	}
}
