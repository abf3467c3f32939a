package bedrock

import (
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"nutriguide/tools"
)

type MessagePart struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Data      map[string]any `json:"data,omitempty"` // JSON tool input or result
	IsError   bool           `json:"is_error,omitempty"`
	Image     []byte         `json:"-"`
}

type MessageParts []MessagePart

func (mp MessageParts) Join() string {
	var b strings.Builder
	for _, part := range mp {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

type Message struct {
	Role    string       `json:"role"`
	Content MessageParts `json:"content"`
}

type ToolResult struct {
	ToolUseID string
	ToolName  string
	Data      map[string]any
	IsError   bool
}

func NewToolResultMessage(results []ToolResult) Message {
	var parts MessageParts
	for _, result := range results {
		parts = append(parts, MessagePart{
			Type:      "tool_result",
			ToolUseID: result.ToolUseID,
			ToolName:  result.ToolName,
			Data:      result.Data,
			IsError:   result.IsError,
		})
	}
	return Message{
		Role:    "user",
		Content: parts,
	}
}

// Response represents the model's response structure.
type Response struct {
	Content   string       `json:"content,omitempty"`
	ToolCalls []tools.Call `json:"tool_calls,omitempty"`
}

type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}
