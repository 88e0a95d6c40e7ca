package llms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smallnest/agentgraph/graph"
	"github.com/tmc/langchaingo/tools"
)

// ErrEmptyResponse is returned when a provider answers without any choice.
var ErrEmptyResponse = errors.New("no response")

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON schema object for the call arguments.
	Parameters map[string]any
}

// ChatModel produces the next message of a conversation. When tools are given
// the reply may carry tool calls instead of, or along with, content.
type ChatModel interface {
	Generate(ctx context.Context, messages []graph.Message, tools []ToolSpec) (graph.Message, error)
}

// ChatModelFunc is a function adapter for ChatModel
type ChatModelFunc func(ctx context.Context, messages []graph.Message, tools []ToolSpec) (graph.Message, error)

// Generate implements ChatModel.
func (f ChatModelFunc) Generate(ctx context.Context, messages []graph.Message, tools []ToolSpec) (graph.Message, error) {
	return f(ctx, messages, tools)
}

// InputKey is the single argument of tools described by ToolSpecFromTool.
const InputKey = "input"

// ToolSpecFromTool describes a langchaingo tool taking one string input.
func ToolSpecFromTool(t tools.Tool) ToolSpec {
	return ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				InputKey: map[string]any{
					"type":        "string",
					"description": "The input query for the tool",
				},
			},
			"required":             []string{InputKey},
			"additionalProperties": false,
		},
	}
}

// ToolSpecs describes every tool.
func ToolSpecs(ts []tools.Tool) []ToolSpec {
	specs := make([]ToolSpec, 0, len(ts))
	for _, t := range ts {
		specs = append(specs, ToolSpecFromTool(t))
	}
	return specs
}

func encodeArgs(args map[string]any) (string, error) {
	if args == nil {
		return "{}", nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool arguments: %w", err)
	}
	return string(data), nil
}

// decodeArgs parses provider arguments. Text that is not a JSON object is kept
// under InputKey.
func decodeArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{InputKey: raw}
	}
	return args
}
