package prebuilt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/tmc/langchaingo/tools"
)

// ErrToolNotFound is returned when an invocation names a tool that is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrNoToolCalls is returned by the action node when the last message asks for nothing.
var ErrNoToolCalls = errors.New("last message has no tool calls")

// BadToolReply is the tool message content sent back for an unknown tool name.
const BadToolReply = "bad tool name, retry"

// ToolInvocation is a request to run one tool with a string input.
type ToolInvocation struct {
	Tool      string `json:"tool"`
	ToolInput string `json:"tool_input"`
}

// ToolExecutor runs langchaingo tools by name.
type ToolExecutor struct {
	tools map[string]tools.Tool
	order []tools.Tool
}

// NewToolExecutor creates a ToolExecutor. A later tool replaces an earlier one
// with the same name.
func NewToolExecutor(inputTools []tools.Tool) *ToolExecutor {
	e := &ToolExecutor{tools: make(map[string]tools.Tool, len(inputTools))}
	for _, t := range inputTools {
		if _, dup := e.tools[t.Name()]; !dup {
			e.order = append(e.order, t)
		}
		e.tools[t.Name()] = t
	}
	return e
}

// Tools returns the registered tools in registration order.
func (e *ToolExecutor) Tools() []tools.Tool {
	out := make([]tools.Tool, 0, len(e.order))
	for _, t := range e.order {
		out = append(out, e.tools[t.Name()])
	}
	return out
}

// Execute runs a single tool invocation.
func (e *ToolExecutor) Execute(ctx context.Context, inv ToolInvocation) (string, error) {
	t, ok := e.tools[inv.Tool]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, inv.Tool)
	}
	return t.Call(ctx, inv.ToolInput)
}

// Run executes every call and returns one tool message per call, tagged with
// the call id. Tool failures are reported to the model as message content.
func (e *ToolExecutor) Run(ctx context.Context, calls []graph.ToolCall) []graph.Message {
	results := make([]graph.Message, 0, len(calls))
	for _, call := range calls {
		out, err := e.Execute(ctx, ToolInvocation{Tool: call.Name, ToolInput: toolInput(call.Args)})
		switch {
		case errors.Is(err, ErrToolNotFound):
			out = BadToolReply
		case err != nil:
			out = fmt.Sprintf("Error: %v", err)
		}
		results = append(results, graph.ToolMessage(call.ID, call.Name, out))
	}
	return results
}

// Node returns a node running the tool calls of the last message.
func (e *ToolExecutor) Node() graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.State, error) {
		last, ok := graph.LastMessage(state)
		if !ok || !last.HasToolCalls() {
			return nil, ErrNoToolCalls
		}
		return graph.State{graph.MessagesKey: e.Run(ctx, last.ToolCalls)}, nil
	}
}

// toolInput turns call arguments into the single string a tools.Tool takes.
func toolInput(args map[string]any) string {
	if s, ok := args[llms.InputKey].(string); ok && len(args) == 1 {
		return s
	}
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(data)
}
