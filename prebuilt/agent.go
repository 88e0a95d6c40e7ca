package prebuilt

import (
	"context"
	"fmt"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/tmc/langchaingo/tools"
)

// Node names of the graph built by CreateAgent.
const (
	AgentNode  = "llm"
	ActionNode = "action"
)

// CreateAgentOptions holds the settings of CreateAgent.
type CreateAgentOptions struct {
	SystemMessage  string
	StateModifier  func(messages []graph.Message) []graph.Message
	ApproveActions bool
	ModelRetry     *graph.RetryConfig
	CompileOptions []graph.CompileOption
}

// CreateAgentOption configures CreateAgent.
type CreateAgentOption func(*CreateAgentOptions)

// WithSystemMessage prepends a system prompt to every model call.
// The prompt is not stored in the thread state.
func WithSystemMessage(message string) CreateAgentOption {
	return func(o *CreateAgentOptions) { o.SystemMessage = message }
}

// WithStateModifier rewrites the messages sent to the model.
func WithStateModifier(modifier func(messages []graph.Message) []graph.Message) CreateAgentOption {
	return func(o *CreateAgentOptions) { o.StateModifier = modifier }
}

// WithApproval pauses the thread before any tool runs. Resume the thread to
// approve, or correct the pending tool call with UpdateThreadState first.
func WithApproval() CreateAgentOption {
	return func(o *CreateAgentOptions) { o.ApproveActions = true }
}

// WithModelRetry retries failed model calls.
func WithModelRetry(config *graph.RetryConfig) CreateAgentOption {
	return func(o *CreateAgentOptions) { o.ModelRetry = config }
}

// WithCompileOptions passes options to graph compilation, e.g. a checkpointer.
func WithCompileOptions(opts ...graph.CompileOption) CreateAgentOption {
	return func(o *CreateAgentOptions) { o.CompileOptions = append(o.CompileOptions, opts...) }
}

// CreateAgent builds a tool-calling agent: the model node "llm" either answers
// or requests tool calls, which the "action" node runs before handing the
// results back to the model.
//
// Messages are merged by identity, so a message written with the id of an
// existing one replaces it.
func CreateAgent(model llms.ChatModel, inputTools []tools.Tool, opts ...CreateAgentOption) (*graph.Runnable, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	options := &CreateAgentOptions{}
	for _, opt := range opts {
		opt(options)
	}

	executor := NewToolExecutor(inputTools)
	specs := llms.ToolSpecs(executor.Tools())

	callModel := func(ctx context.Context, state graph.State) (graph.State, error) {
		msgs := graph.MessagesFrom(state)
		if options.SystemMessage != "" {
			msgs = append([]graph.Message{graph.SystemMessage(options.SystemMessage)}, msgs...)
		}
		if options.StateModifier != nil {
			msgs = options.StateModifier(msgs)
		}
		reply, err := model.Generate(ctx, msgs, specs)
		if err != nil {
			return nil, err
		}
		return graph.State{graph.MessagesKey: []graph.Message{reply}}, nil
	}

	workflow := graph.NewMessageGraph()
	if options.ModelRetry != nil {
		workflow.AddNodeWithRetry(AgentNode, "Model call", callModel, options.ModelRetry)
	} else {
		workflow.AddNode(AgentNode, "Model call", callModel)
	}
	workflow.AddNode(ActionNode, "Tool execution", executor.Node())

	workflow.SetEntryPoint(AgentNode)
	workflow.AddConditionalEdge(AgentNode, graph.WhenBool(hasToolCalls), map[string]string{
		"true":  ActionNode,
		"false": graph.END,
	})
	workflow.AddEdge(ActionNode, AgentNode)

	compileOpts := options.CompileOptions
	if options.ApproveActions {
		compileOpts = append(compileOpts, graph.WithInterruptBefore(ActionNode))
	}
	return workflow.Compile(compileOpts...)
}

func hasToolCalls(_ context.Context, state graph.State) bool {
	last, ok := graph.LastMessage(state)
	return ok && last.HasToolCalls()
}
