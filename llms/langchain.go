package llms

import (
	"context"
	"fmt"

	"github.com/smallnest/agentgraph/graph"
	lc "github.com/tmc/langchaingo/llms"
)

// LangChainModel adapts a langchaingo model, such as openai.New() or ollama.New(),
// to ChatModel.
type LangChainModel struct {
	model   lc.Model
	options []lc.CallOption
}

var _ ChatModel = (*LangChainModel)(nil)

// NewLangChainModel wraps model. The options are passed to every call.
func NewLangChainModel(model lc.Model, options ...lc.CallOption) *LangChainModel {
	return &LangChainModel{model: model, options: options}
}

// Generate implements ChatModel.
func (m *LangChainModel) Generate(ctx context.Context, messages []graph.Message, tools []ToolSpec) (graph.Message, error) {
	content, err := toLangChainMessages(messages)
	if err != nil {
		return graph.Message{}, err
	}

	opts := append([]lc.CallOption(nil), m.options...)
	if len(tools) > 0 {
		opts = append(opts, lc.WithTools(toLangChainTools(tools)))
	}

	resp, err := m.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return graph.Message{}, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return graph.Message{}, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	reply := graph.AIMessage(choice.Content)
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		reply.ToolCalls = append(reply.ToolCalls, graph.ToolCall{
			ID:   tc.ID,
			Name: tc.FunctionCall.Name,
			Args: decodeArgs(tc.FunctionCall.Arguments),
		})
	}
	return reply, nil
}

func toLangChainMessages(messages []graph.Message) ([]lc.MessageContent, error) {
	out := make([]lc.MessageContent, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case graph.RoleSystem:
			out = append(out, lc.TextParts(lc.ChatMessageTypeSystem, msg.Content))
		case graph.RoleHuman:
			out = append(out, lc.TextParts(lc.ChatMessageTypeHuman, msg.Content))
		case graph.RoleAI:
			mc := lc.MessageContent{Role: lc.ChatMessageTypeAI}
			if msg.Content != "" {
				mc.Parts = append(mc.Parts, lc.TextPart(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				args, err := encodeArgs(call.Args)
				if err != nil {
					return nil, err
				}
				mc.Parts = append(mc.Parts, lc.ToolCall{
					ID:   call.ID,
					Type: "function",
					FunctionCall: &lc.FunctionCall{
						Name:      call.Name,
						Arguments: args,
					},
				})
			}
			out = append(out, mc)
		case graph.RoleTool:
			out = append(out, lc.MessageContent{
				Role: lc.ChatMessageTypeTool,
				Parts: []lc.ContentPart{lc.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.Name,
					Content:    msg.Content,
				}},
			})
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return out, nil
}

func toLangChainTools(specs []ToolSpec) []lc.Tool {
	out := make([]lc.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, lc.Tool{
			Type: "function",
			Function: &lc.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return out
}
