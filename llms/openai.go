package llms

import (
	"context"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
	"github.com/smallnest/agentgraph/graph"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIModel calls the OpenAI chat completions API, or any compatible endpoint.
type OpenAIModel struct {
	client      *openai.Client
	model       string
	temperature float32
}

var _ ChatModel = (*OpenAIModel)(nil)

type openAIOptions struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float32
}

// OpenAIOption configures an OpenAIModel.
type OpenAIOption func(*openAIOptions)

// WithAPIKey sets the API key. The default is OPENAI_API_KEY.
func WithAPIKey(key string) OpenAIOption {
	return func(o *openAIOptions) { o.apiKey = key }
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = url }
}

// WithModel sets the model name.
func WithModel(model string) OpenAIOption {
	return func(o *openAIOptions) { o.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) OpenAIOption {
	return func(o *openAIOptions) { o.temperature = t }
}

// NewOpenAIModel creates an OpenAIModel.
func NewOpenAIModel(opts ...OpenAIOption) (*OpenAIModel, error) {
	o := &openAIOptions{
		apiKey: os.Getenv("OPENAI_API_KEY"),
		model:  DefaultOpenAIModel,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	cfg := openai.DefaultConfig(o.apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	return &OpenAIModel{
		client:      openai.NewClientWithConfig(cfg),
		model:       o.model,
		temperature: o.temperature,
	}, nil
}

// Generate implements ChatModel.
func (m *OpenAIModel) Generate(ctx context.Context, messages []graph.Message, tools []ToolSpec) (graph.Message, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: m.temperature,
	}
	for _, msg := range messages {
		cm, err := toOpenAIMessage(msg)
		if err != nil {
			return graph.Message{}, err
		}
		req.Messages = append(req.Messages, cm)
	}
	for _, s := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return graph.Message{}, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return graph.Message{}, ErrEmptyResponse
	}

	choice := resp.Choices[0].Message
	reply := graph.AIMessage(choice.Content)
	for _, tc := range choice.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, graph.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: decodeArgs(tc.Function.Arguments),
		})
	}
	return reply, nil
}

func toOpenAIMessage(msg graph.Message) (openai.ChatCompletionMessage, error) {
	switch msg.Role {
	case graph.RoleSystem:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content}, nil
	case graph.RoleHuman:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content}, nil
	case graph.RoleAI:
		cm := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
		for _, call := range msg.ToolCalls {
			args, err := encodeArgs(call.Args)
			if err != nil {
				return cm, err
			}
			cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
				ID:       call.ID,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: call.Name, Arguments: args},
			})
		}
		return cm, nil
	case graph.RoleTool:
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}, nil
	default:
		return openai.ChatCompletionMessage{}, fmt.Errorf("unsupported message role %q", msg.Role)
	}
}
