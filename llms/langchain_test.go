package llms

import (
	"context"
	"errors"
	"testing"

	"github.com/smallnest/agentgraph/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lc "github.com/tmc/langchaingo/llms"
)

type mockLLM struct {
	resp     *lc.ContentResponse
	err      error
	messages []lc.MessageContent
	opts     lc.CallOptions
}

func (m *mockLLM) GenerateContent(_ context.Context, messages []lc.MessageContent, options ...lc.CallOption) (*lc.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	return m.resp, m.err
}

func (m *mockLLM) Call(ctx context.Context, prompt string, options ...lc.CallOption) (string, error) {
	return lc.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChainModelConvertsConversation(t *testing.T) {
	mock := &mockLLM{resp: &lc.ContentResponse{Choices: []*lc.ContentChoice{{Content: "done"}}}}
	model := NewLangChainModel(mock)

	history := []graph.Message{
		graph.SystemMessage("be brief"),
		graph.HumanMessage("weather in sf?"),
		graph.AIMessage("", graph.ToolCall{ID: "call_1", Name: "search", Args: map[string]any{"input": "sf"}}),
		graph.ToolMessage("call_1", "search", "sunny"),
	}
	reply, err := model.Generate(context.Background(), history, nil)
	require.NoError(t, err)
	assert.Equal(t, graph.RoleAI, reply.Role)
	assert.Equal(t, "done", reply.Content)
	assert.Empty(t, reply.ToolCalls)

	require.Len(t, mock.messages, 4)
	assert.Equal(t, lc.ChatMessageTypeSystem, mock.messages[0].Role)
	assert.Equal(t, lc.ChatMessageTypeHuman, mock.messages[1].Role)
	assert.Equal(t, lc.ChatMessageTypeAI, mock.messages[2].Role)
	assert.Equal(t, lc.ChatMessageTypeTool, mock.messages[3].Role)

	require.Len(t, mock.messages[2].Parts, 1)
	call, ok := mock.messages[2].Parts[0].(lc.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "search", call.FunctionCall.Name)
	assert.JSONEq(t, `{"input":"sf"}`, call.FunctionCall.Arguments)

	resp, ok := mock.messages[3].Parts[0].(lc.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call_1", resp.ToolCallID)
	assert.Equal(t, "sunny", resp.Content)

	assert.Empty(t, mock.opts.Tools)
}

func TestLangChainModelToolCalls(t *testing.T) {
	mock := &mockLLM{resp: &lc.ContentResponse{Choices: []*lc.ContentChoice{{
		ToolCalls: []lc.ToolCall{
			{ID: "a", Type: "function", FunctionCall: &lc.FunctionCall{Name: "search", Arguments: `{"input":"go"}`}},
			{ID: "b", Type: "function", FunctionCall: &lc.FunctionCall{Name: "search", Arguments: "plain text"}},
			{ID: "c", Type: "function"},
		},
	}}}}
	model := NewLangChainModel(mock)

	spec := ToolSpec{Name: "search", Description: "web search", Parameters: map[string]any{"type": "object"}}
	reply, err := model.Generate(context.Background(), []graph.Message{graph.HumanMessage("hi")}, []ToolSpec{spec})
	require.NoError(t, err)

	require.Len(t, reply.ToolCalls, 2)
	assert.Equal(t, graph.ToolCall{ID: "a", Name: "search", Args: map[string]any{"input": "go"}}, reply.ToolCalls[0])
	assert.Equal(t, map[string]any{"input": "plain text"}, reply.ToolCalls[1].Args)

	require.Len(t, mock.opts.Tools, 1)
	assert.Equal(t, "search", mock.opts.Tools[0].Function.Name)
	assert.Equal(t, "web search", mock.opts.Tools[0].Function.Description)
}

func TestLangChainModelErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewLangChainModel(&mockLLM{resp: &lc.ContentResponse{}}).Generate(ctx, []graph.Message{graph.HumanMessage("hi")}, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("boom")
	_, err = NewLangChainModel(&mockLLM{err: boom}).Generate(ctx, []graph.Message{graph.HumanMessage("hi")}, nil)
	assert.ErrorIs(t, err, boom)

	_, err = NewLangChainModel(&mockLLM{}).Generate(ctx, []graph.Message{{Role: "narrator"}}, nil)
	assert.ErrorContains(t, err, "unsupported message role")
}

func TestToolSpecFromTool(t *testing.T) {
	spec := ToolSpecFromTool(fakeTool{})
	assert.Equal(t, "calculator", spec.Name)
	assert.Equal(t, "adds numbers", spec.Description)
	assert.Equal(t, []string{InputKey}, spec.Parameters["required"])
	assert.Len(t, ToolSpecs(nil), 0)
}

func TestDecodeArgs(t *testing.T) {
	assert.Equal(t, map[string]any{}, decodeArgs(""))
	assert.Equal(t, map[string]any{"a": 1.0}, decodeArgs(`{"a":1}`))
	assert.Equal(t, map[string]any{InputKey: "[1,2]"}, decodeArgs("[1,2]"))

	s, err := encodeArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", s)
}

func TestScriptedModel(t *testing.T) {
	model := NewScriptedModel(graph.AIMessage("one"))
	reply, err := model.Generate(context.Background(), []graph.Message{graph.HumanMessage("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "one", reply.Content)

	_, err = model.Generate(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "no reply for call 2")
	assert.Len(t, model.Calls(), 2)
}

type fakeTool struct{}

func (fakeTool) Name() string        { return "calculator" }
func (fakeTool) Description() string { return "adds numbers" }
func (fakeTool) Call(context.Context, string) (string, error) {
	return "", nil
}
