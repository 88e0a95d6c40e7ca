package prebuilt

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/tools"
)

// MockTool echoes its input.
type MockTool struct {
	name  string
	calls atomic.Int32
}

func (t *MockTool) Name() string        { return t.name }
func (t *MockTool) Description() string { return "A mock tool" }
func (t *MockTool) Call(_ context.Context, input string) (string, error) {
	t.calls.Add(1)
	return fmt.Sprintf("Executed %s with %s", t.name, input), nil
}

func toolCallReply(id, name, input string) graph.Message {
	return graph.AIMessage("", graph.ToolCall{ID: id, Name: name, Args: map[string]any{llms.InputKey: input}})
}

func humanInput(text string) graph.State {
	return graph.State{graph.MessagesKey: []graph.Message{graph.HumanMessage(text)}}
}

func TestCreateAgent(t *testing.T) {
	ctx := context.Background()
	mockTool := &MockTool{name: "test-tool"}
	model := llms.NewScriptedModel(
		toolCallReply("call-1", "test-tool", "input-1"),
		graph.AIMessage("Final Answer"),
	)

	agent, err := CreateAgent(model, []tools.Tool{mockTool}, WithSystemMessage("You are a helpful assistant."))
	require.NoError(t, err)

	res, err := agent.Invoke(ctx, humanInput("Run tool"), "t1")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusDone, res.Status)

	msgs := graph.MessagesFrom(res.State)
	require.Len(t, msgs, 4)
	assert.Equal(t, graph.RoleHuman, msgs[0].Role)
	assert.True(t, msgs[1].HasToolCalls())
	assert.Equal(t, graph.RoleTool, msgs[2].Role)
	assert.Equal(t, "call-1", msgs[2].ToolCallID)
	assert.Equal(t, "Executed test-tool with input-1", msgs[2].Content)
	assert.Equal(t, "Final Answer", msgs[3].Content)
	for _, m := range msgs {
		assert.NotEmpty(t, m.ID)
	}

	calls := model.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, graph.RoleSystem, calls[0][0].Role)
	assert.Len(t, calls[1], 4)

	// input, llm, action, llm
	n := 0
	for _, err := range agent.History(ctx, "t1") {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 4, n)
}

func TestCreateAgent_ApprovalAndCorrection(t *testing.T) {
	ctx := context.Background()
	mockTool := &MockTool{name: "search"}
	model := llms.NewScriptedModel(
		toolCallReply("call-1", "search", "weather in sf"),
		graph.AIMessage("It is sunny"),
	)

	agent, err := CreateAgent(model, []tools.Tool{mockTool}, WithApproval())
	require.NoError(t, err)

	res, err := agent.Invoke(ctx, humanInput("Whats the weather in SF?"), "t1")
	require.NoError(t, err)
	require.True(t, res.Interrupted())
	assert.Equal(t, ActionNode, res.Next)
	assert.Zero(t, mockTool.calls.Load())

	snap, err := agent.GetState(ctx, "t1")
	require.NoError(t, err)
	last, ok := graph.LastMessage(snap.Values)
	require.True(t, ok)

	corrected := last
	corrected.ToolCalls = []graph.ToolCall{{ID: "call-1", Name: "search", Args: map[string]any{llms.InputKey: "current weather in LA"}}}
	_, err = agent.UpdateThreadState(ctx, "t1", graph.State{graph.MessagesKey: []graph.Message{corrected}}, "")
	require.NoError(t, err)

	snap, err = agent.GetState(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, ActionNode, snap.Next)
	require.Len(t, graph.MessagesFrom(snap.Values), 2)

	res, err = agent.Resume(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusDone, res.Status)

	msgs := graph.MessagesFrom(res.State)
	require.Len(t, msgs, 4)
	assert.Equal(t, "Executed search with current weather in LA", msgs[2].Content)
	assert.Equal(t, int32(1), mockTool.calls.Load())
}

func TestCreateAgent_UnknownTool(t *testing.T) {
	model := llms.NewScriptedModel(
		toolCallReply("call-1", "nope", "x"),
		graph.AIMessage("sorry"),
	)
	agent, err := CreateAgent(model, []tools.Tool{&MockTool{name: "search"}})
	require.NoError(t, err)

	res, err := agent.Invoke(context.Background(), humanInput("hi"), "t1")
	require.NoError(t, err)
	msgs := graph.MessagesFrom(res.State)
	require.Len(t, msgs, 4)
	assert.Equal(t, BadToolReply, msgs[2].Content)
}

func TestCreateAgent_ModelError(t *testing.T) {
	boom := errors.New("rate limited")
	model := llms.ChatModelFunc(func(context.Context, []graph.Message, []llms.ToolSpec) (graph.Message, error) {
		return graph.Message{}, boom
	})
	agent, err := CreateAgent(model, nil)
	require.NoError(t, err)

	_, err = agent.Invoke(context.Background(), humanInput("hi"), "t1")
	assert.ErrorIs(t, err, boom)
}

func TestCreateAgent_ModelRetry(t *testing.T) {
	var attempts atomic.Int32
	model := llms.ChatModelFunc(func(context.Context, []graph.Message, []llms.ToolSpec) (graph.Message, error) {
		if attempts.Add(1) == 1 {
			return graph.Message{}, errors.New("transient")
		}
		return graph.AIMessage("ok"), nil
	})
	agent, err := CreateAgent(model, nil, WithModelRetry(&graph.RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 1,
	}))
	require.NoError(t, err)

	res, err := agent.Invoke(context.Background(), humanInput("hi"), "t1")
	require.NoError(t, err)
	last, _ := graph.LastMessage(res.State)
	assert.Equal(t, "ok", last.Content)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestCreateAgent_StateModifier(t *testing.T) {
	model := llms.NewScriptedModel(graph.AIMessage("ok"))
	agent, err := CreateAgent(model, nil,
		WithSystemMessage("sys"),
		WithStateModifier(func(msgs []graph.Message) []graph.Message {
			return msgs[len(msgs)-1:]
		}),
	)
	require.NoError(t, err)

	_, err = agent.Invoke(context.Background(), humanInput("only me"), "t1")
	require.NoError(t, err)
	calls := model.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, "only me", calls[0][0].Content)
}

func TestCreateAgent_RequiresModel(t *testing.T) {
	_, err := CreateAgent(nil, nil)
	assert.Error(t, err)
}
