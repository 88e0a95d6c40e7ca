package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/smallnest/agentgraph/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIModelGenerate(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant,
					ToolCalls: []openai.ToolCall{{
						ID:       "call_9",
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: "search", Arguments: `{"input":"langgraph"}`},
					}},
				},
			}},
		})
	}))
	defer srv.Close()

	model, err := NewOpenAIModel(WithAPIKey("test-key"), WithBaseURL(srv.URL), WithModel("test-model"))
	require.NoError(t, err)

	history := []graph.Message{
		graph.SystemMessage("sys"),
		graph.HumanMessage("find it"),
		graph.AIMessage("", graph.ToolCall{ID: "call_1", Name: "search", Args: map[string]any{"input": "x"}}),
		graph.ToolMessage("call_1", "search", "result"),
	}
	reply, err := model.Generate(context.Background(), history, []ToolSpec{{Name: "search", Parameters: map[string]any{"type": "object"}}})
	require.NoError(t, err)

	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call_9", reply.ToolCalls[0].ID)
	assert.Equal(t, map[string]any{"input": "langgraph"}, reply.ToolCalls[0].Args)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, got.Messages[2].Role)
	require.Len(t, got.Messages[2].ToolCalls, 1)
	assert.Equal(t, "call_1", got.Messages[2].ToolCalls[0].ID)
	assert.Equal(t, openai.ChatMessageRoleTool, got.Messages[3].Role)
	assert.Equal(t, "call_1", got.Messages[3].ToolCallID)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "search", got.Tools[0].Function.Name)
}

func TestOpenAIModelEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	model, err := NewOpenAIModel(WithAPIKey("k"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = model.Generate(context.Background(), []graph.Message{graph.HumanMessage("hi")}, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewOpenAIModelRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIModel()
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}
