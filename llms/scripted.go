package llms

import (
	"context"
	"fmt"
	"sync"

	"github.com/smallnest/agentgraph/graph"
)

// ScriptedModel replays a fixed list of replies, one per call. It records the
// conversations it was given and is used for tests and offline runs.
type ScriptedModel struct {
	mu      sync.Mutex
	replies []graph.Message
	calls   [][]graph.Message
}

var _ ChatModel = (*ScriptedModel)(nil)

// NewScriptedModel creates a model answering with replies in order.
func NewScriptedModel(replies ...graph.Message) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// Generate implements ChatModel.
func (m *ScriptedModel) Generate(_ context.Context, messages []graph.Message, _ []ToolSpec) (graph.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]graph.Message(nil), messages...))
	if len(m.calls) > len(m.replies) {
		return graph.Message{}, fmt.Errorf("scripted model has no reply for call %d", len(m.calls))
	}
	return m.replies[len(m.calls)-1], nil
}

// Calls returns the conversations received so far.
func (m *ScriptedModel) Calls() [][]graph.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]graph.Message(nil), m.calls...)
}
