package prebuilt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
}

func (s *fakeSearcher) Search(_ context.Context, query string, maxResults int) ([]tool.Document, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	docs := make([]tool.Document, 0, maxResults)
	for i := range maxResults {
		docs = append(docs, tool.Document{Title: query, Content: fmt.Sprintf("%s-%d", query, i+1)})
	}
	return docs, nil
}

// essayModel answers by the system prompt it receives.
func essayModel(drafts *int) llms.ChatModel {
	return llms.ChatModelFunc(func(_ context.Context, msgs []graph.Message, _ []llms.ToolSpec) (graph.Message, error) {
		system := msgs[0].Content
		switch {
		case system == PlanPrompt:
			return graph.AIMessage("outline"), nil
		case strings.HasPrefix(system, ResearchPlanPrompt):
			return graph.AIMessage(`{"queries": ["langchain", "langsmith"]}`), nil
		case strings.HasPrefix(system, ResearchCritiquePrompt):
			return graph.AIMessage("- tracing tools"), nil
		case system == ReflectionPrompt:
			return graph.AIMessage("needs depth"), nil
		default:
			*drafts++
			return graph.AIMessage(fmt.Sprintf("draft %d", *drafts)), nil
		}
	})
}

func TestEssayWriter(t *testing.T) {
	ctx := context.Background()
	drafts := 0
	searcher := &fakeSearcher{}

	writer, err := CreateEssayWriter(EssayWriterConfig{Model: essayModel(&drafts), Searcher: searcher})
	require.NoError(t, err)

	res, err := writer.Invoke(ctx, EssayInput("what is the difference between langchain and langsmith", 2), "essay")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusDone, res.Status)

	assert.Equal(t, 2, drafts)
	assert.Equal(t, "draft 2", res.State[DraftKey])
	assert.Equal(t, "needs depth", res.State[CritiqueKey])
	assert.Equal(t, 3, res.State[RevisionNumberKey])
	assert.Equal(t, []string{"langchain-1", "langchain-2", "langsmith-1", "langsmith-2", "tracing tools-1", "tracing tools-2"}, res.State[ContentKey])
	assert.Equal(t, []string{"langchain", "langsmith", "tracing tools"}, searcher.queries)

	var writers []string
	for snap, err := range writer.History(ctx, "essay") {
		require.NoError(t, err)
		writers = append(writers, snap.Writer)
	}
	assert.ElementsMatch(t, []string{graph.START, PlannerNode, ResearchPlanNode, GenerateNode, ReflectNode, ResearchCritiqueNode, GenerateNode}, writers)

	snap, err := writer.GetState(ctx, "essay")
	require.NoError(t, err)
	assert.Equal(t, res.State[ContentKey], snap.Values[ContentKey])
}

func TestEssayWriterSingleDraft(t *testing.T) {
	drafts := 0
	writer, err := CreateEssayWriter(EssayWriterConfig{Model: essayModel(&drafts)})
	require.NoError(t, err)

	res, err := writer.Invoke(context.Background(), EssayInput("topic", 1), "essay")
	require.NoError(t, err)
	assert.Equal(t, 1, drafts)
	assert.Nil(t, res.State[ContentKey])
	assert.NotContains(t, res.State, CritiqueKey)
}

func TestEssayWriterRequiresModel(t *testing.T) {
	_, err := CreateEssayWriter(EssayWriterConfig{})
	assert.Error(t, err)
}

func TestParseQueries(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseQueries(`{"queries": ["a", "b"]}`, 3))
	assert.Equal(t, []string{"a", "b"}, ParseQueries("```json\n[\"a\", \"b\", \"c\"]\n```", 2))
	assert.Equal(t, []string{"2024 elections", "polls", "turnout"}, ParseQueries("1. 2024 elections\n- polls\n\n* turnout", 3))
	assert.Empty(t, ParseQueries("", 3))
}
