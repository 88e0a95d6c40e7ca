package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/prebuilt"
	"github.com/smallnest/agentgraph/tool"
)

// offlineSearch returns canned documents.
type offlineSearch struct{}

var _ tool.SearchTool = offlineSearch{}

func (offlineSearch) Name() string { return "offline_search" }

func (offlineSearch) Description() string {
	return "A search engine returning canned results. Input should be a search query."
}

func (offlineSearch) Search(_ context.Context, query string, maxResults int) ([]tool.Document, error) {
	docs := make([]tool.Document, 0, max(maxResults, 1))
	for i := range max(maxResults, 1) {
		docs = append(docs, tool.Document{
			Title:   query,
			URL:     fmt.Sprintf("https://example.com/%d", i+1),
			Content: fmt.Sprintf("Offline result %d for %q.", i+1, query),
		})
	}
	return docs, nil
}

func (s offlineSearch) Call(ctx context.Context, input string) (string, error) {
	docs, err := s.Search(ctx, input, 2)
	if err != nil {
		return "", err
	}
	return tool.FormatDocuments(docs), nil
}

// offlineModel answers every lesson deterministically.
func offlineModel() llms.ChatModel {
	return llms.ChatModelFunc(func(_ context.Context, msgs []graph.Message, specs []llms.ToolSpec) (graph.Message, error) {
		if len(msgs) == 0 {
			return graph.Message{}, llms.ErrEmptyResponse
		}
		system, last := msgs[0].Content, msgs[len(msgs)-1]

		switch {
		case strings.HasPrefix(system, "You run in a loop of Thought"):
			return graph.AIMessage(reactReply(last.Content)), nil
		case len(specs) > 0:
			if last.Role == graph.RoleTool {
				return graph.AIMessage("Based on the search: " + last.Content), nil
			}
			return graph.AIMessage("", graph.ToolCall{
				ID:   "call_" + uuid.NewString()[:8],
				Name: specs[0].Name,
				Args: map[string]any{llms.InputKey: last.Content},
			}), nil
		case system == prebuilt.PlanPrompt:
			return graph.AIMessage("I. Introduction\nII. Background\nIII. Comparison\nIV. Conclusion"), nil
		case strings.HasPrefix(system, prebuilt.ResearchPlanPrompt), strings.HasPrefix(system, prebuilt.ResearchCritiquePrompt):
			return graph.AIMessage(fmt.Sprintf(`{"queries": [%q]}`, firstLine(last.Content))), nil
		case system == prebuilt.ReflectionPrompt:
			return graph.AIMessage("Add more depth to the comparison section."), nil
		default:
			notes := strings.Count(system, "Offline result")
			return graph.AIMessage(fmt.Sprintf("Essay on %q using %d research notes.", firstLine(last.Content), notes)), nil
		}
	})
}

func reactReply(input string) string {
	if obs, ok := strings.CutPrefix(input, "Observation: "); ok {
		return "Answer: " + obs
	}
	lower := strings.ToLower(input)
	for breed := range dogWeights {
		if strings.Contains(lower, breed) {
			return fmt.Sprintf("Thought: I should look the dogs weight using average_dog_weight\nAction: average_dog_weight: %s\nPAUSE", breed)
		}
	}
	return "Answer: I can only answer questions about dog weights offline."
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
