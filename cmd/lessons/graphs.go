package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/prebuilt"
	"github.com/smallnest/agentgraph/tool"
	"github.com/tmc/langchaingo/tools"
)

// ResearchPrompt is the system prompt of the research agent.
const ResearchPrompt = `You are a smart research assistant. Use the search engine to look up information. ` +
	`You are allowed to make multiple calls (either together or in sequence). ` +
	`Only look up information when you are sure of what you want. ` +
	`If you need to look up some information before asking a follow up question, you are allowed to do that!`

var errNoModel = errors.New("model not available for this command")

// graphNames lists the graphs addressable by --graph.
var graphNames = []string{"agent", "essay"}

// buildGraph compiles a named graph. approve pauses the agent before tools run.
// A nil model builds the structure only, for commands that never run a node.
func (a *app) buildGraph(name string, model llms.ChatModel, approve bool) (*graph.Runnable, error) {
	var search tool.SearchTool = offlineSearch{}
	if model == nil {
		model = structureOnly()
	} else {
		var err error
		if search, err = a.searcher(); err != nil {
			return nil, err
		}
	}

	switch name {
	case "agent":
		opts := []prebuilt.CreateAgentOption{
			prebuilt.WithSystemMessage(ResearchPrompt),
			prebuilt.WithCompileOptions(a.compileOptions()...),
		}
		if approve {
			opts = append(opts, prebuilt.WithApproval())
		}
		return prebuilt.CreateAgent(model, []tools.Tool{search}, opts...)
	case "essay":
		return prebuilt.CreateEssayWriter(prebuilt.EssayWriterConfig{
			Model:           model,
			Searcher:        search,
			ResultsPerQuery: a.cfg.Search.MaxResults,
			Logger:          a.logger,
			CompileOptions:  a.compileOptions(),
		})
	default:
		return nil, fmt.Errorf("unknown graph %q, want one of %v", name, graphNames)
	}
}

// structureOnly is a model for commands that never call it.
func structureOnly() llms.ChatModel {
	return llms.ChatModelFunc(func(context.Context, []graph.Message, []llms.ToolSpec) (graph.Message, error) {
		return graph.Message{}, errNoModel
	})
}
