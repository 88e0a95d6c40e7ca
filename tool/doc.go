// Package tool provides the web search collaborators used by agentgraph agents.
//
// Every search backend implements Searcher, returning ordered Documents, and
// langchaingo's tools.Tool, so the same value can feed a research node that
// accumulates document contents or be handed to a tool-calling agent.
//
// # Available Tools
//
//   - TavilySearch: the Tavily search API (TAVILY_API_KEY)
//   - BraveSearch: the Brave Search API (BRAVE_API_KEY)
//
// # Example
//
//	search, err := tool.NewTavilySearch("", tool.WithTavilyMaxResults(2))
//	if err != nil {
//		return err
//	}
//
//	docs, err := search.Search(ctx, "weather in san francisco", 2)
//	for _, d := range docs {
//		fmt.Println(d.URL, d.Content)
//	}
//
//	// or as a tool for prebuilt.CreateAgent
//	agent, err := prebuilt.CreateAgent(model, []tools.Tool{search})
package tool
