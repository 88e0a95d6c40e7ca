// Package prebuilt provides ready-to-use agents built on the graph package.
//
// # Available Agents
//
// ## Tool-calling agent
// CreateAgent builds the two-node loop "llm" -> "action" -> "llm" that ends when
// the model replies without tool calls. Messages are merged by identity, so a
// paused tool call can be edited in place before it runs.
//
//	model, _ := llms.NewOpenAIModel()
//	search, _ := tool.NewTavilySearch("")
//
//	agent, err := prebuilt.CreateAgent(model, []tools.Tool{search},
//		prebuilt.WithSystemMessage("You are a smart research assistant."),
//		prebuilt.WithApproval(),
//		prebuilt.WithCompileOptions(graph.WithCheckpointer(store)),
//	)
//
//	res, err := agent.Invoke(ctx, graph.State{
//		"messages": []graph.Message{graph.HumanMessage("What is the weather in SF?")},
//	}, "thread-1")
//	if res.Interrupted() {
//		// inspect res.State, then approve
//		res, err = agent.Resume(ctx, "thread-1")
//	}
//
// ## Text ReAct agent
// TextAgent runs the Thought/Action/PAUSE/Observation loop over plain text for
// models without tool calling.
//
// ## Essay writer
// CreateEssayWriter plans, researches, drafts and critiques an essay until
// max_revisions drafts have been written. Research content accumulates in the
// "content" field.
//
// # Tool Execution
//
// ToolExecutor runs langchaingo tools by name and turns each result into a tool
// message tagged with the id of the call that requested it.
package prebuilt
