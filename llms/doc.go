// Package llms adapts language model clients to the ChatModel interface used by
// agentgraph agents.
//
// A ChatModel takes the conversation as []graph.Message plus the tools the
// model may call and returns the next message. Tool calls come back with their
// arguments decoded, ready for prebuilt.ToolExecutor.
//
//   - LangChainModel wraps any github.com/tmc/langchaingo llms.Model
//   - OpenAIModel uses github.com/sashabaranov/go-openai directly
//   - ScriptedModel replays canned replies for tests and offline runs
package llms
