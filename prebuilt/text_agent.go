package prebuilt

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/tmc/langchaingo/tools"
)

// ErrTurnLimit is returned when a TextAgent query runs out of turns.
var ErrTurnLimit = errors.New("turn limit reached")

// DefaultMaxTurns is the turn budget of a TextAgent query.
const DefaultMaxTurns = 5

var actionRe = regexp.MustCompile(`(?m)^Action: (\w+): (.*)$`)

const reactPromptHeader = `You run in a loop of Thought, Action, PAUSE, Observation.
At the end of the loop you output an Answer
Use Thought to describe your thoughts about the question you have been asked.
Use Action to run one of the actions available to you - then return PAUSE.
Observation will be the result of running those actions.

Your available actions are:
`

const reactPromptExample = `
Example session:

Question: How much does a Bulldog weigh?
Thought: I should look the dogs weight using average_dog_weight
Action: average_dog_weight: Bulldog
PAUSE

You will be called again with this:

Observation: A Bulldog weights 51 lbs

You then output:

Answer: A bulldog weights 51 lbs`

// ReActPrompt renders the Thought/Action/PAUSE/Observation system prompt
// listing the given tools as actions.
func ReActPrompt(actions []tools.Tool) string {
	var b strings.Builder
	b.WriteString(reactPromptHeader)
	for _, t := range actions {
		fmt.Fprintf(&b, "\n%s:\n%s\n", t.Name(), t.Description())
	}
	b.WriteString(reactPromptExample)
	return b.String()
}

// TextAgent is a prompt-driven ReAct agent. The model names actions in plain
// text ("Action: tool: input") and receives tool output as "Observation:"
// messages, so it needs no native tool calling.
type TextAgent struct {
	model    llms.ChatModel
	executor *ToolExecutor
	maxTurns int
	messages []graph.Message
}

// TextAgentOption configures a TextAgent.
type TextAgentOption func(*TextAgent)

// WithMaxTurns sets the number of model calls a query may make.
func WithMaxTurns(n int) TextAgentOption {
	return func(a *TextAgent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// NewTextAgent creates a TextAgent. An empty system prompt is replaced by
// ReActPrompt(actions).
func NewTextAgent(model llms.ChatModel, system string, actions []tools.Tool, opts ...TextAgentOption) *TextAgent {
	if system == "" {
		system = ReActPrompt(actions)
	}
	a := &TextAgent{
		model:    model,
		executor: NewToolExecutor(actions),
		maxTurns: DefaultMaxTurns,
		messages: []graph.Message{graph.SystemMessage(system)},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Call sends one user message and records the reply in the conversation.
func (a *TextAgent) Call(ctx context.Context, message string) (string, error) {
	a.messages = append(a.messages, graph.HumanMessage(message))
	reply, err := a.model.Generate(ctx, a.messages, nil)
	if err != nil {
		a.messages = a.messages[:len(a.messages)-1]
		return "", err
	}
	a.messages = append(a.messages, graph.AIMessage(reply.Content))
	return reply.Content, nil
}

// Query asks question and runs the actions the model requests until it replies
// without one. It fails with ErrTurnLimit when the budget is used up.
func (a *TextAgent) Query(ctx context.Context, question string) (string, error) {
	next := question
	for range a.maxTurns {
		result, err := a.Call(ctx, next)
		if err != nil {
			return "", err
		}

		action, input, ok := ParseAction(result)
		if !ok {
			return result, nil
		}
		observation, err := a.executor.Execute(ctx, ToolInvocation{Tool: action, ToolInput: input})
		if err != nil {
			return "", fmt.Errorf("action %s: %w", action, err)
		}
		next = "Observation: " + observation
	}
	return "", fmt.Errorf("%w after %d turns", ErrTurnLimit, a.maxTurns)
}

// Messages returns the conversation so far, system prompt first.
func (a *TextAgent) Messages() []graph.Message {
	return append([]graph.Message(nil), a.messages...)
}

// ParseAction returns the first "Action: name: input" line of a reply.
func ParseAction(reply string) (name, input string, ok bool) {
	m := actionRe.FindStringSubmatch(reply)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}
