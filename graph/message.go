package graph

// Message roles used by the agents in this module.
const (
	RoleSystem    = "system"
	RoleHuman     = "human"
	RoleAI        = "ai"
	RoleTool      = "tool"
	RoleAssistant = RoleAI
)

// ToolCall is a model request to invoke a tool.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Message is one entry of a conversation history.
// Its ID is the identity used by MergeByIDReducer: a later message with the same
// ID replaces the earlier one in place.
type Message struct {
	ID         string     `json:"id,omitempty"`
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Identity implements Identifiable.
func (m Message) Identity() string { return m.ID }

// SetIdentity assigns the identity used for merging.
func (m *Message) SetIdentity(id string) { m.ID = id }

// HasToolCalls reports whether the message asks for at least one tool call.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// HumanMessage builds a message from the user.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// SystemMessage builds a system prompt message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// AIMessage builds a model reply.
func AIMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAI, Content: content, ToolCalls: calls}
}

// ToolMessage builds the result of a tool call, tagged with the call id.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Name: name, Content: content}
}

// MessagesFrom returns the "messages" field of a state, or nil.
func MessagesFrom(state State) []Message {
	msgs, _ := state[MessagesKey].([]Message)
	return msgs
}

// LastMessage returns the last message of the "messages" field.
func LastMessage(state State) (Message, bool) {
	msgs := MessagesFrom(state)
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}
