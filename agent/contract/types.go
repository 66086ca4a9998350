package contract

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one message in the conversation log. Order is append-only and
// chronological. A tool-role turn always references a ToolCallID emitted by
// a preceding assistant turn.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-issued request to invoke a named local action.
// Arguments arrive as the raw JSON string produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes one callable action exposed to the model.
// Parameters is a JSON-schema object; changing a tool's signature is a
// breaking change for the conversation protocol.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CompletionRequest is one chat-completion call. Tools may be nil for a
// tool-free call.
type CompletionRequest struct {
	Messages   []Turn
	Tools      []ToolDefinition
	ToolChoice string
	MaxTokens  int64
}

// CompletionResult carries the assistant reply: plain content, tool calls,
// or both.
type CompletionResult struct {
	Content   string
	ToolCalls []ToolCall
}

// StoredVector is one (id, vector_json) row pulled from a vector source.
type StoredVector struct {
	ID         int64
	VectorJSON string
}
