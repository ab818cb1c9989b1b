// internal/protocol/message.go
package protocol

// Roles used in a transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the conversation transcript sent to a model provider.
// Which fields are meaningful depends on Role:
//   - user/system: Content
//   - assistant: Content and/or ToolCalls
//   - tool: ToolName, ToolCallID, Content, IsError
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolName   string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage records a model turn. text may be empty when the turn
// only requested tools.
func AssistantMessage(text string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

// ToolResultMessage answers the tool call identified by call.
func ToolResultMessage(call ToolCall, result string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		ToolName:   call.Name,
		ToolCallID: call.ID,
		Content:    result,
		IsError:    isError,
	}
}
