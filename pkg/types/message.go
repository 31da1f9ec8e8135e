package types

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // instructions and constraints for the model
	RoleUser      MessageRole = "user"      // task state presented to the model
	RoleAssistant MessageRole = "assistant" // prior model output
)

// Message is a single entry in a model conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// NewSystemMessage creates a message with the system role.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a message with the user role.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a message with the assistant role.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}

// ModelInfo describes the capabilities of a configured model.
type ModelInfo struct {
	Name              string                 `json:"name"`
	Provider          string                 `json:"provider"`
	MaxTokens         int                    `json:"max_tokens"`
	SupportsStreaming bool                   `json:"supports_streaming"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}
