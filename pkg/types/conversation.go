package types

// Message roles used throughout the chat pipeline.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage is the usage triple reported by a chat-completion provider,
// plus the local estimate for the assembled input.
type TokenUsage struct {
	EstimatedInputTokens int `json:"estimated_input_tokens"`
	PromptTokens         int `json:"prompt_tokens"`
	CompletionTokens     int `json:"completion_tokens"`
	TotalTokens          int `json:"total_tokens"`
}

// ConversationSummary describes an exported conversation (title-level view).
type ConversationSummary struct {
	ConversationID string  `json:"conversation_id"`
	Title          string  `json:"title"`
	CreateTime     float64 `json:"create_time,omitempty"`
	UpdateTime     float64 `json:"update_time,omitempty"`
	MessageCount   int     `json:"message_count"`
}

// ConversationDetail is a fully parsed exported conversation.
type ConversationDetail struct {
	ConversationID string        `json:"conversation_id"`
	Title          string        `json:"title"`
	Messages       []ChatMessage `json:"messages"`
	CreateTime     float64       `json:"create_time,omitempty"`
	UpdateTime     float64       `json:"update_time,omitempty"`
}
