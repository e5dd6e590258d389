package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single message in a conversation. Token usage
// fields are only populated on assistant messages.
type Message struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID   uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_convo_created" json:"conversation_id"`
	Role             string    `gorm:"not null" json:"role"`
	Content          string    `gorm:"not null" json:"content"`
	TokensUsed       int       `json:"tokens_used"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	ModelUsed        string    `json:"model_used"`
	FinishReason     string    `json:"finish_reason"`
	CreatedAt        time.Time `gorm:"index:idx_messages_convo_created" json:"created_at"`
}
