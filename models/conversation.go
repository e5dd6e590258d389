package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation represents a chat thread owned by a single user.
// Deleting via the API only flips IsActive; the retention sweeper
// hard-deletes inactive conversations later.
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"not null;index:idx_conversations_user_active" json:"user_id"`
	Title     string    `json:"title"`
	IsActive  bool      `gorm:"not null;default:true;index:idx_conversations_user_active" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}
