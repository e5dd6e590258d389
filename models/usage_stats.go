package models

import "time"

// UserUsageStats tracks per-user API usage. Counters only ever go up;
// they are bumped once per completed turn.
type UserUsageStats struct {
	UserID        string    `gorm:"primaryKey" json:"user_id"`
	TotalMessages int64     `gorm:"not null;default:0" json:"total_messages"`
	TotalTokens   int64     `gorm:"not null;default:0" json:"total_tokens"`
	LastRequestAt time.Time `json:"last_request_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
