package dao

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/FahruddinZaimIbrahim/talkflow/models"
)

// UsageDAO handles per-user usage accounting
type UsageDAO struct {
	db *gorm.DB
}

func NewUsageDAO(db *gorm.DB) *UsageDAO {
	return &UsageDAO{db: db}
}

// Increment records one completed turn for the user: +1 message, +tokens
// tokens, last-request timestamp set to now. The counter update happens
// in the database so concurrent turns never lose an increment.
func (d *UsageDAO) Increment(userID string, tokens int) error {
	now := time.Now()
	stats := models.UserUsageStats{
		UserID:        userID,
		TotalMessages: 1,
		TotalTokens:   int64(tokens),
		LastRequestAt: now,
	}
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_messages":  gorm.Expr("total_messages + ?", 1),
			"total_tokens":    gorm.Expr("total_tokens + ?", tokens),
			"last_request_at": now,
			"updated_at":      now,
		}),
	}).Create(&stats).Error
}

// Get retrieves a user's usage stats, creating an empty entry on first
// access.
func (d *UsageDAO) Get(userID string) (*models.UserUsageStats, error) {
	var stats models.UserUsageStats
	err := d.db.Where(models.UserUsageStats{UserID: userID}).
		FirstOrCreate(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
