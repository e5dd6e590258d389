package dao

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/FahruddinZaimIbrahim/talkflow/models"
)

// ConversationDAO handles conversation-related database operations
type ConversationDAO struct {
	db *gorm.DB
}

func NewConversationDAO(db *gorm.DB) *ConversationDAO {
	return &ConversationDAO{db: db}
}

// Create persists a conversation, assigning its ID when unset
func (d *ConversationDAO) Create(convo *models.Conversation) error {
	if convo.ID == uuid.Nil {
		convo.ID = uuid.New()
	}
	return d.db.Create(convo).Error
}

// GetByIDForUser retrieves a conversation scoped to its owner. Returns
// gorm.ErrRecordNotFound when absent or owned by someone else.
func (d *ConversationDAO) GetByIDForUser(id uuid.UUID, userID string) (*models.Conversation, error) {
	var convo models.Conversation
	if err := d.db.Where("id = ? AND user_id = ?", id, userID).First(&convo).Error; err != nil {
		return nil, err
	}
	return &convo, nil
}

// ListActive retrieves a user's active conversations, most recently
// updated first.
func (d *ConversationDAO) ListActive(userID string) ([]models.Conversation, error) {
	var convos []models.Conversation
	err := d.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("updated_at DESC").
		Find(&convos).Error
	if err != nil {
		return nil, err
	}
	return convos, nil
}

// Search retrieves a user's active conversations whose title or message
// content contains the query string.
func (d *ConversationDAO) Search(userID, query string) ([]models.Conversation, error) {
	pattern := "%" + query + "%"
	sub := d.db.Model(&models.Message{}).Select("conversation_id").Where("content LIKE ?", pattern)

	var convos []models.Conversation
	err := d.db.Where("user_id = ? AND is_active = ?", userID, true).
		Where("title LIKE ? OR id IN (?)", pattern, sub).
		Order("updated_at DESC").
		Find(&convos).Error
	if err != nil {
		return nil, err
	}
	return convos, nil
}

// SoftDelete flips the active flag. The row stays until the retention
// sweeper picks it up.
func (d *ConversationDAO) SoftDelete(id uuid.UUID, userID string) error {
	res := d.db.Model(&models.Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Touch bumps the conversation's updated timestamp
func (d *ConversationDAO) Touch(id uuid.UUID) error {
	return d.db.Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

// SetTitle sets a conversation's title
func (d *ConversationDAO) SetTitle(id uuid.UUID, title string) error {
	return d.db.Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("title", title).Error
}

// PurgeInactiveBefore hard-deletes conversations that are soft-deleted
// and were last updated before the cutoff, cascading to their messages.
// Active conversations are never touched regardless of age.
func (d *ConversationDAO) PurgeInactiveBefore(cutoff time.Time) (int64, error) {
	var deleted int64
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		err := tx.Model(&models.Conversation{}).
			Where("is_active = ? AND updated_at < ?", false, cutoff).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("conversation_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
