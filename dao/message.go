package dao

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/FahruddinZaimIbrahim/talkflow/models"
)

// MessageDAO handles message-related database operations
type MessageDAO struct {
	db *gorm.DB
}

func NewMessageDAO(db *gorm.DB) *MessageDAO {
	return &MessageDAO{db: db}
}

// Create persists a message, assigning its ID
func (d *MessageDAO) Create(msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	return d.db.Create(msg).Error
}

// ListByConversation retrieves all messages in a conversation in
// chronological order.
func (d *MessageDAO) ListByConversation(conversationID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ListRecent retrieves the most recent limit messages of a conversation
// in chronological order.
func (d *MessageDAO) ListRecent(conversationID uuid.UUID, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// reverse back into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountByConversations returns per-conversation message counts for the
// given ids in one grouped query. Conversations with no messages are
// absent from the map.
func (d *MessageDAO) CountByConversations(ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		ConversationID uuid.UUID
		Total          int64
	}
	err := d.db.Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS total").
		Where("conversation_id IN ?", ids).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ConversationID] = row.Total
	}
	return counts, nil
}

// LatestByConversations returns each conversation's newest message,
// keyed by conversation id, using a single query against the grouped
// maxima. Conversations with no messages are absent from the map.
func (d *MessageDAO) LatestByConversations(ids []uuid.UUID) (map[uuid.UUID]models.Message, error) {
	latest := make(map[uuid.UUID]models.Message, len(ids))
	if len(ids) == 0 {
		return latest, nil
	}

	newest := d.db.Model(&models.Message{}).
		Select("conversation_id AS cid, MAX(created_at) AS max_created").
		Where("conversation_id IN ?", ids).
		Group("conversation_id")

	var messages []models.Message
	err := d.db.Model(&models.Message{}).
		Joins("JOIN (?) newest ON messages.conversation_id = newest.cid AND messages.created_at = newest.max_created", newest).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// timestamp ties can join more than one row per conversation; keep one
	for _, msg := range messages {
		if _, ok := latest[msg.ConversationID]; !ok {
			latest[msg.ConversationID] = msg
		}
	}
	return latest, nil
}

// Count returns the number of messages in a conversation
func (d *MessageDAO) Count(conversationID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}
