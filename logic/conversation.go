package logic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/FahruddinZaimIbrahim/talkflow/dao"
	"github.com/FahruddinZaimIbrahim/talkflow/models"
)

// previewLength bounds the latest-message preview in listings.
const previewLength = 100

// ConversationLogic handles conversation management outside the turn
// pipeline: listing, detail, soft delete, search and export.
type ConversationLogic struct {
	convoDAO   *dao.ConversationDAO
	messageDAO *dao.MessageDAO
}

func NewConversationLogic(convoDAO *dao.ConversationDAO, messageDAO *dao.MessageDAO) *ConversationLogic {
	return &ConversationLogic{convoDAO: convoDAO, messageDAO: messageDAO}
}

// MessagePreview is a truncated view of a conversation's newest message.
type MessagePreview struct {
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is a listing entry.
type ConversationSummary struct {
	models.Conversation
	MessageCount  int64           `json:"message_count"`
	LatestMessage *MessagePreview `json:"latest_message"`
}

// ConversationDetail is a conversation with its full ordered history.
type ConversationDetail struct {
	models.Conversation
	Messages []models.Message `json:"messages"`
}

// summarize decorates listings with message counts and latest-message
// previews, using two grouped queries regardless of how many
// conversations are listed.
func (l *ConversationLogic) summarize(convos []models.Conversation) ([]ConversationSummary, error) {
	ids := make([]uuid.UUID, 0, len(convos))
	for _, convo := range convos {
		ids = append(ids, convo.ID)
	}

	counts, err := l.messageDAO.CountByConversations(ids)
	if err != nil {
		return nil, err
	}
	latest, err := l.messageDAO.LatestByConversations(ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(convos))
	for _, convo := range convos {
		summary := ConversationSummary{Conversation: convo, MessageCount: counts[convo.ID]}
		if msg, ok := latest[convo.ID]; ok {
			summary.LatestMessage = &MessagePreview{
				Content:   truncateRunes(msg.Content, previewLength),
				Role:      msg.Role,
				CreatedAt: msg.CreatedAt,
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// List retrieves the user's active conversations, newest-updated first,
// each with a message count and a preview of the latest message.
func (l *ConversationLogic) List(userID string) ([]ConversationSummary, error) {
	convos, err := l.convoDAO.ListActive(userID)
	if err != nil {
		return nil, err
	}
	return l.summarize(convos)
}

// Search retrieves active conversations matching the query against
// title or message content.
func (l *ConversationLogic) Search(userID, query string) ([]ConversationSummary, error) {
	convos, err := l.convoDAO.Search(userID, query)
	if err != nil {
		return nil, err
	}
	return l.summarize(convos)
}

// Get retrieves a conversation with its full message history, scoped to
// the owner.
func (l *ConversationLogic) Get(userID string, id uuid.UUID) (*ConversationDetail, error) {
	convo, err := l.convoDAO.GetByIDForUser(id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	messages, err := l.messageDAO.ListByConversation(convo.ID)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: *convo, Messages: messages}, nil
}

// History retrieves the ordered messages of a conversation the user
// owns.
func (l *ConversationLogic) History(userID string, id uuid.UUID) ([]models.Message, error) {
	detail, err := l.Get(userID, id)
	if err != nil {
		return nil, err
	}
	return detail.Messages, nil
}

// Delete soft-deletes a conversation; the data stays until the
// retention sweeper removes it.
func (l *ConversationLogic) Delete(userID string, id uuid.UUID) error {
	if err := l.convoDAO.SoftDelete(id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// ExportMarkdown renders a conversation as a human-readable transcript.
func (l *ConversationLogic) ExportMarkdown(userID string, id uuid.UUID) (string, error) {
	detail, err := l.Get(userID, id)
	if err != nil {
		return "", err
	}

	title := detail.Title
	if title == "" {
		title = detail.ID.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, msg := range detail.Messages {
		fmt.Fprintf(&b, "**%s:** %s\n\n", titleCase(msg.Role), msg.Content)
	}
	return b.String(), nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
