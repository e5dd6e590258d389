package logic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/FahruddinZaimIbrahim/talkflow/dao"
	"github.com/FahruddinZaimIbrahim/talkflow/models"
	"github.com/FahruddinZaimIbrahim/talkflow/pkg/llm"
)

const (
	// MaxMessageLength bounds a single user message, in characters.
	MaxMessageLength = 4000

	// TitleMaxLength bounds derived conversation titles.
	TitleMaxLength = 50
)

// ChatLogic is the conversation-turn pipeline: it serializes access per
// conversation, assembles the context window, invokes the provider and
// persists the exchange plus usage accounting.
type ChatLogic struct {
	db         *gorm.DB
	convoDAO   *dao.ConversationDAO
	messageDAO *dao.MessageDAO
	usageDAO   *dao.UsageDAO
	provider   llm.Provider
	maxHistory int
	genOpts    llm.Options
	locks      *conversationLocks
}

func NewChatLogic(
	db *gorm.DB,
	convoDAO *dao.ConversationDAO,
	messageDAO *dao.MessageDAO,
	usageDAO *dao.UsageDAO,
	provider llm.Provider,
	maxHistory int,
	genOpts llm.Options,
) *ChatLogic {
	return &ChatLogic{
		db:         db,
		convoDAO:   convoDAO,
		messageDAO: messageDAO,
		usageDAO:   usageDAO,
		provider:   provider,
		maxHistory: maxHistory,
		genOpts:    genOpts,
		locks:      newConversationLocks(),
	}
}

// TurnUsage reports the token accounting of a single turn.
type TurnUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TurnResult is the outcome of a completed batch turn.
type TurnResult struct {
	ConversationID   uuid.UUID       `json:"conversation_id"`
	UserMessage      *models.Message `json:"user_message"`
	AssistantMessage *models.Message `json:"assistant_message"`
	Usage            TurnUsage       `json:"usage"`
}

func validateMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, MaxMessageLength)
	}
	return text, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// resolveLocked finds or builds the turn's conversation and returns it
// with its exclusive lock held. The caller must release the lock via
// l.locks.Unlock(convo.ID).
//
// A fresh conversation (isNew true) is not persisted here; the caller
// writes the row inside the turn's transaction so a failed turn leaves
// no empty conversation behind. No other request can know the new ID
// yet, so locking it first is race-free.
func (l *ChatLogic) resolveLocked(userID string, conversationID *uuid.UUID) (convo *models.Conversation, isNew bool, err error) {
	if conversationID != nil {
		l.locks.Lock(*conversationID)
		convo, err = l.convoDAO.GetByIDForUser(*conversationID, userID)
		if err != nil {
			l.locks.Unlock(*conversationID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, false, ErrConversationNotFound
			}
			return nil, false, err
		}
		return convo, false, nil
	}

	convo = &models.Conversation{
		ID:       uuid.New(),
		UserID:   userID,
		IsActive: true,
	}
	l.locks.Lock(convo.ID)
	return convo, true, nil
}

// finishTurn bumps the conversation timestamp, derives a title when this
// turn produced the conversation's second message, and updates the usage
// ledger. Runs inside the turn's transaction.
func (l *ChatLogic) finishTurn(tx *gorm.DB, convo *models.Conversation, userID, userText string, tokens int) error {
	convos := dao.NewConversationDAO(tx)
	messages := dao.NewMessageDAO(tx)

	if err := convos.Touch(convo.ID); err != nil {
		return err
	}

	if convo.Title == "" {
		count, err := messages.Count(convo.ID)
		if err != nil {
			return err
		}
		if count == 2 {
			title := truncateRunes(userText, TitleMaxLength)
			if err := convos.SetTitle(convo.ID, title); err != nil {
				return err
			}
			convo.Title = title
		}
	}

	return dao.NewUsageDAO(tx).Increment(userID, tokens)
}

// HandleTurn runs one batch turn: validate, resolve the conversation
// under its lock, build the context window, generate, then persist the
// user and assistant messages atomically together with the conversation
// update and the ledger increment. A provider failure aborts the turn
// with nothing written, including the conversation row of a first turn.
func (l *ChatLogic) HandleTurn(ctx context.Context, userID string, conversationID *uuid.UUID, text string) (*TurnResult, error) {
	text, err := validateMessage(text)
	if err != nil {
		return nil, err
	}

	convo, isNew, err := l.resolveLocked(userID, conversationID)
	if err != nil {
		return nil, err
	}
	defer l.locks.Unlock(convo.ID)

	var history []models.Message
	if !isNew {
		history, err = l.messageDAO.ListRecent(convo.ID, l.maxHistory)
		if err != nil {
			return nil, err
		}
	}

	completion, err := l.provider.Generate(ctx, buildContext(history, l.maxHistory, text), l.genOpts)
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			return nil, err
		}
		slog.Error("chat generation failed",
			"user", userID, "conversation", convo.ID, "provider", l.provider.Name(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	userMsg := &models.Message{
		ConversationID: convo.ID,
		Role:           models.RoleUser,
		Content:        text,
	}
	assistantMsg := &models.Message{
		ConversationID:   convo.ID,
		Role:             models.RoleAssistant,
		Content:          completion.Content,
		TokensUsed:       completion.TotalTokens,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		ModelUsed:        completion.Model,
		FinishReason:     completion.FinishReason,
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		if isNew {
			if err := dao.NewConversationDAO(tx).Create(convo); err != nil {
				return err
			}
		}
		messages := dao.NewMessageDAO(tx)
		// user first so the chronological order matches the exchange
		if err := messages.Create(userMsg); err != nil {
			return err
		}
		if err := messages.Create(assistantMsg); err != nil {
			return err
		}
		return l.finishTurn(tx, convo, userID, text, completion.TotalTokens)
	})
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		ConversationID:   convo.ID,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Usage: TurnUsage{
			PromptTokens:     completion.PromptTokens,
			CompletionTokens: completion.CompletionTokens,
			TotalTokens:      completion.TotalTokens,
		},
	}, nil
}
