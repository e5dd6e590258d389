package logic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/FahruddinZaimIbrahim/talkflow/dao"
	"github.com/FahruddinZaimIbrahim/talkflow/models"
	"github.com/FahruddinZaimIbrahim/talkflow/pkg/llm"
)

// StreamEvent is one server-sent event of a streaming turn. Exactly one
// of Chunk, Done or Error is set.
type StreamEvent struct {
	Chunk     string `json:"chunk,omitempty"`
	Done      bool   `json:"done,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type streamState int

const (
	streamIdle streamState = iota
	streamAwaitingFirstChunk
	streamStreaming
	streamCompleted
	streamFailed
)

// streamSession tracks one in-flight streaming turn. It forwards
// fragments to the caller while accumulating the full text, and stops
// emitting once the caller is gone or a terminal state is reached.
type streamSession struct {
	emit       func(StreamEvent) error
	state      streamState
	clientGone bool
	content    strings.Builder
}

func (s *streamSession) send(ev StreamEvent) {
	if s.clientGone {
		return
	}
	if err := s.emit(ev); err != nil {
		// The client disconnected. Delivery stops here but the turn
		// keeps running so the persist decision stays consistent.
		s.clientGone = true
	}
}

func (s *streamSession) chunk(delta string) {
	s.content.WriteString(delta)
	s.state = streamStreaming
	s.send(StreamEvent{Chunk: delta})
}

func (s *streamSession) complete(messageID uuid.UUID) {
	s.state = streamCompleted
	s.send(StreamEvent{Done: true, MessageID: messageID.String()})
}

func (s *streamSession) fail(message string) {
	s.state = streamFailed
	s.send(StreamEvent{Error: message})
}

// StreamTurn runs one streaming turn. The user message (and, on a first
// turn, the conversation row) is persisted before streaming begins, so
// a mid-stream failure leaves a user message with no matching reply;
// that asymmetry is deliberate. Partial
// assistant output is delivered to the caller but never persisted — the
// assistant message is written only when the stream completes cleanly.
//
// The conversation lock is held for the session's lifetime and released
// on the terminal states.
func (l *ChatLogic) StreamTurn(ctx context.Context, userID string, conversationID *uuid.UUID, text string, emit func(StreamEvent) error) error {
	text, err := validateMessage(text)
	if err != nil {
		return err
	}

	convo, isNew, err := l.resolveLocked(userID, conversationID)
	if err != nil {
		return err
	}
	defer l.locks.Unlock(convo.ID)

	// Snapshot history before writing the user message so the context
	// window does not contain the new turn twice.
	var history []models.Message
	if !isNew {
		history, err = l.messageDAO.ListRecent(convo.ID, l.maxHistory)
		if err != nil {
			return err
		}
	}

	userMsg := &models.Message{
		ConversationID: convo.ID,
		Role:           models.RoleUser,
		Content:        text,
	}
	err = l.db.Transaction(func(tx *gorm.DB) error {
		if isNew {
			if err := dao.NewConversationDAO(tx).Create(convo); err != nil {
				return err
			}
		}
		return dao.NewMessageDAO(tx).Create(userMsg)
	})
	if err != nil {
		return err
	}

	session := &streamSession{emit: emit, state: streamAwaitingFirstChunk}

	// Detached from the request context: a client disconnect stops
	// delivery, not generation, so whether the assistant message gets
	// persisted never depends on the client's behavior.
	completion, err := l.provider.GenerateStream(context.WithoutCancel(ctx), buildContext(history, l.maxHistory, text), l.genOpts, func(delta string) error {
		session.chunk(delta)
		return nil
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			session.fail("llm provider is not configured")
			return err
		}
		slog.Error("stream generation failed",
			"user", userID, "conversation", convo.ID, "provider", l.provider.Name(), "error", err)
		session.fail("failed to generate response")
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	assistantMsg := &models.Message{
		ConversationID:   convo.ID,
		Role:             models.RoleAssistant,
		Content:          session.content.String(),
		TokensUsed:       completion.TotalTokens,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		ModelUsed:        completion.Model,
		FinishReason:     completion.FinishReason,
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := dao.NewMessageDAO(tx).Create(assistantMsg); err != nil {
			return err
		}
		return l.finishTurn(tx, convo, userID, text, completion.TotalTokens)
	})
	if err != nil {
		slog.Error("failed to persist streamed turn",
			"user", userID, "conversation", convo.ID, "error", err)
		session.fail("failed to persist response")
		return err
	}

	session.complete(assistantMsg.ID)
	return nil
}
