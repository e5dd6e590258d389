package logic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FahruddinZaimIbrahim/talkflow/dao"
	"github.com/FahruddinZaimIbrahim/talkflow/models"
)

func collectEvents(events *[]StreamEvent) func(StreamEvent) error {
	return func(ev StreamEvent) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestStreamTurn_ChunksConcatEqualsPersisted(t *testing.T) {
	db := newTestDB(t)
	provider := newMockProvider()
	l := newTestChatLogic(t, db, provider, 50)

	var events []StreamEvent
	err := l.StreamTurn(context.Background(), "user-1", nil, "Hello", collectEvents(&events))
	require.NoError(t, err)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.True(t, last.Done)
	require.NotEmpty(t, last.MessageID)

	var streamed strings.Builder
	for _, ev := range events[:len(events)-1] {
		require.NotEmpty(t, ev.Chunk)
		streamed.WriteString(ev.Chunk)
	}

	var assistant models.Message
	require.NoError(t, db.Where("id = ?", last.MessageID).First(&assistant).Error)
	assert.Equal(t, streamed.String(), assistant.Content)
	assert.Equal(t, models.RoleAssistant, assistant.Role)
	assert.Equal(t, 42, assistant.TokensUsed)

	// ledger counted the streamed turn too
	stats, err := dao.NewUsageDAO(db).Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalMessages)
	assert.Equal(t, int64(42), stats.TotalTokens)
}

func TestStreamTurn_MidStreamErrorKeepsUserMessageOnly(t *testing.T) {
	db := newTestDB(t)
	provider := newMockProvider()
	provider.failAfter = 2
	provider.streamErr = errors.New("connection reset")
	l := newTestChatLogic(t, db, provider, 50)

	var events []StreamEvent
	err := l.StreamTurn(context.Background(), "user-1", nil, "Hello", collectEvents(&events))
	assert.ErrorIs(t, err, ErrGenerationFailed)

	// two chunks were delivered, then the error event
	require.Len(t, events, 3)
	assert.NotEmpty(t, events[0].Chunk)
	assert.NotEmpty(t, events[1].Chunk)
	assert.NotEmpty(t, events[2].Error)

	// the user message survives; no partial assistant message is stored
	var messages []models.Message
	require.NoError(t, db.Order("created_at ASC").Find(&messages).Error)
	require.Len(t, messages, 1)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "Hello", messages[0].Content)
}

func TestStreamTurn_ClientDisconnectStillPersists(t *testing.T) {
	db := newTestDB(t)
	provider := newMockProvider()
	l := newTestChatLogic(t, db, provider, 50)

	// the client vanishes after the first chunk
	delivered := 0
	emit := func(ev StreamEvent) error {
		delivered++
		if delivered >= 1 {
			return errors.New("client gone")
		}
		return nil
	}

	err := l.StreamTurn(context.Background(), "user-1", nil, "Hello", emit)
	require.NoError(t, err)

	// delivery stopped after the failed emit
	assert.Equal(t, 1, delivered)

	// the full reply was still persisted
	var assistant models.Message
	require.NoError(t, db.Where("role = ?", models.RoleAssistant).First(&assistant).Error)
	assert.Equal(t, strings.Join(provider.chunks, ""), assistant.Content)
}

func TestStreamTurn_InvalidInput(t *testing.T) {
	db := newTestDB(t)
	l := newTestChatLogic(t, db, newMockProvider(), 50)

	var events []StreamEvent
	err := l.StreamTurn(context.Background(), "user-1", nil, "   ", collectEvents(&events))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, events)

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestStreamTurn_OtherUsersConversation(t *testing.T) {
	db := newTestDB(t)
	l := newTestChatLogic(t, db, newMockProvider(), 50)

	seeded, err := l.HandleTurn(context.Background(), "owner", nil, "seed")
	require.NoError(t, err)

	var events []StreamEvent
	err = l.StreamTurn(context.Background(), "intruder", &seeded.ConversationID, "Hi", collectEvents(&events))
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Empty(t, events)

	// no stray user message on the foreign conversation
	count, err := dao.NewMessageDAO(db).Count(seeded.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestStreamTurn_DerivesTitle(t *testing.T) {
	db := newTestDB(t)
	l := newTestChatLogic(t, db, newMockProvider(), 50)

	var events []StreamEvent
	require.NoError(t, l.StreamTurn(context.Background(), "user-1", nil, "What is the capital of France?", collectEvents(&events)))

	var convo models.Conversation
	require.NoError(t, db.First(&convo).Error)
	assert.Equal(t, "What is the capital of France?", convo.Title)
}
