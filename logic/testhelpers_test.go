package logic

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/FahruddinZaimIbrahim/talkflow/dao"
	"github.com/FahruddinZaimIbrahim/talkflow/models"
	"github.com/FahruddinZaimIbrahim/talkflow/pkg/llm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Conversation{}, &models.Message{}, &models.UserUsageStats{}))
	return db
}

// mockProvider is a scriptable llm.Provider for pipeline tests.
type mockProvider struct {
	mu sync.Mutex

	reply       string
	chunks      []string
	tokens      int
	generateErr error
	streamErr   error
	failAfter   int // emit this many chunks before streamErr fires

	lastMessages []llm.ChatMessage
	calls        int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		reply:     "Hello! How can I help you today?",
		chunks:    []string{"Hello! ", "How can I ", "help you today?"},
		tokens:    42,
		failAfter: -1,
	}
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) IsAvailable() bool { return true }

func (m *mockProvider) completion(content string) *llm.Completion {
	return &llm.Completion{
		Content:          content,
		Model:            "mock-model",
		FinishReason:     "stop",
		PromptTokens:     m.tokens / 2,
		CompletionTokens: m.tokens - m.tokens/2,
		TotalTokens:      m.tokens,
	}
}

func (m *mockProvider) Generate(ctx context.Context, messages []llm.ChatMessage, opts llm.Options) (*llm.Completion, error) {
	m.mu.Lock()
	m.lastMessages = messages
	m.calls++
	reply := m.reply
	if m.calls > 1 {
		reply = fmt.Sprintf("%s (%d)", m.reply, m.calls)
	}
	m.mu.Unlock()

	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return m.completion(reply), nil
}

func (m *mockProvider) GenerateStream(ctx context.Context, messages []llm.ChatMessage, opts llm.Options, handler llm.StreamHandler) (*llm.Completion, error) {
	m.mu.Lock()
	m.lastMessages = messages
	m.calls++
	m.mu.Unlock()

	var content string
	for i, chunk := range m.chunks {
		if m.failAfter >= 0 && i == m.failAfter {
			return nil, m.streamErr
		}
		content += chunk
		if err := handler(chunk); err != nil {
			return nil, err
		}
	}
	return m.completion(content), nil
}

func newTestChatLogic(t *testing.T, db *gorm.DB, provider llm.Provider, maxHistory int) *ChatLogic {
	t.Helper()
	return NewChatLogic(
		db,
		dao.NewConversationDAO(db),
		dao.NewMessageDAO(db),
		dao.NewUsageDAO(db),
		provider,
		maxHistory,
		llm.Options{MaxTokens: 256, Temperature: 0.7},
	)
}
