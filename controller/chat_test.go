package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/FahruddinZaimIbrahim/talkflow/dao"
	"github.com/FahruddinZaimIbrahim/talkflow/logic"
	"github.com/FahruddinZaimIbrahim/talkflow/middleware"
	"github.com/FahruddinZaimIbrahim/talkflow/models"
	"github.com/FahruddinZaimIbrahim/talkflow/pkg/llm"
)

const testSecret = "controller-test-secret"

// stubProvider returns a fixed reply in two fragments.
type stubProvider struct{}

func (stubProvider) Name() string      { return "stub" }
func (stubProvider) IsAvailable() bool { return true }

func (stubProvider) Generate(ctx context.Context, messages []llm.ChatMessage, opts llm.Options) (*llm.Completion, error) {
	return &llm.Completion{
		Content: "Hi there!", Model: "stub-model", FinishReason: "stop",
		PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8,
	}, nil
}

func (p stubProvider) GenerateStream(ctx context.Context, messages []llm.ChatMessage, opts llm.Options, handler llm.StreamHandler) (*llm.Completion, error) {
	for _, chunk := range []string{"Hi ", "there!"} {
		if err := handler(chunk); err != nil {
			return nil, err
		}
	}
	return &llm.Completion{
		Content: "Hi there!", Model: "stub-model", FinishReason: "stop",
		PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8,
	}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Conversation{}, &models.Message{}, &models.UserUsageStats{}))

	convoDAO := dao.NewConversationDAO(db)
	messageDAO := dao.NewMessageDAO(db)
	usageDAO := dao.NewUsageDAO(db)

	chatLogic := logic.NewChatLogic(db, convoDAO, messageDAO, usageDAO, stubProvider{}, 50, llm.Options{MaxTokens: 256})
	convoLogic := logic.NewConversationLogic(convoDAO, messageDAO)
	usageLogic := logic.NewUsageLogic(usageDAO)

	chatCtrl := NewChatController(chatLogic)
	convoCtrl := NewConversationController(convoLogic)
	statsCtrl := NewStatsController(usageLogic)

	r := gin.New()
	auth := middleware.Auth(testSecret)
	r.POST("/chat", auth, chatCtrl.Chat)
	r.POST("/chat/stream", auth, chatCtrl.ChatStream)
	r.GET("/chat/conversations", auth, convoCtrl.List)
	r.GET("/chat/conversations/:id", auth, convoCtrl.Get)
	r.DELETE("/chat/conversations/:id", auth, convoCtrl.Delete)
	r.GET("/chat/conversations/:id/export", auth, convoCtrl.Export)
	r.GET("/chat/history", auth, convoCtrl.History)
	r.GET("/chat/stats", auth, statsCtrl.Stats)
	return r
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestChat_Success(t *testing.T) {
	r := newTestRouter(t)
	token := bearerToken(t, "user-1")

	w := doJSON(t, r, http.MethodPost, "/chat", token, `{"message": "Hello"}`)
	require.Equal(t, http.StatusOK, w.Code)

	env := parseEnvelope(t, w)
	require.True(t, env.Success)

	var result logic.TurnResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.NotEmpty(t, result.ConversationID)
	assert.Equal(t, "Hello", result.UserMessage.Content)
	assert.Equal(t, "Hi there!", result.AssistantMessage.Content)
	assert.Equal(t, 8, result.Usage.TotalTokens)
}

func TestChat_Unauthorized(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/chat", "", `{"message": "Hello"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/chat", "Bearer not-a-token", `{"message": "Hello"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChat_MissingMessage(t *testing.T) {
	r := newTestRouter(t)
	token := bearerToken(t, "user-1")

	w := doJSON(t, r, http.MethodPost, "/chat", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "InvalidInput", env.Error.Type)
}

func TestChat_UnknownConversation(t *testing.T) {
	r := newTestRouter(t)
	token := bearerToken(t, "user-1")

	w := doJSON(t, r, http.MethodPost, "/chat", token,
		`{"message": "Hello", "conversation_id": "11111111-2222-3333-4444-555555555555"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := parseEnvelope(t, w)
	assert.Equal(t, "ConversationNotFound", env.Error.Type)
}

func parseSSE(t *testing.T, body string) []logic.StreamEvent {
	t.Helper()
	var events []logic.StreamEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev logic.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestChatStream_EventSequence(t *testing.T) {
	r := newTestRouter(t)
	token := bearerToken(t, "user-1")

	w := doJSON(t, r, http.MethodPost, "/chat/stream", token, `{"message": "Hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "Hi ", events[0].Chunk)
	assert.Equal(t, "there!", events[1].Chunk)
	assert.True(t, events[2].Done)
	assert.NotEmpty(t, events[2].MessageID)
}

func TestChatStream_ViaStreamFlag(t *testing.T) {
	r := newTestRouter(t)
	token := bearerToken(t, "user-1")

	w := doJSON(t, r, http.MethodPost, "/chat", token, `{"message": "Hello", "stream": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	events := parseSSE(t, w.Body.String())
	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].Done)
}

func TestConversationEndpoints_RoundTrip(t *testing.T) {
	r := newTestRouter(t)
	token := bearerToken(t, "user-1")

	w := doJSON(t, r, http.MethodPost, "/chat", token, `{"message": "Hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var result logic.TurnResult
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &result))
	id := result.ConversationID.String()

	// list
	w = doJSON(t, r, http.MethodGet, "/chat/conversations", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []logic.ConversationSummary
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(2), summaries[0].MessageCount)

	// history
	w = doJSON(t, r, http.MethodGet, "/chat/history?conversation_id="+id, token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var messages []models.Message
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &messages))
	assert.Len(t, messages, 2)

	// markdown export
	w = doJSON(t, r, http.MethodGet, "/chat/conversations/"+id+"/export?format=markdown", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "**User:** Hello")

	// stats
	w = doJSON(t, r, http.MethodGet, "/chat/stats", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.UserUsageStats
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &stats))
	assert.Equal(t, int64(1), stats.TotalMessages)
	assert.Equal(t, int64(8), stats.TotalTokens)

	// soft delete hides it from the listing
	w = doJSON(t, r, http.MethodDelete, "/chat/conversations/"+id, token, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/chat/conversations", token, "")
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &summaries))
	assert.Empty(t, summaries)
}

func TestConversationDetail_OtherUser(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/chat", bearerToken(t, "owner"), `{"message": "Hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var result logic.TurnResult
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &result))

	w = doJSON(t, r, http.MethodGet, "/chat/conversations/"+result.ConversationID.String(), bearerToken(t, "intruder"), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
