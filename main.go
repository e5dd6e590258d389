package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/FahruddinZaimIbrahim/talkflow/config"
	"github.com/FahruddinZaimIbrahim/talkflow/controller"
	"github.com/FahruddinZaimIbrahim/talkflow/dao"
	"github.com/FahruddinZaimIbrahim/talkflow/logic"
	"github.com/FahruddinZaimIbrahim/talkflow/middleware"
	"github.com/FahruddinZaimIbrahim/talkflow/models"
	"github.com/FahruddinZaimIbrahim/talkflow/pkg/llm"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if len(os.Args) < 2 {
		log.Fatal("Usage: talkflow <config.yaml>")
	}
	cfg, err := config.LoadConfig(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", os.Args[1], err)
	}

	// Initialize database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.Conversation{}, &models.Message{}, &models.UserUsageStats{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Resolve the LLM provider once; unknown names are fatal here.
	provider, err := llm.New(cfg.LLM.Provider, llm.Settings{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLMTimeout(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}
	if !provider.IsAvailable() {
		slog.Warn("llm provider has no credentials; turn requests will fail", "provider", provider.Name())
	}

	// Initialize DAOs
	convoDAO := dao.NewConversationDAO(db)
	messageDAO := dao.NewMessageDAO(db)
	usageDAO := dao.NewUsageDAO(db)

	// Initialize Logics
	chatLogic := logic.NewChatLogic(db, convoDAO, messageDAO, usageDAO, provider, cfg.LLM.MaxHistory, llm.Options{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	convoLogic := logic.NewConversationLogic(convoDAO, messageDAO)
	usageLogic := logic.NewUsageLogic(usageDAO)
	retentionLogic := logic.NewRetentionLogic(convoDAO)

	// Initialize Controllers
	chatCtrl := controller.NewChatController(chatLogic)
	convoCtrl := controller.NewConversationController(convoLogic)
	statsCtrl := controller.NewStatsController(usageLogic)

	// Start the retention sweeper in a goroutine
	go retentionLogic.Run(context.Background(), cfg.SweepInterval(), cfg.RetentionThreshold())

	// Setup Gin router
	r := gin.Default()
	auth := middleware.Auth(cfg.Auth.Secret)
	limit := middleware.RateLimit(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)

	r.POST("/chat", auth, limit, chatCtrl.Chat)
	r.POST("/chat/stream", auth, limit, chatCtrl.ChatStream)
	r.GET("/chat/conversations", auth, convoCtrl.List)
	r.GET("/chat/conversations/:id", auth, convoCtrl.Get)
	r.DELETE("/chat/conversations/:id", auth, convoCtrl.Delete)
	r.GET("/chat/conversations/:id/export", auth, convoCtrl.Export)
	r.GET("/chat/history", auth, convoCtrl.History)
	r.GET("/chat/search", auth, convoCtrl.Search)
	r.GET("/chat/stats", auth, statsCtrl.Stats)

	// Run server
	if err := r.Run(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
