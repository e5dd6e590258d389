package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/FahruddinZaimIbrahim/talkflow/logic"
	"github.com/FahruddinZaimIbrahim/talkflow/middleware"
)

// ConversationController handles conversation management endpoints.
type ConversationController struct {
	convoLogic *logic.ConversationLogic
}

func NewConversationController(convoLogic *logic.ConversationLogic) *ConversationController {
	return &ConversationController{convoLogic: convoLogic}
}

func conversationID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		respondBadRequest(ctx, "invalid conversation id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /chat/conversations
func (c *ConversationController) List(ctx *gin.Context) {
	summaries, err := c.convoLogic.List(middleware.UserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	respondOK(ctx, summaries)
}

// Get handles GET /chat/conversations/:id
func (c *ConversationController) Get(ctx *gin.Context) {
	id, ok := conversationID(ctx)
	if !ok {
		return
	}

	detail, err := c.convoLogic.Get(middleware.UserID(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	respondOK(ctx, detail)
}

// Delete handles DELETE /chat/conversations/:id (soft delete)
func (c *ConversationController) Delete(ctx *gin.Context) {
	id, ok := conversationID(ctx)
	if !ok {
		return
	}

	if err := c.convoLogic.Delete(middleware.UserID(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	respondOK(ctx, gin.H{"message": "conversation deleted"})
}

// History handles GET /chat/history?conversation_id=<uuid>
func (c *ConversationController) History(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Query("conversation_id"))
	if err != nil {
		respondBadRequest(ctx, "conversation_id is required")
		return
	}

	messages, err := c.convoLogic.History(middleware.UserID(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	respondOK(ctx, messages)
}

// Search handles GET /chat/search?q=<query>
func (c *ConversationController) Search(ctx *gin.Context) {
	summaries, err := c.convoLogic.Search(middleware.UserID(ctx), ctx.Query("q"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	respondOK(ctx, summaries)
}

// Export handles GET /chat/conversations/:id/export?format=json|markdown
func (c *ConversationController) Export(ctx *gin.Context) {
	id, ok := conversationID(ctx)
	if !ok {
		return
	}
	userID := middleware.UserID(ctx)

	if ctx.DefaultQuery("format", "json") == "markdown" {
		content, err := c.convoLogic.ExportMarkdown(userID, id)
		if err != nil {
			respondError(ctx, err)
			return
		}
		ctx.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(content))
		return
	}

	detail, err := c.convoLogic.Get(userID, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	respondOK(ctx, detail)
}
