package controller

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/FahruddinZaimIbrahim/talkflow/logic"
	"github.com/FahruddinZaimIbrahim/talkflow/middleware"
)

// ChatController handles the turn-submission endpoints.
type ChatController struct {
	chatLogic *logic.ChatLogic
}

func NewChatController(chatLogic *logic.ChatLogic) *ChatController {
	return &ChatController{chatLogic: chatLogic}
}

type chatRequest struct {
	Message        string     `json:"message" binding:"required"`
	ConversationID *uuid.UUID `json:"conversation_id"`
	Stream         bool       `json:"stream"`
}

// Chat handles POST /chat. With stream=true the request is served as a
// streaming turn instead.
func (c *ChatController) Chat(ctx *gin.Context) {
	var req chatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBadRequest(ctx, err.Error())
		return
	}

	if req.Stream {
		c.stream(ctx, req)
		return
	}

	result, err := c.chatLogic.HandleTurn(ctx.Request.Context(), middleware.UserID(ctx), req.ConversationID, req.Message)
	if err != nil {
		respondError(ctx, err)
		return
	}
	respondOK(ctx, result)
}

// ChatStream handles POST /chat/stream with Server-Sent Events.
func (c *ChatController) ChatStream(ctx *gin.Context) {
	var req chatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBadRequest(ctx, err.Error())
		return
	}
	c.stream(ctx, req)
}

func (c *ChatController) stream(ctx *gin.Context, req chatRequest) {
	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")

	emitted := false
	emit := func(ev logic.StreamEvent) error {
		select {
		case <-ctx.Request.Context().Done():
			return ctx.Request.Context().Err()
		default:
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(ctx.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		ctx.Writer.Flush()
		emitted = true
		return nil
	}

	err := c.chatLogic.StreamTurn(ctx.Request.Context(), middleware.UserID(ctx), req.ConversationID, req.Message, emit)
	if err != nil && !emitted {
		// Nothing was streamed yet (validation or lookup failure), so a
		// regular JSON error is still possible.
		respondError(ctx, err)
	}
}
