package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FahruddinZaimIbrahim/talkflow/logic"
	"github.com/FahruddinZaimIbrahim/talkflow/pkg/llm"
)

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// respondError maps the logic error taxonomy onto HTTP statuses and the
// {success:false, error:{...}} envelope. Unknown errors are logged and
// returned as an opaque 500.
func respondError(ctx *gin.Context, err error) {
	var status int
	body := errorBody{Message: err.Error()}

	switch {
	case errors.Is(err, logic.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Type = "InvalidInput"
	case errors.Is(err, logic.ErrConversationNotFound):
		status = http.StatusNotFound
		body.Type = "ConversationNotFound"
	case errors.Is(err, llm.ErrUnavailable):
		status = http.StatusServiceUnavailable
		body.Type = "ProviderUnavailable"
	case errors.Is(err, logic.ErrGenerationFailed):
		status = http.StatusBadGateway
		body.Type = "GenerationFailed"
		body.Message = logic.ErrGenerationFailed.Error()
	default:
		slog.Error("request failed", "error", err)
		status = http.StatusInternalServerError
		body.Type = "InternalError"
		body.Message = "internal server error"
	}

	ctx.JSON(status, gin.H{"success": false, "error": body})
}

func respondOK(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondBadRequest(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   errorBody{Message: message, Type: "InvalidInput"},
	})
}
