package logic

import (
	"github.com/FahruddinZaimIbrahim/talkflow/models"
	"github.com/FahruddinZaimIbrahim/talkflow/pkg/llm"
)

// buildContext maps stored history to the provider wire format and
// appends the new user turn. The cap is a message count, not a token
// count; history is assumed chronological and is truncated from the
// front when over maxHistory.
func buildContext(history []models.Message, maxHistory int, newUserText string) []llm.ChatMessage {
	if maxHistory > 0 && len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, llm.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: models.RoleUser, Content: newUserText})
	return messages
}
