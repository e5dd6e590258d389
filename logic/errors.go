package logic

import "errors"

// Error taxonomy surfaced to controllers. Everything else is an internal
// error.
var (
	// ErrInvalidInput rejects a malformed request before any side effect.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConversationNotFound covers both a missing conversation and one
	// owned by another user; callers cannot tell the two apart.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrGenerationFailed wraps a provider transport/backend failure.
	// On the batch path nothing has been persisted when this is
	// returned.
	ErrGenerationFailed = errors.New("failed to generate response")
)
