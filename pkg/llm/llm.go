package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ChatMessage is a single entry in the context window sent to a provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are per-request generation parameters.
type Options struct {
	MaxTokens   int
	Temperature float32
}

// Completion is a provider's reply to a generation request. Token counts
// are zero when the backend does not report usage.
type Completion struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamHandler receives each text fragment of a streaming completion as
// it arrives. Returning an error aborts the stream.
type StreamHandler func(delta string) error

// Provider is the capability contract over a language-model backend.
type Provider interface {
	Name() string

	// IsAvailable reports whether the provider is configured well enough
	// to serve requests (credentials present, client constructed).
	IsAvailable() bool

	// Generate performs a blocking completion over the given messages.
	Generate(ctx context.Context, messages []ChatMessage, opts Options) (*Completion, error)

	// GenerateStream performs a streaming completion, invoking handler
	// once per text fragment. The stream is finite and not restartable;
	// concatenating all fragments yields the returned Completion's
	// content. Usage counts are taken from the terminal chunk when the
	// backend reports them.
	GenerateStream(ctx context.Context, messages []ChatMessage, opts Options, handler StreamHandler) (*Completion, error)
}

var (
	// ErrUnavailable means the provider is not configured (missing
	// credentials). The request fails; the process keeps running.
	ErrUnavailable = errors.New("llm provider is not configured")

	// ErrUnknownProvider means the configured provider name is not in
	// the registry. Fatal at startup.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// APIError is a transport or backend failure from a provider call.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
}

// Settings carry the process-wide provider configuration resolved at
// startup. Configuration is immutable afterwards, so the returned
// Provider handle is safe to share.
type Settings struct {
	APIKey  string
	Model   string
	Timeout time.Duration

	// BaseURL overrides the backend endpoint. Used by tests; empty means
	// the provider default.
	BaseURL string
}

// New resolves the configured provider name into a Provider handle. The
// set of supported providers is closed; unknown names are rejected here
// rather than on first use.
func New(name string, settings Settings) (Provider, error) {
	switch name {
	case "groq":
		return NewGroqProvider(settings), nil
	case "openai":
		return NewOpenAIProvider(settings), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
