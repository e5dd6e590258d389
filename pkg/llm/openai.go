package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider wraps the official-API client from sashabaranov/go-openai.
type OpenAIProvider struct {
	client *openai.Client
	apiKey string
	model  string
}

func NewOpenAIProvider(settings Settings) *OpenAIProvider {
	model := settings.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	p := &OpenAIProvider{apiKey: settings.APIKey, model: model}
	if settings.APIKey != "" {
		cfg := openai.DefaultConfig(settings.APIKey)
		cfg.HTTPClient = &http.Client{Timeout: settings.Timeout}
		if settings.BaseURL != "" {
			cfg.BaseURL = settings.BaseURL
		}
		p.client = openai.NewClientWithConfig(cfg)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) IsAvailable() bool { return p.client != nil && p.apiKey != "" }

func (p *OpenAIProvider) wrapErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{Provider: p.Name(), StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	return &APIError{Provider: p.Name(), Message: err.Error()}
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (p *OpenAIProvider) Generate(ctx context.Context, messages []ChatMessage, opts Options) (*Completion, error) {
	if !p.IsAvailable() {
		return nil, ErrUnavailable
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, p.wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &APIError{Provider: p.Name(), Message: "response contained no choices"}
	}

	choice := resp.Choices[0]
	return &Completion{
		Content:          choice.Message.Content,
		Model:            resp.Model,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (p *OpenAIProvider) GenerateStream(ctx context.Context, messages []ChatMessage, opts Options, handler StreamHandler) (*Completion, error) {
	if !p.IsAvailable() {
		return nil, ErrUnavailable
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:         p.model,
		Messages:      toOpenAIMessages(messages),
		MaxTokens:     opts.MaxTokens,
		Temperature:   opts.Temperature,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, p.wrapErr(err)
	}
	defer stream.Close()

	completion := &Completion{Model: p.model}
	var content strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.wrapErr(err)
		}

		if chunk.Model != "" {
			completion.Model = chunk.Model
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				content.WriteString(choice.Delta.Content)
				if err := handler(choice.Delta.Content); err != nil {
					return nil, err
				}
			}
			if choice.FinishReason != "" {
				completion.FinishReason = string(choice.FinishReason)
			}
		}
		if chunk.Usage != nil {
			completion.PromptTokens = chunk.Usage.PromptTokens
			completion.CompletionTokens = chunk.Usage.CompletionTokens
			completion.TotalTokens = chunk.Usage.TotalTokens
		}
	}

	completion.Content = content.String()
	return completion, nil
}
