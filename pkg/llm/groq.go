package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

const defaultGroqModel = "llama-3.3-70b-versatile"

type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
}

type responseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatCompletionRequest struct {
	Model         string           `json:"model"`
	Messages      []requestMessage `json:"messages"`
	MaxTokens     int              `json:"max_tokens,omitempty"`
	Temperature   *float32         `json:"temperature,omitempty"`
	Stream        *bool            `json:"stream,omitempty"`
	StreamOptions *streamOptions   `json:"stream_options,omitempty"`
}

type chatChoice struct {
	Index        int             `json:"index"`
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *usage       `json:"usage,omitempty"`
}

type streamChoice struct {
	Index        int             `json:"index"`
	Delta        responseMessage `json:"delta"`
	FinishReason string          `json:"finish_reason"`
}

type streamChatCompletionResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
	Usage   *usage         `json:"usage,omitempty"`
}

// GroqProvider talks to the Groq chat completions API, which is
// OpenAI-compatible on the wire.
type GroqProvider struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

func NewGroqProvider(settings Settings) *GroqProvider {
	model := settings.Model
	if model == "" {
		model = defaultGroqModel
	}
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	return &GroqProvider{
		client:  &http.Client{Timeout: settings.Timeout},
		apiKey:  settings.APIKey,
		model:   model,
		baseURL: baseURL,
	}
}

func (p *GroqProvider) Name() string { return "groq" }

func (p *GroqProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *GroqProvider) post(ctx context.Context, endpoint string, body interface{}) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &APIError{Provider: p.Name(), Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: string(bodyBytes)}
	}

	return resp, nil
}

func toRequestMessages(messages []ChatMessage) []requestMessage {
	out := make([]requestMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, requestMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// Generate handles non-streaming completions.
func (p *GroqProvider) Generate(ctx context.Context, messages []ChatMessage, opts Options) (*Completion, error) {
	if !p.IsAvailable() {
		return nil, ErrUnavailable
	}

	req := chatCompletionRequest{
		Model:       p.model,
		Messages:    toRequestMessages(messages),
		MaxTokens:   opts.MaxTokens,
		Temperature: &opts.Temperature,
	}

	resp, err := p.post(ctx, "chat/completions", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Provider: p.Name(), Message: fmt.Sprintf("failed to read response body: %v", err)}
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &APIError{Provider: p.Name(), Message: fmt.Sprintf("failed to unmarshal response: %v", err)}
	}
	if len(response.Choices) == 0 {
		return nil, &APIError{Provider: p.Name(), Message: "response contained no choices"}
	}

	choice := response.Choices[0]
	completion := &Completion{
		Content:      choice.Message.Content,
		Model:        response.Model,
		FinishReason: choice.FinishReason,
	}
	if response.Usage != nil {
		completion.PromptTokens = response.Usage.PromptTokens
		completion.CompletionTokens = response.Usage.CompletionTokens
		completion.TotalTokens = response.Usage.TotalTokens
	}
	return completion, nil
}

// GenerateStream handles streaming completions over SSE. Usage arrives
// on the final chunk because include_usage is set.
func (p *GroqProvider) GenerateStream(ctx context.Context, messages []ChatMessage, opts Options, handler StreamHandler) (*Completion, error) {
	if !p.IsAvailable() {
		return nil, ErrUnavailable
	}

	streamTrue := true
	req := chatCompletionRequest{
		Model:         p.model,
		Messages:      toRequestMessages(messages),
		MaxTokens:     opts.MaxTokens,
		Temperature:   &opts.Temperature,
		Stream:        &streamTrue,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}

	resp, err := p.post(ctx, "chat/completions", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	completion := &Completion{Model: p.model}
	var content strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		if line == "data: [DONE]" {
			break
		}

		var chunk streamChatCompletionResponse
		if err := json.Unmarshal([]byte(line[6:]), &chunk); err != nil {
			return nil, &APIError{Provider: p.Name(), Message: fmt.Sprintf("failed to unmarshal stream chunk: %v", err)}
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
				completion.FinishReason = choice.FinishReason
			}
		}
		if chunk.Usage != nil {
			completion.PromptTokens = chunk.Usage.PromptTokens
			completion.CompletionTokens = chunk.Usage.CompletionTokens
			completion.TotalTokens = chunk.Usage.TotalTokens
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &APIError{Provider: p.Name(), Message: fmt.Sprintf("error reading stream: %v", err)}
	}

	completion.Content = content.String()
	return completion, nil
}
