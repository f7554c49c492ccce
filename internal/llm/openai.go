package llm

import (
	"context"
	"net/http"
	"strings"
)

var _ Completer = (*OpenAI)(nil)

// OpenAI calls an OpenAI-compatible /chat/completions endpoint.
type OpenAI struct {
	baseURL   string
	model     string
	apiKey    string
	maxTokens int
	client    *http.Client
}

func NewOpenAI(opts Options) *OpenAI {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		apiKey:    opts.APIKey,
		maxTokens: opts.MaxTokens,
		client:    &http.Client{Timeout: opts.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:     o.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: o.maxTokens,
	}
	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	if err := postJSON(ctx, o.client, "openai", o.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
