package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

var _ Completer = (*Gemini)(nil)

// Gemini calls the generateContent endpoint of the Generative Language API.
type Gemini struct {
	baseURL   string
	model     string
	apiKey    string
	maxTokens int
	client    *http.Client
}

func NewGemini(opts Options) *Gemini {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Gemini{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     strings.TrimPrefix(model, "models/"),
		apiKey:    opts.APIKey,
		maxTokens: opts.MaxTokens,
		client:    &http.Client{Timeout: opts.Timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	req.GenerationConfig.MaxOutputTokens = g.maxTokens

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	var resp geminiResponse
	if err := postJSON(ctx, g.client, "gemini", url, map[string]string{"x-goog-api-key": g.apiKey}, req, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
