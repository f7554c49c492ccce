package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var _ Embedder = (*GeminiClient)(nil)

// GeminiClient calls the Generative Language embedContent API.
type GeminiClient struct {
	baseURL    string
	model      string
	apiKey     string
	client     *http.Client
	maxRetries int
}

// NewGeminiClient creates a Gemini embedding client.
func NewGeminiClient(baseURL, model, apiKey string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      strings.TrimPrefix(model, "models/"),
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: defaultMaxRetries,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiEmbedding struct {
	Values []float32 `json:"values"`
}

func (c *GeminiClient) endpoint(method string) string {
	return fmt.Sprintf("%s/models/%s:%s", c.baseURL, c.model, method)
}

func (c *GeminiClient) headers() map[string]string {
	return map[string]string{"x-goog-api-key": c.apiKey}
}

func (c *GeminiClient) request(text string) geminiEmbedRequest {
	return geminiEmbedRequest{
		Model:   "models/" + c.model,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}
}

// Embed generates an embedding for a single text string
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	var resp struct {
		Embedding geminiEmbedding `json:"embedding"`
	}
	if err := postJSON(ctx, c.client, "gemini", c.endpoint("embedContent"), c.headers(), c.request(text), &resp, c.maxRetries); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch generates embeddings for multiple text strings in a single request
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	body := struct {
		Requests []geminiEmbedRequest `json:"requests"`
	}{}
	for _, t := range texts {
		body.Requests = append(body.Requests, c.request(t))
	}

	var resp struct {
		Embeddings []geminiEmbedding `json:"embeddings"`
	}
	if err := postJSON(ctx, c.client, "gemini", c.endpoint("batchEmbedContents"), c.headers(), body, &resp, c.maxRetries); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// Health fetches the model resource to confirm the key and model are valid
func (c *GeminiClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/models/%s", c.baseURL, c.model), nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gemini not available: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini returned status %d for model %s", resp.StatusCode, c.model)
	}
	return nil
}
