package embeddings

import (
	"context"
	"fmt"
	"time"
)

// Embedder is the interface for embedding providers (Gemini, OpenAI-compatible, Ollama)
type Embedder interface {
	// Embed generates an embedding for a single text string
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple text strings in a single request
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Health checks if the service is available
	Health(ctx context.Context) error
}

// Options configures NewEmbedder. Empty fields take the provider defaults.
type Options struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// NewEmbedder creates a new embedding client based on the provider type
// Supported providers: "gemini", "openai", "ollama"
func NewEmbedder(opts Options) (Embedder, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = GetDefaultURL(opts.Provider)
	}
	if opts.Model == "" {
		opts.Model = GetDefaultModel(opts.Provider)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}

	switch opts.Provider {
	case "gemini":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("gemini embeddings need GEMINI_API_KEY")
		}
		return NewGeminiClient(opts.BaseURL, opts.Model, opts.APIKey, opts.Timeout), nil
	case "openai":
		return NewOpenAIClient(opts.BaseURL, opts.Model, opts.APIKey, opts.Timeout), nil
	case "ollama":
		return NewClient(opts.BaseURL, opts.Model, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: gemini, openai, ollama)", opts.Provider)
	}
}

// GetDefaultURL returns the default base URL for a given provider
func GetDefaultURL(provider string) string {
	switch provider {
	case "gemini":
		return "https://generativelanguage.googleapis.com/v1beta"
	case "openai":
		return "https://api.openai.com/v1"
	case "ollama":
		return "http://localhost:11434"
	default:
		return ""
	}
}

// GetDefaultModel returns the default model name for a given provider
func GetDefaultModel(provider string) string {
	switch provider {
	case "gemini":
		return "text-embedding-004"
	case "openai":
		return "text-embedding-3-small"
	case "ollama":
		return "mxbai-embed-large"
	default:
		return ""
	}
}
