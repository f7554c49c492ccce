package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var _ Index = (*Pinecone)(nil)

// PineconeConfig configures the Pinecone data-plane client.
type PineconeConfig struct {
	Host      string // index host, with or without scheme
	APIKey    string
	Namespace string
	Timeout   time.Duration
}

// Pinecone is a minimal REST client for one Pinecone index.
type Pinecone struct {
	baseURL   string
	apiKey    string
	namespace string
	client    *http.Client
}

func NewPinecone(cfg PineconeConfig) *Pinecone {
	host := strings.TrimRight(cfg.Host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Pinecone{
		baseURL:   host,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		client:    &http.Client{Timeout: timeout},
	}
}

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (p *Pinecone) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	body := struct {
		Vectors   []pineconeVector `json:"vectors"`
		Namespace string           `json:"namespace,omitempty"`
	}{Namespace: p.namespace}
	for _, v := range vectors {
		body.Vectors = append(body.Vectors, pineconeVector{
			ID:       v.ID,
			Values:   v.Values,
			Metadata: compactMetadata(v.Metadata),
		})
	}
	return p.postJSON(ctx, "/vectors/upsert", body, nil)
}

func (p *Pinecone) Query(ctx context.Context, vec []float32, topK int, userID int64) ([]Match, error) {
	body := map[string]any{
		"vector":          vec,
		"topK":            topK,
		"includeMetadata": true,
		"includeValues":   false,
		"filter": map[string]any{
			MetaUserID: map[string]any{"$eq": userID},
		},
	}
	if p.namespace != "" {
		body["namespace"] = p.namespace
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := p.postJSON(ctx, "/query", body, &resp); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

func (p *Pinecone) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := struct {
		IDs       []string `json:"ids"`
		Namespace string   `json:"namespace,omitempty"`
	}{IDs: ids, Namespace: p.namespace}
	return p.postJSON(ctx, "/vectors/delete", body, nil)
}

func (p *Pinecone) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("X-Pinecone-API-Version", "2024-07")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pinecone %s failed (status %d): %s", path, resp.StatusCode, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
