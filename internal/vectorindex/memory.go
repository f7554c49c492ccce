package vectorindex

import (
	"context"
	"sort"
	"sync"

	"github.com/renderinc/learnshare/internal/embeddings"
)

var _ Index = (*Memory)(nil)

// Memory is an in-process index using brute-force cosine similarity.
type Memory struct {
	mu      sync.RWMutex
	vectors map[string]Vector
}

func NewMemory() *Memory {
	return &Memory{vectors: make(map[string]Vector)}
}

func (m *Memory) Upsert(_ context.Context, vectors []Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		meta := make(map[string]any, len(v.Metadata))
		for k, val := range v.Metadata {
			meta[k] = val
		}
		m.vectors[v.ID] = Vector{
			ID:       v.ID,
			Values:   append([]float32(nil), v.Values...),
			Metadata: meta,
		}
	}
	return nil
}

func (m *Memory) Query(_ context.Context, vec []float32, topK int, userID int64) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.vectors))
	for _, v := range m.vectors {
		if owner, ok := MetaInt64(v.Metadata, MetaUserID); !ok || owner != userID {
			continue
		}
		matches = append(matches, Match{
			ID:       v.ID,
			Score:    float64(embeddings.CosineSimilarity(vec, v.Values)),
			Metadata: v.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *Memory) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.vectors, id)
	}
	return nil
}

// Len returns the number of stored vectors
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}
