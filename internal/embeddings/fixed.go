package embeddings

import (
	"context"
	"log"
)

// Fixed wraps an Embedder so every vector it returns is sanitized, resized to
// a fixed dimension and normalized.
type Fixed struct {
	inner Embedder
	dim   int
}

// NewFixed returns an Embedder producing unit vectors of length dim.
func NewFixed(inner Embedder, dim int) *Fixed {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Fixed{inner: inner, dim: dim}
}

// Dimension returns the output width
func (f *Fixed) Dimension() int {
	return f.dim
}

func (f *Fixed) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := f.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return f.prepare(vec), nil
}

func (f *Fixed) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := f.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		vecs[i] = f.prepare(v)
	}
	return vecs, nil
}

func (f *Fixed) Health(ctx context.Context) error {
	return f.inner.Health(ctx)
}

func (f *Fixed) prepare(vec []float32) []float32 {
	if len(vec) != f.dim {
		log.Printf("[embeddings] warning: model returned %d dimensions, resizing to %d", len(vec), f.dim)
	}
	return Prepare(vec, f.dim)
}
