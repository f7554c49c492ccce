package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/renderinc/learnshare/internal/embeddings"
	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/storage"
)

// Request is a capture submitted by a user.
type Request struct {
	Link          string              `json:"link" validate:"required,url"`
	Type          storage.ContentType `json:"type" validate:"required,oneof=TEXT IMAGE VIDEO AUDIO ARTICLE NOTE"`
	Title         string              `json:"title" validate:"required"`
	Tags          []string            `json:"tags"`
	ExtractedText string              `json:"extractedText"`
	// Metadata is merged over the extracted metadata. Not accepted from clients.
	Metadata storage.Metadata `json:"-"`
}

// Store persists content together with its tags and outbox entry.
type Store interface {
	CreateContent(ctx context.Context, c *storage.Content, tags []string) error
}

// TextIndexer receives every new row for full-text search.
type TextIndexer interface {
	IndexContent(c *storage.Content) error
}

// Notifier is woken after a vector write has been queued.
type Notifier interface {
	Notify()
}

// Deps are the collaborators of a Pipeline. TextIndex and Outbox may be nil.
type Deps struct {
	Store     Store
	Embedder  embeddings.Embedder
	Extractor Extractor
	TextIndex TextIndexer
	Outbox    Notifier
	Dimension int
}

// Pipeline extracts, embeds and stores captures.
type Pipeline struct {
	deps Deps
	now  func() time.Time
}

func NewPipeline(deps Deps) *Pipeline {
	if deps.Dimension <= 0 {
		deps.Dimension = embeddings.DefaultDimension
	}
	return &Pipeline{deps: deps, now: time.Now}
}

// Ingest stores req for userID and returns the created row with its tags.
func (p *Pipeline) Ingest(ctx context.Context, userID int64, req Request) (*storage.Content, error) {
	ex := p.extract(ctx, req)
	for k, v := range req.Metadata {
		ex.Metadata[k] = v
	}

	keywords := ex.Keywords
	if len(keywords) == 0 {
		keywords = Keywords(ex.Text, MaxKeywords)
	}

	vec, err := p.deps.Embedder.Embed(ctx, EmbeddingInput(req.Title, ex.Text, keywords))
	if err != nil {
		return nil, errs.ErrUpstream.WithMessage("failed to generate embedding").Wrap(err)
	}

	c := &storage.Content{
		UserID:        userID,
		Link:          req.Link,
		Type:          req.Type,
		Title:         req.Title,
		ExtractedText: ex.Text,
		Keywords:      keywords,
		Metadata:      ex.Metadata,
		Author:        ex.Metadata.String("author"),
		Duration:      metaDuration(ex.Metadata),
		PublishedAt:   p.publishedAt(ex.Metadata),
		Embedding:     embeddings.Prepare(vec, p.deps.Dimension),
	}
	if err := p.deps.Store.CreateContent(ctx, c, req.Tags); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	log.Printf("[ingest] stored content %d (%s) for user %d", c.ID, c.Type, userID)

	if p.deps.Outbox != nil {
		p.deps.Outbox.Notify()
	}
	if p.deps.TextIndex != nil {
		if err := p.deps.TextIndex.IndexContent(c); err != nil {
			log.Printf("[ingest] full-text index content %d: %v", c.ID, err)
		}
	}
	return c, nil
}

func (p *Pipeline) extract(ctx context.Context, req Request) *Extraction {
	if req.ExtractedText != "" {
		tags := req.Tags
		if tags == nil {
			tags = []string{}
		}
		return &Extraction{
			Text: req.ExtractedText,
			Metadata: storage.Metadata{
				"author":      "",
				"duration":    0,
				"publishDate": p.now().UTC().Format(time.RFC3339),
			},
			Keywords: tags,
		}
	}

	ex, err := p.deps.Extractor.Extract(ctx, req.Link, req.Type)
	if err != nil || ex == nil {
		log.Printf("[ingest] extract %s: %v", req.Link, err)
		return &Extraction{
			Metadata: storage.Metadata{"error": "Failed to process content", "url": req.Link},
			Keywords: []string{},
		}
	}
	if ex.Metadata == nil {
		ex.Metadata = storage.Metadata{}
	}
	return ex
}

// EmbeddingInput is the text embedded for a capture.
func EmbeddingInput(title, text string, keywords []string) string {
	return title + " " + text + " " + strings.Join(keywords, " ")
}

func (p *Pipeline) publishedAt(meta storage.Metadata) *time.Time {
	if s := meta.String("publishDate"); s != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	t := p.now().UTC()
	return &t
}

func metaDuration(meta storage.Metadata) int {
	switch v := meta["duration"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
