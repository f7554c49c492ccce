package search

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/renderinc/learnshare/internal/embeddings"
	"github.com/renderinc/learnshare/internal/storage"
	"github.com/renderinc/learnshare/internal/vectorindex"
)

// Query sizes for the two semantic search paths.
const (
	ChatTopK   = 1
	DirectTopK = 20
)

// RelevanceThreshold is the minimum score a match needs to drive a chat answer.
const RelevanceThreshold = 0.5

// Fallback field values.
const (
	NoDescription          = "No description available"
	UnknownAuthor          = "Unknown"
	UnknownTitle           = "Unknown Title"
	NoLink                 = "#"
	UnavailableTitle       = "Error Processing Content"
	UnavailableDescription = "Error retrieving content details"
)

// Kind tells how much of a result could be cross-referenced with the store.
type Kind string

const (
	// KindResolved results were matched to a stored row
	KindResolved Kind = "resolved"
	// KindPartial results carry index metadata only
	KindPartial Kind = "partial"
	// KindUnavailable results hit an error while resolving
	KindUnavailable Kind = "unavailable"
)

// Result is one semantic search hit.
type Result struct {
	Kind        Kind    `json:"kind"`
	ID          *int64  `json:"id,omitempty"`
	Score       float64 `json:"score"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
	Author      string  `json:"author"`
	Timestamp   *string `json:"timestamp"`
	Link        string  `json:"link"`
}

// ContentResolver finds the stored row behind a vector match.
type ContentResolver interface {
	GetContent(ctx context.Context, id int64) (*storage.Content, error)
	FindContentByTitleAndDescription(ctx context.Context, userID int64, title, description string) (*storage.Content, error)
}

// Semantic embeds queries, searches the vector index and resolves matches
// against the relational store.
type Semantic struct {
	embedder embeddings.Embedder
	index    vectorindex.Index
	store    ContentResolver
	dim      int
}

func NewSemantic(embedder embeddings.Embedder, index vectorindex.Index, store ContentResolver, dim int) *Semantic {
	if dim <= 0 {
		dim = embeddings.DefaultDimension
	}
	return &Semantic{embedder: embedder, index: index, store: store, dim: dim}
}

// Search returns up to topK results owned by userID, best first.
func (s *Semantic) Search(ctx context.Context, userID int64, query string, topK int) ([]Result, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec = embeddings.Prepare(vec, s.dim)

	matches, err := s.index.Query(ctx, vec, topK, userID)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, s.resolve(ctx, userID, m))
	}
	return results, nil
}

func (s *Semantic) resolve(ctx context.Context, userID int64, m vectorindex.Match) Result {
	row, err := s.lookup(ctx, userID, m)
	if err != nil {
		log.Printf("[search] resolve %s: %v", m.ID, err)
		return Result{
			Kind:        KindUnavailable,
			Score:       m.Score,
			Title:       UnavailableTitle,
			Description: UnavailableDescription,
			Author:      UnknownAuthor,
			Link:        orDefault(vectorindex.MetaString(m.Metadata, vectorindex.MetaLink), NoLink),
		}
	}
	if row == nil {
		return partialResult(m)
	}
	return resolvedResult(row, m)
}

func (s *Semantic) lookup(ctx context.Context, userID int64, m vectorindex.Match) (*storage.Content, error) {
	id, ok := vectorindex.MetaInt64(m.Metadata, vectorindex.MetaContentID)
	if !ok {
		id, ok = vectorindex.ParseVectorID(m.ID)
	}
	if ok {
		row, err := s.store.GetContent(ctx, id)
		if err != nil {
			return nil, err
		}
		if row != nil && row.UserID == userID {
			return row, nil
		}
	}

	title := vectorindex.MetaString(m.Metadata, vectorindex.MetaTitle)
	if title == "" {
		return nil, nil
	}
	return s.store.FindContentByTitleAndDescription(ctx, userID, title,
		vectorindex.MetaString(m.Metadata, vectorindex.MetaDescription))
}

func resolvedResult(row *storage.Content, m vectorindex.Match) Result {
	id := row.ID
	r := Result{
		Kind:        KindResolved,
		ID:          &id,
		Score:       m.Score,
		Title:       orDefault(row.Title, vectorindex.MetaString(m.Metadata, vectorindex.MetaTitle)),
		Description: orDefault(row.Description(), vectorindex.MetaString(m.Metadata, vectorindex.MetaDescription), NoDescription),
		Author:      orDefault(row.Author, vectorindex.MetaString(m.Metadata, vectorindex.MetaAuthor), UnknownAuthor),
		Link:        orDefault(row.Link, vectorindex.MetaString(m.Metadata, vectorindex.MetaLink), NoLink),
		Image:       optional(orDefault(row.Metadata.String("image"), vectorindex.MetaString(m.Metadata, vectorindex.MetaImage))),
	}
	switch {
	case row.PublishedAt != nil:
		r.Timestamp = optional(row.PublishedAt.Format(time.RFC3339))
	default:
		r.Timestamp = optional(orDefault(vectorindex.MetaString(m.Metadata, vectorindex.MetaTimestamp), row.CreatedAt.Format(time.RFC3339)))
	}
	return r
}

func partialResult(m vectorindex.Match) Result {
	return Result{
		Kind:        KindPartial,
		Score:       m.Score,
		Title:       orDefault(vectorindex.MetaString(m.Metadata, vectorindex.MetaTitle), UnknownTitle),
		Description: orDefault(vectorindex.MetaString(m.Metadata, vectorindex.MetaDescription), NoDescription),
		Image:       optional(vectorindex.MetaString(m.Metadata, vectorindex.MetaImage)),
		Author:      orDefault(vectorindex.MetaString(m.Metadata, vectorindex.MetaAuthor), UnknownAuthor),
		Timestamp:   optional(vectorindex.MetaString(m.Metadata, vectorindex.MetaTimestamp)),
		Link:        orDefault(vectorindex.MetaString(m.Metadata, vectorindex.MetaLink), NoLink),
	}
}

// Relevant keeps results scoring at least RelevanceThreshold
func Relevant(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Score >= RelevanceThreshold {
			out = append(out, r)
		}
	}
	return out
}

func orDefault(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
