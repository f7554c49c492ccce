// Package vectorindex stores content embeddings and answers owner-filtered
// top-K similarity queries.
package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Metadata keys written with every vector.
const (
	MetaUserID      = "userId"
	MetaContentID   = "contentId"
	MetaTitle       = "title"
	MetaDescription = "description"
	MetaImage       = "image"
	MetaAuthor      = "author"
	MetaTimestamp   = "timestamp"
	MetaLink        = "link"
	MetaType        = "type"
)

// Vector is one entry of the index
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is a query hit. Score is cosine similarity.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Index is implemented by every vector backend.
type Index interface {
	Upsert(ctx context.Context, vectors []Vector) error
	// Query returns at most topK matches owned by userID, best first.
	Query(ctx context.Context, vec []float32, topK int, userID int64) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
}

// VectorID returns the index id of a content row.
func VectorID(contentID int64) string {
	return fmt.Sprintf("content-%d", contentID)
}

// ParseVectorID is the inverse of VectorID.
func ParseVectorID(id string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, "content-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	return n, err == nil
}

// MetaString returns the string stored at key, or "".
func MetaString(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// MetaInt64 returns the integer stored at key. JSON round-trips turn numbers
// into float64, so every numeric form is accepted.
func MetaInt64(meta map[string]any, key string) (int64, bool) {
	switch v := meta[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// compactMetadata drops empty values, which some backends reject.
func compactMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		switch x := v.(type) {
		case nil:
			continue
		case string:
			if x == "" {
				continue
			}
		}
		out[k] = v
	}
	return out
}
