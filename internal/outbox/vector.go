package outbox

import (
	"time"

	"github.com/renderinc/learnshare/internal/storage"
	"github.com/renderinc/learnshare/internal/vectorindex"
)

const descriptionRunes = 200

// VectorFor builds the index entry of a content row.
func VectorFor(c *storage.Content) vectorindex.Vector {
	description := c.Description()
	if description == "" {
		description = truncateRunes(c.ExtractedText, descriptionRunes)
	}

	timestamp := c.CreatedAt
	if c.PublishedAt != nil {
		timestamp = *c.PublishedAt
	}

	meta := map[string]any{
		vectorindex.MetaUserID:      c.UserID,
		vectorindex.MetaContentID:   c.ID,
		vectorindex.MetaTitle:       c.Title,
		vectorindex.MetaDescription: description,
		vectorindex.MetaAuthor:      c.Author,
		vectorindex.MetaTimestamp:   timestamp.UTC().Format(time.RFC3339),
		vectorindex.MetaLink:        c.Link,
		vectorindex.MetaType:        string(c.Type),
	}
	for _, key := range []string{"image", "mainImage", "thumbnailUrl"} {
		if img := c.Metadata.String(key); img != "" {
			meta[vectorindex.MetaImage] = img
			break
		}
	}

	return vectorindex.Vector{
		ID:       vectorindex.VectorID(c.ID),
		Values:   c.Embedding,
		Metadata: meta,
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
