package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/renderinc/learnshare/internal/storage"
)

// Index wraps a Bleve full-text index of saved content
type Index struct {
	index bleve.Index
}

// IndexedContent represents a content row in the search index
type IndexedContent struct {
	ID          string
	Owner       string
	Type        string
	Title       string
	Text        string
	Author      string
	Keywords    []string
	Tags        []string
	Link        string
	PublishedAt time.Time
}

// Hit represents a full-text search result
type Hit struct {
	ID        int64               `json:"id"`
	Title     string              `json:"title"`
	Author    string              `json:"author"`
	Link      string              `json:"link"`
	Type      string              `json:"type"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

// ContentLister lists stored content for a rebuild.
type ContentLister interface {
	ListContents(ctx context.Context, userID int64, limit int) ([]*storage.Content, error)
}

// Open opens or creates a Bleve index. An empty path keeps the index in memory.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// buildIndexMapping stores Owner as an exact keyword and analyzes titles in English
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = "en"

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	ownerFieldMapping := bleve.NewTextFieldMapping()
	ownerFieldMapping.Analyzer = keyword.Name
	ownerFieldMapping.IncludeInAll = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Owner", ownerFieldMapping)
	docMapping.AddFieldMappingsAt("Type", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Title", titleFieldMapping)
	docMapping.AddFieldMappingsAt("Text", textFieldMapping)
	docMapping.AddFieldMappingsAt("Author", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Keywords", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Tags", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Link", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

// IndexContent adds or updates a content row in the index
func (i *Index) IndexContent(c *storage.Content) error {
	doc := toIndexed(c)
	return i.index.Index(doc.ID, doc)
}

// Delete removes a content row from the index
func (i *Index) Delete(contentID int64) error {
	return i.index.Delete(strconv.FormatInt(contentID, 10))
}

// Search runs a query-string search restricted to userID's content
func (i *Index) Search(userID int64, queryStr string, limit int) ([]*Hit, error) {
	owner := bleve.NewTermQuery(strconv.FormatInt(userID, 10))
	owner.SetField("Owner")
	query := bleve.NewConjunctionQuery(owner, bleve.NewQueryStringQuery(queryStr))

	search := bleve.NewSearchRequestOptions(query, limit, 0, false)
	search.Highlight = bleve.NewHighlightWithStyle("html")
	search.Fields = []string{"Title", "Author", "Link", "Type"}

	results, err := i.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]*Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hit := &Hit{ID: id, Score: h.Score, Fragments: h.Fragments}
		if title, ok := h.Fields["Title"].(string); ok {
			hit.Title = title
		}
		if author, ok := h.Fields["Author"].(string); ok {
			hit.Author = author
		}
		if link, ok := h.Fields["Link"].(string); ok {
			hit.Link = link
		}
		if typ, ok := h.Fields["Type"].(string); ok {
			hit.Type = typ
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// Rebuild re-indexes every stored content row in one batch
func (i *Index) Rebuild(ctx context.Context, store ContentLister) (int, error) {
	contents, err := store.ListContents(ctx, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list contents: %w", err)
	}

	batch := i.index.NewBatch()
	for _, c := range contents {
		doc := toIndexed(c)
		if err := batch.Index(doc.ID, doc); err != nil {
			return 0, fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}

	return len(contents), nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

func toIndexed(c *storage.Content) *IndexedContent {
	doc := &IndexedContent{
		ID:       strconv.FormatInt(c.ID, 10),
		Owner:    strconv.FormatInt(c.UserID, 10),
		Type:     string(c.Type),
		Title:    c.Title,
		Text:     c.ExtractedText,
		Author:   c.Author,
		Keywords: c.Keywords,
		Link:     c.Link,
	}
	for _, t := range c.Tags {
		doc.Tags = append(doc.Tags, t.Title)
	}
	if c.PublishedAt != nil {
		doc.PublishedAt = *c.PublishedAt
	} else {
		doc.PublishedAt = c.CreatedAt
	}
	return doc
}
