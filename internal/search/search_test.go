package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/renderinc/learnshare/internal/storage"
	"github.com/renderinc/learnshare/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vecs map[string][]float32
}

func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := f.vecs[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (fakeEmbedder) Health(context.Context) error { return nil }

type fakeResolver struct {
	byID    map[int64]*storage.Content
	byTitle map[string]*storage.Content
	err     error
}

func (f fakeResolver) GetContent(_ context.Context, id int64) (*storage.Content, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func (f fakeResolver) FindContentByTitleAndDescription(_ context.Context, userID int64, title, _ string) (*storage.Content, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := f.byTitle[title]
	if c == nil || c.UserID != userID {
		return nil, nil
	}
	return c, nil
}

func newSemantic(t *testing.T, resolver ContentResolver, vectors ...vectorindex.Vector) *Semantic {
	t.Helper()
	idx := vectorindex.NewMemory()
	require.NoError(t, idx.Upsert(context.Background(), vectors))
	emb := fakeEmbedder{vecs: map[string][]float32{
		"go":    {1, 0, 0, 0},
		"music": {0, 1, 0, 0},
	}}
	return NewSemantic(emb, idx, resolver, 4)
}

func TestSemantic_SearchResolvesByContentID(t *testing.T) {
	published := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	row := &storage.Content{
		ID: 7, UserID: 1, Title: "Go tour", Link: "https://go.dev/tour",
		Metadata: storage.Metadata{"description": "A tour of Go"}, PublishedAt: &published,
	}
	s := newSemantic(t,
		fakeResolver{byID: map[int64]*storage.Content{7: row}},
		vectorindex.Vector{ID: vectorindex.VectorID(7), Values: []float32{1, 0, 0, 0}, Metadata: map[string]any{
			vectorindex.MetaUserID: int64(1), vectorindex.MetaContentID: int64(7), vectorindex.MetaTitle: "Go tour",
		}},
	)

	results, err := s.Search(context.Background(), 1, "go", DirectTopK)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, KindResolved, r.Kind)
	require.NotNil(t, r.ID)
	assert.Equal(t, int64(7), *r.ID)
	assert.Equal(t, "A tour of Go", r.Description)
	assert.Equal(t, UnknownAuthor, r.Author)
	assert.Nil(t, r.Image)
	require.NotNil(t, r.Timestamp)
	assert.Equal(t, "2024-05-01T00:00:00Z", *r.Timestamp)
	assert.InDelta(t, 1.0, r.Score, 1e-6)
}

func TestSemantic_SearchFallsBackToTitle(t *testing.T) {
	row := &storage.Content{ID: 9, UserID: 1, Title: "Lo-fi mix", Link: "https://example.com/mix"}
	s := newSemantic(t,
		fakeResolver{
			byID:    map[int64]*storage.Content{},
			byTitle: map[string]*storage.Content{"Lo-fi mix": row},
		},
		vectorindex.Vector{ID: "legacy-1", Values: []float32{0, 1, 0, 0}, Metadata: map[string]any{
			vectorindex.MetaUserID: float64(1), vectorindex.MetaTitle: "Lo-fi mix",
		}},
	)

	results, err := s.Search(context.Background(), 1, "music", ChatTopK)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, KindResolved, results[0].Kind)
	assert.Equal(t, int64(9), *results[0].ID)
	assert.Equal(t, NoDescription, results[0].Description)
}

func TestSemantic_SearchIgnoresForeignContentID(t *testing.T) {
	foreign := &storage.Content{ID: 3, UserID: 2, Title: "Someone else's"}
	s := newSemantic(t,
		fakeResolver{byID: map[int64]*storage.Content{3: foreign}},
		vectorindex.Vector{ID: vectorindex.VectorID(3), Values: []float32{1, 0, 0, 0}, Metadata: map[string]any{
			vectorindex.MetaUserID: int64(1), vectorindex.MetaContentID: int64(3),
		}},
	)

	results, err := s.Search(context.Background(), 1, "go", DirectTopK)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, KindPartial, results[0].Kind)
	assert.Nil(t, results[0].ID)
	assert.Equal(t, UnknownTitle, results[0].Title)
	assert.Equal(t, NoLink, results[0].Link)
}

func TestSemantic_SearchResolverError(t *testing.T) {
	s := newSemantic(t,
		fakeResolver{err: errors.New("db down")},
		vectorindex.Vector{ID: vectorindex.VectorID(1), Values: []float32{1, 0, 0, 0}, Metadata: map[string]any{
			vectorindex.MetaUserID: int64(1), vectorindex.MetaContentID: int64(1), vectorindex.MetaLink: "https://x.test",
		}},
	)

	results, err := s.Search(context.Background(), 1, "go", DirectTopK)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, KindUnavailable, results[0].Kind)
	assert.Equal(t, UnavailableTitle, results[0].Title)
	assert.Equal(t, UnavailableDescription, results[0].Description)
	assert.Equal(t, "https://x.test", results[0].Link)
}

func TestSemantic_SearchOnlyOwnerVectors(t *testing.T) {
	s := newSemantic(t,
		fakeResolver{},
		vectorindex.Vector{ID: "content-1", Values: []float32{1, 0, 0, 0}, Metadata: map[string]any{vectorindex.MetaUserID: int64(2)}},
	)

	results, err := s.Search(context.Background(), 1, "go", DirectTopK)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemantic_SearchEmbedError(t *testing.T) {
	s := newSemantic(t, fakeResolver{})
	_, err := s.Search(context.Background(), 1, "unknown query", DirectTopK)
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	got := Relevant([]Result{{Score: 0.9}, {Score: 0.5}, {Score: 0.49}})
	assert.Len(t, got, 2)
	assert.Empty(t, Relevant(nil))
}

func TestIndex_SearchFiltersByOwner(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	now := time.Now()
	require.NoError(t, idx.IndexContent(&storage.Content{
		ID: 1, UserID: 1, Type: storage.TypeArticle, Title: "Concurrency in Go",
		ExtractedText: "goroutines and channels", Link: "https://a.test", CreatedAt: now,
		Tags: []storage.Tag{{ID: 1, Title: "golang"}},
	}))
	require.NoError(t, idx.IndexContent(&storage.Content{
		ID: 2, UserID: 2, Type: storage.TypeArticle, Title: "Channels everywhere",
		ExtractedText: "goroutines and channels", Link: "https://b.test", CreatedAt: now,
	}))

	hits, err := idx.Search(1, "goroutines", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].ID)
	assert.Equal(t, "Concurrency in Go", hits[0].Title)
	assert.Equal(t, "ARTICLE", hits[0].Type)

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	require.NoError(t, idx.Delete(1))
	hits, err = idx.Search(1, "goroutines", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

type listerFunc func() []*storage.Content

func (f listerFunc) ListContents(context.Context, int64, int) ([]*storage.Content, error) {
	return f(), nil
}

func TestIndex_Rebuild(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.Rebuild(context.Background(), listerFunc(func() []*storage.Content {
		return []*storage.Content{
			{ID: 1, UserID: 1, Title: "one", CreatedAt: time.Now()},
			{ID: 2, UserID: 1, Title: "two", CreatedAt: time.Now()},
		}
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}
