package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorID(t *testing.T) {
	assert.Equal(t, "content-42", VectorID(42))

	id, ok := ParseVectorID("content-42")
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)

	_, ok = ParseVectorID("doc-42")
	assert.False(t, ok)
}

func TestMetaInt64(t *testing.T) {
	for _, v := range []any{int64(7), 7, float64(7), json.Number("7"), "7"} {
		n, ok := MetaInt64(map[string]any{"k": v}, "k")
		assert.True(t, ok, "%T", v)
		assert.EqualValues(t, 7, n)
	}
	_, ok := MetaInt64(map[string]any{}, "k")
	assert.False(t, ok)
}

func TestMemory_QueryExactMatchFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, []Vector{
		{ID: VectorID(1), Values: []float32{1, 0, 0}, Metadata: map[string]any{MetaUserID: int64(1), MetaTitle: "a"}},
		{ID: VectorID(2), Values: []float32{0.6, 0.8, 0}, Metadata: map[string]any{MetaUserID: int64(1), MetaTitle: "b"}},
		{ID: VectorID(3), Values: []float32{0, 0, 1}, Metadata: map[string]any{MetaUserID: int64(1), MetaTitle: "c"}},
	}))

	matches, err := m.Query(ctx, []float32{0.6, 0.8, 0}, 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, VectorID(2), matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)

	matches, err = m.Query(ctx, []float32{0.6, 0.8, 0}, 20, 1)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.GreaterOrEqual(t, matches[1].Score, matches[2].Score)
}

func TestMemory_QueryFiltersByOwner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, []Vector{
		{ID: VectorID(1), Values: []float32{1, 0}, Metadata: map[string]any{MetaUserID: int64(1)}},
		{ID: VectorID(2), Values: []float32{1, 0}, Metadata: map[string]any{MetaUserID: float64(2)}},
	}))

	matches, err := m.Query(ctx, []float32{1, 0}, 10, 2)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, VectorID(2), matches[0].ID)

	require.NoError(t, m.Delete(ctx, []string{VectorID(2)}))
	matches, err = m.Query(ctx, []float32{1, 0}, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, 1, m.Len())
}

func TestPinecone_UpsertAndQuery(t *testing.T) {
	var upserted struct {
		Vectors []struct {
			ID       string         `json:"id"`
			Values   []float32      `json:"values"`
			Metadata map[string]any `json:"metadata"`
		} `json:"vectors"`
		Namespace string `json:"namespace"`
	}
	var query map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pk", r.Header.Get("Api-Key"))
		switch r.URL.Path {
		case "/vectors/upsert":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
			w.Write([]byte(`{"upsertedCount":1}`))
		case "/query":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&query))
			w.Write([]byte(`{"matches":[{"id":"content-5","score":0.91,"metadata":{"userId":3,"contentId":5,"title":"t"}}]}`))
		case "/vectors/delete":
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewPinecone(PineconeConfig{Host: srv.URL, APIKey: "pk", Namespace: "ns"})
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, []Vector{{
		ID:       VectorID(5),
		Values:   []float32{0.5, 0.5},
		Metadata: map[string]any{MetaUserID: int64(3), MetaTitle: "t", MetaImage: ""},
	}}))
	require.Len(t, upserted.Vectors, 1)
	assert.Equal(t, "ns", upserted.Namespace)
	assert.NotContains(t, upserted.Vectors[0].Metadata, MetaImage, "empty metadata is omitted")

	matches, err := p.Query(ctx, []float32{0.5, 0.5}, 20, 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0.91, matches[0].Score, 1e-9)
	id, ok := MetaInt64(matches[0].Metadata, MetaContentID)
	assert.True(t, ok)
	assert.EqualValues(t, 5, id)

	assert.EqualValues(t, 20, query["topK"])
	assert.Equal(t, true, query["includeMetadata"])
	filter := query["filter"].(map[string]any)[MetaUserID].(map[string]any)
	assert.EqualValues(t, 3, filter["$eq"])

	assert.NoError(t, p.Delete(ctx, []string{VectorID(5)}))
}

func TestPinecone_QueryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewPinecone(PineconeConfig{Host: srv.URL})
	_, err := p.Query(context.Background(), []float32{1}, 1, 1)
	assert.Error(t, err)
}

func TestNewPinecone_AddsScheme(t *testing.T) {
	p := NewPinecone(PineconeConfig{Host: "idx-abc.svc.pinecone.io/"})
	assert.Equal(t, "https://idx-abc.svc.pinecone.io", p.baseURL)
}

func TestPGVector_RoundTrip(t *testing.T) {
	dsn := os.Getenv("PGVECTOR_TEST_DSN")
	if dsn == "" {
		t.Skip("PGVECTOR_TEST_DSN not set")
	}
	ctx := context.Background()
	p, err := OpenPGVector(ctx, dsn, "learnshare_test_vectors", 3)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Upsert(ctx, []Vector{
		{ID: VectorID(1), Values: []float32{1, 0, 0}, Metadata: map[string]any{MetaUserID: int64(9), MetaTitle: "x"}},
	}))
	matches, err := p.Query(ctx, []float32{1, 0, 0}, 1, 9)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	require.NoError(t, p.Delete(ctx, []string{VectorID(1)}))
}
