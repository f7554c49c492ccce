package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/renderinc/learnshare/internal/auth"
	"github.com/renderinc/learnshare/internal/capture"
	"github.com/renderinc/learnshare/internal/chat"
	"github.com/renderinc/learnshare/internal/chatcache"
	"github.com/renderinc/learnshare/internal/crafting"
	"github.com/renderinc/learnshare/internal/ingest"
	"github.com/renderinc/learnshare/internal/relations"
	"github.com/renderinc/learnshare/internal/search"
	"github.com/renderinc/learnshare/internal/sharing"
	"github.com/renderinc/learnshare/internal/storage"
	"github.com/renderinc/learnshare/internal/tweets"
	"github.com/renderinc/learnshare/internal/twitter"
	"github.com/renderinc/learnshare/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{3, 4, 0, 0}, nil
}

func (constEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{3, 4, 0, 0}
	}
	return out, nil
}

func (constEmbedder) Health(context.Context) error { return nil }

type echoCompleter struct{}

func (echoCompleter) Complete(context.Context, string) (string, error) {
	return "a crafted   post", nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := storage.Open("sqlite3", filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	text, err := search.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { text.Close() })

	vectors := vectorindex.NewMemory()
	semantic := search.NewSemantic(constEmbedder{}, vectors, db, 4)
	router := ingest.NewRouter(ingest.RouterOptions{})
	pipeline := ingest.NewPipeline(ingest.Deps{
		Store:     db,
		Embedder:  constEmbedder{},
		Extractor: router,
		TextIndex: text,
		Dimension: 4,
	})
	crafter := crafting.New(echoCompleter{})
	srv := NewServer(Deps{
		Store:    db,
		Auth:     auth.NewService(db, "test-secret", time.Hour),
		Ingest:   pipeline,
		Text:     text,
		Semantic: semantic,
		Chat:     chat.NewService(semantic, echoCompleter{}, chatcache.NewLRU(10, time.Minute)),
		Crafter:  crafter,
		Capture: capture.NewService(capture.Deps{
			Store:    db,
			LLM:      echoCompleter{},
			Ingester: pipeline,
			Pages:    router,
			Crafter:  crafter,
		}),
		Relations: relations.NewService(db, echoCompleter{}, semantic),
		Sharing:   sharing.NewService(db, "http://localhost:3125"),
		Handshake: twitter.NewHandshake(twitter.NewClient(twitter.Config{}), db),
		Tweets:    tweets.NewPublisher(db, twitter.NewClient(twitter.Config{}), 0),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+"/api/v1"+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func signUpAndIn(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()
	status, _ := call(t, ts, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Ada", "email": email, "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, status)

	status, resp := call(t, ts, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": email, "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, status)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestServer_SignUp(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"name": "Ada", "email": "ada@example.com", "password": "hunter22"}
	status, resp := call(t, ts, http.MethodPost, "/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, resp.Success)
	assert.NotContains(t, string(resp.Data), "password")
	assert.NotContains(t, string(resp.Data), "hunter22")
	assert.Contains(t, string(resp.Data), `"email":"ada@example.com"`)

	status, resp = call(t, ts, http.MethodPost, "/auth/signup", "", body)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, resp.Success)

	status, _ = call(t, ts, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	for _, pw := range []string{strings.Repeat("a", 80), strings.Repeat("é", 40)} {
		status, _ = call(t, ts, http.MethodPost, "/auth/signup", "", map[string]string{
			"name": "Bob", "email": "bob@example.com", "password": pw,
		})
		assert.Equal(t, http.StatusBadRequest, status, "password of %d bytes", len(pw))
	}

	status, _ = call(t, ts, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_AddContent(t *testing.T) {
	ts := newTestServer(t)
	token := signUpAndIn(t, ts, "ada@example.com")

	status, resp := call(t, ts, http.MethodPost, "/content/addContent", token, map[string]any{
		"link":          "https://example.com/note",
		"type":          "NOTE",
		"title":         "A note",
		"tags":          []string{"x", "y"},
		"extractedText": "goroutines and channels",
	})
	require.Equal(t, http.StatusCreated, status)

	var c storage.Content
	require.NoError(t, json.Unmarshal(resp.Data, &c))
	assert.NotZero(t, c.ID)
	require.Len(t, c.Tags, 2)
	assert.Equal(t, "x", c.Tags[0].Title)
	assert.Equal(t, "y", c.Tags[1].Title)

	status, resp = call(t, ts, http.MethodGet, "/get-content", token, nil)
	require.Equal(t, http.StatusOK, status)
	var list []storage.Content
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Len(t, list, 1)

	status, _ = call(t, ts, http.MethodGet, "/search?query=goroutines", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, ts, http.MethodGet, "/search?query=kubernetes", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	other := signUpAndIn(t, ts, "bob@example.com")
	status, _ = call(t, ts, http.MethodGet, "/search?query=goroutines", other, nil)
	assert.Equal(t, http.StatusNotFound, status, "search only sees the caller's content")

	status, _ = call(t, ts, http.MethodPost, "/content/addContent", token, map[string]any{
		"link": "not a url", "type": "NOTE", "title": "bad",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_RequiresToken(t *testing.T) {
	ts := newTestServer(t)

	status, resp := call(t, ts, http.MethodPost, "/content/addContent", "", map[string]any{
		"link": "https://example.com", "type": "NOTE", "title": "t",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, resp.Success)

	status, _ = call(t, ts, http.MethodGet, "/get-content", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)
	token := signUpAndIn(t, ts, "ada@example.com")
	status, _ := call(t, ts, http.MethodPost, "/content/addContent", token, map[string]any{
		"link": "https://example.com/a", "type": "TEXT", "title": "a", "extractedText": "text",
	})
	require.Equal(t, http.StatusCreated, status)

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["contents"])
	assert.EqualValues(t, 0, health["indexed"])
	assert.EqualValues(t, 1, health["outboxPending"])
}

func TestServer_SharingFlow(t *testing.T) {
	ts := newTestServer(t)
	token := signUpAndIn(t, ts, "ada@example.com")

	status, resp := call(t, ts, http.MethodPost, "/content/addContent", token, map[string]any{
		"link": "https://example.com/shared", "type": "TEXT", "title": "shared", "extractedText": "text",
	})
	require.Equal(t, http.StatusCreated, status)
	var c storage.Content
	require.NoError(t, json.Unmarshal(resp.Data, &c))

	status, _ = call(t, ts, http.MethodGet, "/shared/deadbeef", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, resp = call(t, ts, http.MethodPost, "/share/public", token, map[string]any{"contentId": c.ID})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp.Data), "publicLink")

	status, resp = call(t, ts, http.MethodGet, "/shared/"+"https:%2F%2Fexample.com%2Fshared", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Public content fetched successfully", resp.Message)

	status, _ = call(t, ts, http.MethodPost, "/share/private", token, map[string]any{"contentId": c.ID})
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, ts, http.MethodGet, "/shared/"+"https:%2F%2Fexample.com%2Fshared", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_Crafting(t *testing.T) {
	ts := newTestServer(t)

	status, resp := call(t, ts, http.MethodPost, "/content/craft-posts", "", map[string]string{"summary": "Go 1.22 routing"})
	require.Equal(t, http.StatusOK, status)
	var posts crafting.Posts
	require.NoError(t, json.Unmarshal(resp.Data, &posts))
	assert.Equal(t, "a crafted post", posts.Twitter)
	assert.Equal(t, "a crafted post", posts.Instagram)

	status, _ = call(t, ts, http.MethodPost, "/craft-post", "", map[string]any{
		"content": map[string]string{"summary": "s"}, "platform": "myspace",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, ts, http.MethodPost, "/content/craft-thought", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func addNote(t *testing.T, ts *httptest.Server, token, title string) storage.Content {
	t.Helper()
	status, resp := call(t, ts, http.MethodPost, "/content/addContent", token, map[string]any{
		"link": "https://example.com/" + title, "type": "NOTE", "title": title, "extractedText": title + " text",
	})
	require.Equal(t, http.StatusCreated, status)
	var c storage.Content
	require.NoError(t, json.Unmarshal(resp.Data, &c))
	return c
}

func TestServer_ContextCapture(t *testing.T) {
	ts := newTestServer(t)
	token := signUpAndIn(t, ts, "ada@example.com")
	other := signUpAndIn(t, ts, "bob@example.com")
	c := addNote(t, ts, token, "channels")

	status, resp := call(t, ts, http.MethodPost, "/context", token, map[string]any{
		"contentId": c.ID, "selectedText": "fan-in", "userThought": "merge results",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Context captured successfully", resp.Message)
	assert.Contains(t, string(resp.Data), `"enhancement":"a crafted   post"`)

	path := fmt.Sprintf("/content/%d/contexts", c.ID)
	status, resp = call(t, ts, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, status)
	var contexts []storage.ContentContext
	require.NoError(t, json.Unmarshal(resp.Data, &contexts))
	require.Len(t, contexts, 1)
	assert.Equal(t, "merge results", contexts[0].UserThought)

	status, _ = call(t, ts, http.MethodGet, path, other, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = call(t, ts, http.MethodPost, "/context", other, map[string]any{"contentId": c.ID})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = call(t, ts, http.MethodGet, "/content/abc/contexts", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = call(t, ts, http.MethodPost, "/context", "", map[string]any{"contentId": c.ID})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_QuickCapture(t *testing.T) {
	ts := newTestServer(t)
	token := signUpAndIn(t, ts, "ada@example.com")

	status, resp := call(t, ts, http.MethodPost, "/quick-capture", token, map[string]any{
		"selectedText": "Goroutines are cheap.",
		"sourceUrl":    "https://go.dev/doc/effective_go",
		"options":      map[string]bool{"sharingOptions": true},
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Content captured successfully", resp.Message)
	var out struct {
		Content     storage.Content   `json:"content"`
		SocialPosts map[string]string `json:"socialPosts"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, "effective_go", out.Content.Title)
	assert.Equal(t, storage.TypeText, out.Content.Type)
	assert.Equal(t, true, out.Content.Metadata["quickCapture"])
	assert.Equal(t, "a crafted post", out.SocialPosts["twitter"])

	status, _ = call(t, ts, http.MethodPost, "/quick-capture", token, map[string]any{"selectedText": "x", "sourceUrl": "not a url"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_Relations(t *testing.T) {
	ts := newTestServer(t)
	token := signUpAndIn(t, ts, "ada@example.com")
	other := signUpAndIn(t, ts, "bob@example.com")
	a := addNote(t, ts, token, "channels")
	b := addNote(t, ts, token, "select")
	foreign := addNote(t, ts, other, "theirs")

	status, resp := call(t, ts, http.MethodPost, "/content/relationships", token, map[string]any{
		"contentId": a.ID, "relatedContentIds": []int64{b.ID}, "topics": []string{"Concurrency"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Relationships created successfully", resp.Message)

	status, _ = call(t, ts, http.MethodPost, "/content/relationships", token, map[string]any{
		"contentId": a.ID, "relatedContentIds": []int64{foreign.ID},
	})
	assert.Equal(t, http.StatusNotFound, status)

	status, resp = call(t, ts, http.MethodGet, fmt.Sprintf("/content/%d/relations", b.ID), token, nil)
	require.Equal(t, http.StatusOK, status)
	var related relations.Related
	require.NoError(t, json.Unmarshal(resp.Data, &related))
	require.Len(t, related.DirectRelations, 1)
	assert.Equal(t, a.ID, related.DirectRelations[0].ID)

	status, resp = call(t, ts, http.MethodGet, fmt.Sprintf("/content/%d/relations", a.ID), token, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Data, &related))
	require.Len(t, related.Topics, 1)
	assert.Equal(t, "concurrency", related.Topics[0].Name)

	status, resp = call(t, ts, http.MethodGet, fmt.Sprintf("/content/%d/suggest-relations", a.ID), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Relationship suggestions generated", resp.Message)
	assert.Contains(t, string(resp.Data), `"suggestions":"a crafted   post"`)

	status, _ = call(t, ts, http.MethodGet, fmt.Sprintf("/content/%d/suggest-relations", foreign.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_SocialGenerate(t *testing.T) {
	ts := newTestServer(t)
	token := signUpAndIn(t, ts, "ada@example.com")
	c := addNote(t, ts, token, "channels")

	status, resp := call(t, ts, http.MethodPost, "/social/generate", token, map[string]any{
		"contentId": c.ID, "style": "casual", "platforms": []string{"twitter", "linkedin"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Social posts generated successfully", resp.Message)
	var out struct {
		Posts map[string]string `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, map[string]string{"twitter": "a crafted post", "linkedin": "a crafted post"}, out.Posts)

	status, _ = call(t, ts, http.MethodPost, "/social/generate", token, map[string]any{"platforms": []string{"twitter"}})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = call(t, ts, http.MethodPost, "/social/generate", token, map[string]any{"thought": "t", "platforms": []string{}})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = call(t, ts, http.MethodPost, "/social/generate", token, map[string]any{"thought": "t", "style": "loud", "platforms": []string{"twitter"}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_Explore(t *testing.T) {
	ts := newTestServer(t)

	status, resp := call(t, ts, http.MethodPost, "/content/explore", "", map[string]string{"content": "channels"})
	require.Equal(t, http.StatusOK, status)
	var out chat.Exploration
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, "a crafted   post", out.Summary)
	assert.Empty(t, out.Insights)

	status, _ = call(t, ts, http.MethodPost, "/content/explore", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_TwitterNotConnected(t *testing.T) {
	ts := newTestServer(t)
	token := signUpAndIn(t, ts, "ada@example.com")

	status, resp := call(t, ts, http.MethodPost, "/schedule/twitter", token, map[string]any{
		"content": "later", "scheduledTime": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.Success)

	status, _ = call(t, ts, http.MethodPost, "/post/twitter", token, map[string]any{"content": "now"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/content/addContent", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}
