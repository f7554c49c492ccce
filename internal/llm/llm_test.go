package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGemini_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "gk", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" Hi "},{"text":"there"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(Options{BaseURL: srv.URL, APIKey: "gk", Timeout: 5 * time.Second})
	text, err := g.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
}

func TestGemini_CompleteEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g := NewGemini(Options{BaseURL: srv.URL, APIKey: "gk", Timeout: 5 * time.Second})
	_, err := g.Complete(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer ok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"answer"}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(Options{BaseURL: srv.URL, APIKey: "ok", Timeout: 5 * time.Second})
	text, err := o.Complete(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", text)
}

func TestOpenAI_CompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := NewOpenAI(Options{BaseURL: srv.URL, APIKey: "ok", Timeout: 5 * time.Second})
	_, err := o.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestAnthropic_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "from claude"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	a := NewAnthropic(Options{BaseURL: srv.URL, APIKey: "ak", MaxTokens: 64, Timeout: 5 * time.Second})
	text, err := a.Complete(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "from claude", text)
}

func TestNew(t *testing.T) {
	_, err := New(Options{Provider: "gemini"})
	assert.Error(t, err, "missing key")

	c, err := New(Options{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, c)

	_, err = New(Options{Provider: "cohere", APIKey: "k"})
	assert.Error(t, err)
}
