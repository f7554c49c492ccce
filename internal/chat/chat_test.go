package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/renderinc/learnshare/internal/chatcache"
	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/llm"
	"github.com/renderinc/learnshare/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	results []search.Result
	err     error
	queries []string
	topKs   []int
}

func (f *fakeSearcher) Search(_ context.Context, _ int64, query string, topK int) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	f.topKs = append(f.topKs, topK)
	return f.results, f.err
}

type scriptedCompleter struct {
	prompts []string
	respond func(prompt string) (string, error)
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.respond(prompt)
}

func replies(prompt string) (string, error) {
	switch {
	case strings.HasPrefix(prompt, "User's Query"):
		return "enhanced query", nil
	case strings.HasPrefix(prompt, "Metadata:"):
		return "Here is something you saved.", nil
	default:
		return "general answer", nil
	}
}

func newService(s Searcher, c llm.Completer) *Service {
	svc := NewService(s, c, chatcache.NewLRU(10, time.Minute))
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestService_ChatSearchHit(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{{
		Kind: search.KindResolved, Score: 0.8, Title: "Go memory model", Link: "https://go.dev/ref/mem",
	}}}
	llmc := &scriptedCompleter{respond: replies}
	svc := newService(searcher, llmc)

	reply, err := svc.Chat(context.Background(), 7, Request{Query: "memory model", ConversationID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "Here is something you saved.", reply.Response)
	require.NotNil(t, reply.Link)
	assert.Equal(t, "https://go.dev/ref/mem", *reply.Link)
	assert.Equal(t, "c1", reply.ConversationID)
	assert.Equal(t, []string{"enhanced query"}, searcher.queries)
	assert.Equal(t, []int{search.ChatTopK}, searcher.topKs)

	conv, ok := svc.cache.Get("c1")
	require.True(t, ok)
	assert.True(t, conv.SearchHit)
	assert.Equal(t, chatcache.SourceDatabase, conv.Source)
	require.Len(t, conv.Metadata, 1)
	assert.Equal(t, search.NoDescription, conv.Metadata[0].Description)
	assert.Equal(t, search.UnknownAuthor, conv.Metadata[0].Author)

	// A follow-up in the same conversation skips search.
	reply, err = svc.Chat(context.Background(), 7, Request{Query: "tell me more", ConversationID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "general answer", reply.Response)
	assert.Nil(t, reply.Link)
	assert.Len(t, searcher.queries, 1)
	assert.Contains(t, llmc.prompts[len(llmc.prompts)-1], "Go memory model")
}

func TestService_ChatResetStartsFresh(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{{Score: 0.9, Title: "A", Link: "l"}}}
	svc := newService(searcher, &scriptedCompleter{respond: replies})

	_, err := svc.Chat(context.Background(), 7, Request{Query: "q"})
	require.NoError(t, err)
	_, err = svc.Chat(context.Background(), 7, Request{Query: "q", ConversationID: "ignored", ResetConversation: true})
	require.NoError(t, err)
	assert.Len(t, searcher.queries, 2, "reset discards the search hit")

	conv, ok := svc.cache.Get("7")
	require.True(t, ok)
	assert.Len(t, conv.Metadata, 1)
}

func TestService_ChatBelowThreshold(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{{Score: 0.3, Title: "weak"}}}
	svc := newService(searcher, &scriptedCompleter{respond: replies})

	reply, err := svc.Chat(context.Background(), 1, Request{Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "general answer", reply.Response)
	assert.Nil(t, reply.Link)

	conv, ok := svc.cache.Get("1")
	require.True(t, ok)
	assert.False(t, conv.SearchHit)
	assert.Equal(t, chatcache.SourceGeneral, conv.Source)
}

func TestService_ChatEnhanceFailureUsesRawQuery(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newService(searcher, &scriptedCompleter{respond: func(p string) (string, error) {
		if strings.HasPrefix(p, "User's Query") {
			return "", errors.New("rate limited")
		}
		return "", llm.ErrEmptyCompletion
	}})

	reply, err := svc.Chat(context.Background(), 1, Request{Query: "kubernetes operators"})
	require.NoError(t, err)
	assert.Equal(t, []string{"kubernetes operators"}, searcher.queries)
	assert.Equal(t, "I'm still learning about kubernetes. Could you rephrase or provide more context?", reply.Response)
}

func TestService_ChatGeneralFailure(t *testing.T) {
	svc := newService(&fakeSearcher{}, &scriptedCompleter{respond: func(string) (string, error) {
		return "", errors.New("down")
	}})
	reply, err := svc.Chat(context.Background(), 1, Request{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, GeneralErrorReply, reply.Response)
}

func TestService_ChatMetadataFallbacks(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{{Score: 0.7, Title: "T"}}}
	svc := newService(searcher, &scriptedCompleter{respond: func(p string) (string, error) {
		if strings.HasPrefix(p, "Metadata:") {
			return "", errors.New("boom")
		}
		return "q", nil
	}})
	reply, err := svc.Chat(context.Background(), 1, Request{Query: "x", ConversationID: "a"})
	require.NoError(t, err)
	assert.Equal(t, MetadataErrorReply, reply.Response)
	assert.Equal(t, search.NoLink, *reply.Link)

	svc = newService(searcher, &scriptedCompleter{respond: func(p string) (string, error) {
		if strings.HasPrefix(p, "Metadata:") {
			return "", llm.ErrEmptyCompletion
		}
		return "q", nil
	}})
	reply, err = svc.Chat(context.Background(), 1, Request{Query: "x", ConversationID: "b"})
	require.NoError(t, err)
	assert.Equal(t, MetadataEmptyReply, reply.Response)
}

func TestService_ChatSearchError(t *testing.T) {
	svc := newService(&fakeSearcher{err: errors.New("pinecone down")}, &scriptedCompleter{respond: replies})
	_, err := svc.Chat(context.Background(), 1, Request{Query: "x"})
	require.Error(t, err)
	assert.Equal(t, 500, errs.From(err).Status)
}

func TestService_ChatEmptyQuery(t *testing.T) {
	svc := newService(&fakeSearcher{}, &scriptedCompleter{respond: replies})
	_, err := svc.Chat(context.Background(), 1, Request{Query: "  "})
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestConversationKey(t *testing.T) {
	assert.Equal(t, "5", ConversationKey(5, Request{}))
	assert.Equal(t, "abc", ConversationKey(5, Request{ConversationID: "abc"}))
	assert.Equal(t, "5", ConversationKey(5, Request{ConversationID: "abc", ResetConversation: true}))
}

func TestService_AskAboutContent(t *testing.T) {
	llmc := &scriptedCompleter{respond: func(string) (string, error) { return "answer", nil }}
	svc := newService(&fakeSearcher{}, llmc)
	q := ContentQuestion{Content: "Channels", PageContext: "page", SourceURL: "https://x.test"}

	q.Question = "Hello there"
	got, err := svc.AskAboutContent(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, GreetingReply, got)

	q.Question = "Go ahead"
	got, err = svc.AskAboutContent(context.Background(), q)
	require.NoError(t, err)
	assert.Contains(t, got, `"Channels"`)

	q.Question = "What is a buffered channel?"
	got, err = svc.AskAboutContent(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
	require.Len(t, llmc.prompts, 1)
	assert.Contains(t, llmc.prompts[0], "What is a buffered channel?")
}

func TestService_AskAboutContentErrors(t *testing.T) {
	q := ContentQuestion{Question: "why?", Content: "c", PageContext: "p", SourceURL: "u"}

	svc := newService(&fakeSearcher{}, &scriptedCompleter{respond: func(string) (string, error) { return "", llm.ErrEmptyCompletion }})
	got, err := svc.AskAboutContent(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, NoValidContent, got)

	svc = newService(&fakeSearcher{}, &scriptedCompleter{respond: func(string) (string, error) { return "", errors.New("x") }})
	_, err = svc.AskAboutContent(context.Background(), q)
	assert.ErrorIs(t, err, errs.ErrUpstream)
}

func TestService_Summarize(t *testing.T) {
	llmc := &scriptedCompleter{respond: func(string) (string, error) { return "  a summary \n", nil }}
	svc := newService(&fakeSearcher{}, llmc)

	got, err := svc.Summarize(context.Background(), SummaryRequest{Content: "text", Discussion: []byte(`["q1"]`)})
	require.NoError(t, err)
	assert.Equal(t, "a summary", got)
	assert.Contains(t, llmc.prompts[0], `Discussion: ["q1"]`)

	svc = newService(&fakeSearcher{}, &scriptedCompleter{respond: func(string) (string, error) { return "", llm.ErrEmptyCompletion }})
	_, err = svc.Summarize(context.Background(), SummaryRequest{Content: "text"})
	assert.ErrorIs(t, err, errs.ErrUpstream)
}

func TestService_Explore(t *testing.T) {
	llmc := &scriptedCompleter{respond: func(string) (string, error) {
		return "Channels connect goroutines.\n\n- Unbuffered sends block\n* Close from the sender\n• Range drains a channel\n-\nTags: go, concurrency", nil
	}}
	svc := newService(&fakeSearcher{}, llmc)

	got, err := svc.Explore(context.Background(), ExploreRequest{Content: "about channels"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Unbuffered sends block", "Close from the sender", "Range drains a channel"}, got.Insights)
	assert.True(t, strings.HasPrefix(got.Summary, "Channels connect goroutines."))
	assert.Contains(t, llmc.prompts[0], "Content: about channels")

	svc = newService(&fakeSearcher{}, &scriptedCompleter{respond: func(string) (string, error) { return "", errors.New("down") }})
	_, err = svc.Explore(context.Background(), ExploreRequest{Content: "x"})
	assert.ErrorIs(t, err, errs.ErrUpstream)
}
