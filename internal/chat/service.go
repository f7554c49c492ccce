// Package chat answers questions about a user's saved content.
package chat

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/renderinc/learnshare/internal/chatcache"
	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/llm"
	"github.com/renderinc/learnshare/internal/search"
)

// Canned replies used when the completion API fails or returns nothing.
const (
	GeneralErrorReply   = "I'm having trouble accessing that information right now. Please try again later."
	MetadataErrorReply  = "I have more information about this if you're interested."
	MetadataEmptyReply  = "Would you like me to elaborate further on this topic?"
	followUpQuestion    = "Would you like more details about this?"
	generalContextItems = 2
)

// Searcher runs semantic search over one user's content.
type Searcher interface {
	Search(ctx context.Context, userID int64, query string, topK int) ([]search.Result, error)
}

// Request is one conversational turn.
type Request struct {
	Query             string `json:"query" validate:"required"`
	ConversationID    string `json:"conversationId"`
	ResetConversation bool   `json:"resetConversation"`
}

type Reply struct {
	Response       string  `json:"response"`
	Link           *string `json:"link"`
	ConversationID string  `json:"conversationId"`
}

// Service runs conversational search backed by a context cache.
type Service struct {
	searcher Searcher
	llm      llm.Completer
	cache    chatcache.Cache
	now      func() time.Time
}

func NewService(searcher Searcher, completer llm.Completer, cache chatcache.Cache) *Service {
	return &Service{searcher: searcher, llm: completer, cache: cache, now: time.Now}
}

// Chat answers one turn of a conversation for userID.
func (s *Service) Chat(ctx context.Context, userID int64, req Request) (*Reply, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errs.ErrInvalidRequest.WithMessage("query is required")
	}

	key := ConversationKey(userID, req)
	conv, ok := s.cache.Get(key)
	if req.ResetConversation || !ok {
		conv = chatcache.Fresh(s.now())
	}

	if conv.SearchHit {
		conv.Timestamp = s.now()
		s.cache.Set(key, conv)
		return &Reply{
			Response:       s.generalResponse(ctx, query, lastItems(conv.Metadata, generalContextItems)),
			ConversationID: key,
		}, nil
	}

	searchQuery := query
	if len(conv.Metadata) > 0 {
		searchQuery = "Context: " + toJSON(conv.Metadata) + "\nQuery: " + query
	}
	enhanced := s.enhance(ctx, searchQuery)

	results, err := s.searcher.Search(ctx, userID, enhanced, search.ChatTopK)
	if err != nil {
		return nil, errs.ErrInternal.WithMessage("Error fetching search results.").Wrap(err)
	}

	reply := &Reply{ConversationID: key}
	if relevant := search.Relevant(results); len(relevant) > 0 {
		item := contextItem(relevant[0])
		reply.Response = s.metadataResponse(ctx, item)
		link := item.Link
		reply.Link = &link

		conv.Metadata = append(conv.Metadata, item)
		conv.SearchHit = true
		conv.Source = chatcache.SourceDatabase
	} else {
		reply.Response = s.generalResponse(ctx, query, lastItems(conv.Metadata, generalContextItems))
	}

	conv.Timestamp = s.now()
	s.cache.Set(key, conv)
	return reply, nil
}

// ConversationKey picks the cache key of a turn.
func ConversationKey(userID int64, req Request) string {
	if req.ResetConversation || req.ConversationID == "" {
		return strconv.FormatInt(userID, 10)
	}
	return req.ConversationID
}

func (s *Service) enhance(ctx context.Context, query string) string {
	text, err := s.llm.Complete(ctx, enhancePrompt(query))
	if err != nil {
		log.Printf("[chat] enhance query: %v", err)
		return query
	}
	return text
}

func (s *Service) generalResponse(ctx context.Context, query string, items []chatcache.Item) string {
	text, err := s.llm.Complete(ctx, generalPrompt(query, items))
	switch {
	case errors.Is(err, llm.ErrEmptyCompletion):
		return "I'm still learning about " + firstWord(query) + ". Could you rephrase or provide more context?"
	case err != nil:
		log.Printf("[chat] general response: %v", err)
		return GeneralErrorReply
	}
	return text
}

func (s *Service) metadataResponse(ctx context.Context, item chatcache.Item) string {
	text, err := s.llm.Complete(ctx, metadataPrompt(item, true))
	switch {
	case errors.Is(err, llm.ErrEmptyCompletion):
		return MetadataEmptyReply
	case err != nil:
		log.Printf("[chat] metadata response: %v", err)
		return MetadataErrorReply
	}
	return text
}

func contextItem(r search.Result) chatcache.Item {
	return chatcache.Item{
		Title:        orDefault(r.Title, search.UnknownTitle),
		Description:  orDefault(r.Description, search.NoDescription),
		Image:        r.Image,
		Author:       orDefault(r.Author, search.UnknownAuthor),
		Timestamp:    r.Timestamp,
		Link:         orDefault(r.Link, search.NoLink),
		Score:        r.Score,
		LastQuestion: followUpQuestion,
	}
}

func lastItems(items []chatcache.Item, n int) []chatcache.Item {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
