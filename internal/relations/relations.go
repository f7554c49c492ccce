// Package relations connects saved content to topics and to other content,
// and suggests connections with an LLM and semantic search.
package relations

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/ingest"
	"github.com/renderinc/learnshare/internal/llm"
	"github.com/renderinc/learnshare/internal/search"
	"github.com/renderinc/learnshare/internal/storage"
)

// similarLimit is how many nearest neighbours Suggest asks the index for.
const similarLimit = 5

type Store interface {
	GetContentForUser(ctx context.Context, id, userID int64) (*storage.Content, error)
	ListContexts(ctx context.Context, contentID int64) ([]*storage.ContentContext, error)
	AddRelations(ctx context.Context, contentID int64, topics []string, relatedIDs []int64) error
	ListTopics(ctx context.Context, contentID int64) ([]storage.Topic, error)
	ListRelatedContents(ctx context.Context, contentID int64) ([]*storage.Content, error)
}

// Searcher finds the user's content nearest to a query.
type Searcher interface {
	Search(ctx context.Context, userID int64, query string, topK int) ([]search.Result, error)
}

type CreateRequest struct {
	ContentID         int64    `json:"contentId" validate:"required"`
	RelatedContentIDs []int64  `json:"relatedContentIds"`
	Topics            []string `json:"topics"`
}

// Suggestions is the LLM's reading of a content row plus its nearest
// neighbours from the vector index.
type Suggestions struct {
	Suggestions string           `json:"suggestions"`
	Content     *storage.Content `json:"content"`
	Similar     []search.Result  `json:"similar"`
}

// Related is everything a content row is connected to.
type Related struct {
	DirectRelations []*storage.Content `json:"directRelations"`
	Topics          []storage.Topic    `json:"topics"`
}

type Service struct {
	store    Store
	llm      llm.Completer
	searcher Searcher
}

// NewService builds a Service. searcher may be nil, in which case Suggest
// returns no similar items.
func NewService(store Store, completer llm.Completer, searcher Searcher) *Service {
	return &Service{store: store, llm: completer, searcher: searcher}
}

// Suggest asks the LLM for topics, clusters and learning paths the content
// belongs to, and lists the user's most similar saved items.
func (s *Service) Suggest(ctx context.Context, userID, contentID int64) (*Suggestions, error) {
	c, err := s.owned(ctx, contentID, userID)
	if err != nil {
		return nil, err
	}
	contexts, err := s.store.ListContexts(ctx, contentID)
	if err != nil {
		return nil, err
	}

	text, err := s.llm.Complete(ctx, suggestPrompt(c, contexts))
	if err != nil {
		return nil, errs.ErrUpstream.WithMessage("Error suggesting relationships").Wrap(err)
	}
	return &Suggestions{Suggestions: text, Content: c, Similar: s.similar(ctx, userID, c)}, nil
}

func (s *Service) similar(ctx context.Context, userID int64, c *storage.Content) []search.Result {
	out := []search.Result{}
	if s.searcher == nil {
		return out
	}
	results, err := s.searcher.Search(ctx, userID, ingest.EmbeddingInput(c.Title, c.ExtractedText, c.Keywords), similarLimit+1)
	if err != nil {
		log.Printf("[relations] similar to content %d: %v", c.ID, err)
		return out
	}
	for _, r := range results {
		if r.Kind != search.KindResolved || r.ID == nil || *r.ID == c.ID {
			continue
		}
		out = append(out, r)
		if len(out) == similarLimit {
			break
		}
	}
	return out
}

// Create attaches topics and related rows to a content row. The user must
// own the content row and every related row.
func (s *Service) Create(ctx context.Context, userID int64, req CreateRequest) error {
	if _, err := s.owned(ctx, req.ContentID, userID); err != nil {
		return err
	}
	for _, id := range req.RelatedContentIDs {
		if _, err := s.owned(ctx, id, userID); err != nil {
			if errors.Is(err, errs.ErrContentNotFound) {
				return errs.ErrContentNotFound.WithMessage(fmt.Sprintf("related content %d not found", id))
			}
			return err
		}
	}
	return s.store.AddRelations(ctx, req.ContentID, req.Topics, req.RelatedContentIDs)
}

// Related returns the rows related to contentID in either direction and its topics.
func (s *Service) Related(ctx context.Context, userID, contentID int64) (*Related, error) {
	if _, err := s.owned(ctx, contentID, userID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListRelatedContents(ctx, contentID)
	if err != nil {
		return nil, err
	}
	topics, err := s.store.ListTopics(ctx, contentID)
	if err != nil {
		return nil, err
	}
	return &Related{DirectRelations: rows, Topics: topics}, nil
}

func (s *Service) owned(ctx context.Context, contentID, userID int64) (*storage.Content, error) {
	c, err := s.store.GetContentForUser(ctx, contentID, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errs.ErrContentNotFound
	}
	return c, nil
}

func suggestPrompt(c *storage.Content, contexts []*storage.ContentContext) string {
	var thoughts []string
	for _, cc := range contexts {
		if cc.UserThought != "" {
			thoughts = append(thoughts, cc.UserThought)
		}
	}
	return fmt.Sprintf(`You're an expert at analyzing content relationships and knowledge graphs.

Analyze this content and suggest:
1. Related topics
2. Potential content clusters
3. Learning path suggestions

Content: %s
Context: %s
Current Topics: %s`, c.ExtractedText, strings.Join(thoughts, "\n"), strings.Join(c.Keywords, ", "))
}
