// Package capture records page context around saved content, saves quick
// captures from a text selection, and generates social posts for captures.
package capture

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/renderinc/learnshare/internal/crafting"
	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/ingest"
	"github.com/renderinc/learnshare/internal/llm"
	"github.com/renderinc/learnshare/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTitle    = "Quick Capture"
	quickLearnings  = "Quick capture from my learning journey"
	socialPostsKey  = "socialPosts"
	captureDateKey  = "captureDate"
	quickCaptureKey = "quickCapture"
)

type Store interface {
	GetContentForUser(ctx context.Context, id, userID int64) (*storage.Content, error)
	CreateContext(ctx context.Context, cc *storage.ContentContext) error
	ListContexts(ctx context.Context, contentID int64) ([]*storage.ContentContext, error)
	UpdateMetadata(ctx context.Context, id int64, meta storage.Metadata) error
}

// Ingester saves a new content row.
type Ingester interface {
	Ingest(ctx context.Context, userID int64, req ingest.Request) (*storage.Content, error)
}

// PageContexter describes a page as JSON, or "" when it cannot be fetched.
type PageContexter interface {
	PageContext(ctx context.Context, link string) string
}

type Crafter interface {
	Craft(ctx context.Context, content crafting.Content, platform crafting.Platform, style crafting.Style) (string, error)
}

// Deps are the collaborators of a Service. Pages may be nil.
type Deps struct {
	Store    Store
	LLM      llm.Completer
	Ingester Ingester
	Pages    PageContexter
	Crafter  Crafter
}

type ContextRequest struct {
	ContentID    int64  `json:"contentId" validate:"required"`
	SourceURL    string `json:"sourceUrl"`
	SelectedText string `json:"selectedText"`
	PageContext  string `json:"pageContext"`
	UserThought  string `json:"userThought"`
}

// Captured is the stored context with the LLM's reading of it.
type Captured struct {
	Context     *storage.ContentContext `json:"context"`
	Enhancement string                  `json:"enhancement"`
}

// QuickCaptureOptions toggles the optional steps of QuickCapture.
// InstantSave is accepted for client compatibility; captures are always saved.
type QuickCaptureOptions struct {
	InstantSave         bool `json:"instantSave"`
	AutoTagging         bool `json:"autoTagging"`
	ContextPreservation bool `json:"contextPreservation"`
	SharingOptions      bool `json:"sharingOptions"`
}

type QuickCaptureRequest struct {
	SelectedText string              `json:"selectedText" validate:"required"`
	SourceURL    string              `json:"sourceUrl" validate:"required,url"`
	Options      QuickCaptureOptions `json:"options"`
}

// QuickCaptured is the result of QuickCapture. SocialPosts is set only when
// sharing was requested and succeeded.
type QuickCaptured struct {
	Content                 *storage.Content             `json:"content"`
	SocialPosts             map[crafting.Platform]string `json:"socialPosts,omitempty"`
	Analysis                string                       `json:"analysis"`
	RelationshipSuggestions string                       `json:"relationshipSuggestions"`
}

type Customization struct {
	Tone            string `json:"tone,omitempty"`
	Length          string `json:"length,omitempty" validate:"omitempty,oneof=short medium long"`
	IncludeHashtags bool   `json:"includeHashtags,omitempty"`
	IncludeEmojis   bool   `json:"includeEmojis,omitempty"`
}

// SocialRequest asks for posts about a saved content row, a free thought, or
// both. At least one of ContentID and Thought is required.
type SocialRequest struct {
	ContentID     int64          `json:"contentId"`
	Thought       string         `json:"thought"`
	Style         crafting.Style `json:"style" validate:"omitempty,oneof=professional casual technical minimal thread"`
	Platforms     []string       `json:"platforms" validate:"required,min=1"`
	Customization Customization  `json:"customization"`
}

type Service struct {
	deps Deps
	now  func() time.Time
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps, now: time.Now}
}

// Capture attaches a page selection and thought to a content row the user owns.
func (s *Service) Capture(ctx context.Context, userID int64, req ContextRequest) (*Captured, error) {
	if _, err := s.owned(ctx, req.ContentID, userID); err != nil {
		return nil, err
	}

	enhancement, err := s.deps.LLM.Complete(ctx, enhancementPrompt(req))
	if err != nil {
		return nil, errs.ErrUpstream.WithMessage("Error capturing context").Wrap(err)
	}

	cc := &storage.ContentContext{
		ContentID:    req.ContentID,
		SourceURL:    req.SourceURL,
		SelectedText: req.SelectedText,
		PageContext:  req.PageContext,
		UserThought:  req.UserThought,
		CaptureTime:  s.now().UTC(),
	}
	if err := s.deps.Store.CreateContext(ctx, cc); err != nil {
		return nil, err
	}
	return &Captured{Context: cc, Enhancement: enhancement}, nil
}

// Contexts lists the captured contexts of a content row, newest first.
func (s *Service) Contexts(ctx context.Context, userID, contentID int64) ([]*storage.ContentContext, error) {
	if _, err := s.owned(ctx, contentID, userID); err != nil {
		return nil, err
	}
	return s.deps.Store.ListContexts(ctx, contentID)
}

// QuickCapture analyzes a selection, saves it as TEXT content and runs the
// optional steps. Steps after the save only log on failure.
func (s *Service) QuickCapture(ctx context.Context, userID int64, req QuickCaptureRequest) (*QuickCaptured, error) {
	analysis, err := s.deps.LLM.Complete(ctx, analysisPrompt(req.SelectedText, req.SourceURL))
	if err != nil {
		return nil, errs.ErrUpstream.WithMessage("Error capturing content").Wrap(err)
	}
	tags := Bullets(analysis)

	in := ingest.Request{
		Link:          req.SourceURL,
		Type:          storage.TypeText,
		Title:         CaptureTitle(req.SourceURL),
		ExtractedText: req.SelectedText,
		Metadata: storage.Metadata{
			quickCaptureKey: true,
			"analysis":      analysis,
			captureDateKey:  s.now().UTC().Format(time.RFC3339),
		},
	}
	if req.Options.AutoTagging {
		in.Tags = tags
	}
	content, err := s.deps.Ingester.Ingest(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	out := &QuickCaptured{Content: content, Analysis: analysis}

	if req.Options.ContextPreservation {
		cc := &storage.ContentContext{
			ContentID:    content.ID,
			SourceURL:    req.SourceURL,
			SelectedText: req.SelectedText,
			CaptureTime:  s.now().UTC(),
		}
		if s.deps.Pages != nil {
			cc.PageContext = s.deps.Pages.PageContext(ctx, req.SourceURL)
		}
		if err := s.deps.Store.CreateContext(ctx, cc); err != nil {
			log.Printf("[capture] content %d: save context: %v", content.ID, err)
		}
	}

	if req.Options.SharingOptions {
		src := crafting.Content{Summary: req.SelectedText, KeyPoints: tags, Learnings: quickLearnings}
		posts, err := s.craftAll(ctx, src, []crafting.Platform{crafting.Twitter, crafting.LinkedIn}, crafting.StyleMinimal)
		if err != nil {
			log.Printf("[capture] content %d: craft posts: %v", content.ID, err)
		} else {
			out.SocialPosts = posts
		}
	}

	suggestions, err := s.deps.LLM.Complete(ctx, suggestionPrompt(req.SelectedText, analysis))
	if err != nil {
		log.Printf("[capture] content %d: relationship suggestions: %v", content.ID, err)
	}
	out.RelationshipSuggestions = suggestions
	return out, nil
}

// GeneratePosts crafts one post per requested platform. Posts about a saved
// row are also stored under its metadata.socialPosts.
func (s *Service) GeneratePosts(ctx context.Context, userID int64, req SocialRequest) (map[crafting.Platform]string, error) {
	if req.ContentID == 0 && strings.TrimSpace(req.Thought) == "" {
		return nil, errs.ErrInvalidRequest.WithMessage("contentId or thought is required")
	}
	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		return nil, err
	}
	if req.Style == "" {
		req.Style = crafting.StyleProfessional
	}

	var (
		content  *storage.Content
		contexts []*storage.ContentContext
	)
	text := req.Thought
	if req.ContentID != 0 {
		if content, err = s.owned(ctx, req.ContentID, userID); err != nil {
			return nil, err
		}
		if contexts, err = s.deps.Store.ListContexts(ctx, content.ID); err != nil {
			return nil, err
		}
		if content.ExtractedText != "" {
			text = content.ExtractedText
		}
	}

	enhanced, err := s.deps.LLM.Complete(ctx, socialPrompt(text, contexts, req))
	if err != nil {
		return nil, errs.ErrUpstream.WithMessage("Error generating social posts").Wrap(err)
	}

	src := crafting.Content{Summary: enhanced, Learnings: req.Thought}
	if content != nil {
		src.KeyPoints = content.Keywords
	}
	posts, err := s.craftAll(ctx, src, platforms, req.Style)
	if err != nil {
		return nil, err
	}

	if content != nil {
		meta := storage.Metadata{}
		for k, v := range content.Metadata {
			meta[k] = v
		}
		meta[socialPostsKey] = posts
		if err := s.deps.Store.UpdateMetadata(ctx, content.ID, meta); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

func (s *Service) owned(ctx context.Context, contentID, userID int64) (*storage.Content, error) {
	c, err := s.deps.Store.GetContentForUser(ctx, contentID, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errs.ErrContentNotFound
	}
	return c, nil
}

func (s *Service) craftAll(ctx context.Context, src crafting.Content, platforms []crafting.Platform, style crafting.Style) (map[crafting.Platform]string, error) {
	texts := make([]string, len(platforms))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range platforms {
		g.Go(func() error {
			text, err := s.deps.Crafter.Craft(gctx, src, p, style)
			texts[i] = text
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	posts := make(map[crafting.Platform]string, len(platforms))
	for i, p := range platforms {
		posts[p] = texts[i]
	}
	return posts, nil
}

func parsePlatforms(names []string) ([]crafting.Platform, error) {
	seen := make(map[crafting.Platform]bool, len(names))
	var out []crafting.Platform
	for _, name := range names {
		p, err := crafting.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}

// Bullets returns the lines of text that start with "- ", without the marker.
func Bullets(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if item, ok := strings.CutPrefix(line, "- "); ok {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// CaptureTitle is the last path segment of link, or "Quick Capture".
func CaptureTitle(link string) string {
	if i := strings.LastIndex(link, "/"); i >= 0 {
		link = link[i+1:]
	}
	if link == "" {
		return defaultTitle
	}
	return link
}
