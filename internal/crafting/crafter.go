// Package crafting turns summaries and thoughts into platform-specific social posts.
package crafting

import (
	"context"
	"regexp"
	"strings"

	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/llm"
	"golang.org/x/sync/errgroup"
)

type Platform string

const (
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
)

type Style string

const (
	StyleProfessional Style = "professional"
	StyleCasual       Style = "casual"
	StyleTechnical    Style = "technical"
	StyleMinimal      Style = "minimal"
	StyleThread       Style = "thread"
)

// PlatformConfig holds the limits and tone of one platform
type PlatformConfig struct {
	MaxLength    int
	HashtagLimit int
	Style        string
}

var Platforms = map[Platform]PlatformConfig{
	Twitter:   {MaxLength: 280, HashtagLimit: 3, Style: "concise, punchy, with engaging hooks"},
	LinkedIn:  {MaxLength: 3000, HashtagLimit: 5, Style: "professional, engaging, with clear formatting"},
	Facebook:  {MaxLength: 63206, HashtagLimit: 3, Style: "conversational and engaging"},
	Instagram: {MaxLength: 2200, HashtagLimit: 30, Style: "visual-focused with emojis and line breaks"},
}

// Content is the material a single-platform post is crafted from.
type Content struct {
	Summary   string   `json:"summary" validate:"required"`
	KeyPoints []string `json:"keyPoints"`
	Learnings string   `json:"learnings"`
}

// Posts is one text per platform
type Posts struct {
	Twitter   string `json:"twitter"`
	LinkedIn  string `json:"linkedin"`
	Facebook  string `json:"facebook"`
	Instagram string `json:"instagram"`
}

// Crafter prompts an LLM for post text and cleans up the result.
type Crafter struct {
	llm llm.Completer
}

func New(completer llm.Completer) *Crafter {
	return &Crafter{llm: completer}
}

// CraftPosts writes posts for every platform from a content summary.
func (c *Crafter) CraftPosts(ctx context.Context, summary string) (*Posts, error) {
	return c.craftPair(ctx, summaryTwitterPrompt(summary), summaryLinkedInPrompt(summary))
}

// CraftThought writes posts for every platform from a personal thought.
func (c *Crafter) CraftThought(ctx context.Context, thought string) (*Posts, error) {
	return c.craftPair(ctx, thoughtTwitterPrompt(thought), thoughtLinkedInPrompt(thought))
}

func (c *Crafter) craftPair(ctx context.Context, twitterPrompt, linkedinPrompt string) (*Posts, error) {
	var twitter, linkedin string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := c.llm.Complete(gctx, twitterPrompt)
		twitter = text
		return err
	})
	g.Go(func() error {
		text, err := c.llm.Complete(gctx, linkedinPrompt)
		linkedin = text
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errs.ErrUpstream.WithMessage("failed to generate social media posts").Wrap(err)
	}

	twitter = CleanTwitter(twitter)
	linkedin = CleanLongForm(linkedin)
	return &Posts{
		Twitter:   twitter,
		LinkedIn:  Truncate(linkedin, Platforms[LinkedIn].MaxLength),
		Facebook:  Truncate(linkedin, Platforms[Facebook].MaxLength),
		Instagram: Truncate(twitter, Platforms[Instagram].MaxLength),
	}, nil
}

// Craft writes one post for platform. An empty style means professional.
func (c *Crafter) Craft(ctx context.Context, content Content, platform Platform, style Style) (string, error) {
	cfg, ok := Platforms[platform]
	if !ok {
		return "", errs.ErrUnknownPlatform.WithMessage("unsupported platform: " + string(platform))
	}
	if style == "" {
		style = StyleProfessional
	}

	text, err := c.llm.Complete(ctx, platformPrompt(content, platform, cfg, style))
	if err != nil {
		return "", errs.ErrUpstream.WithMessage("failed to generate post").Wrap(err)
	}

	if platform == Twitter && style != StyleThread {
		return CleanTwitter(text), nil
	}
	return Truncate(CleanLongForm(text), cfg.MaxLength), nil
}

var (
	blankLines  = regexp.MustCompile(`\n\s*\n+`)
	inlineSpace = regexp.MustCompile(`[ \t]+`)
)

// CleanTwitter folds all whitespace to single spaces and truncates to the tweet limit.
func CleanTwitter(s string) string {
	return Truncate(strings.Join(strings.Fields(s), " "), Platforms[Twitter].MaxLength)
}

// CleanLongForm collapses runs of blank lines and repeated spaces.
func CleanLongForm(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = inlineSpace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Platforms[p]; !ok {
		return "", errs.ErrUnknownPlatform.WithMessage("unsupported platform: " + s)
	}
	return p, nil
}
