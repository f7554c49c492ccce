package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/llm"
)

const (
	GreetingReply    = "Hello! 😊 Do you have a specific question, or would you like me to explain the content in detail? Let me know how I can assist you better!"
	NoValidContent   = "No valid content found."
	affirmativeReply = `Certainly! Here's a detailed explanation based on the provided content:
"%s"

I'll break it down with real-world examples, practical applications, and analogies to ensure clarity. If you have further questions, feel free to ask! 😊`
)

var greeting = regexp.MustCompile(`(?i)\b(hi+|hello+|hey+|greet+|yo+|hlw+|hii+|hola+|sup)\b`)

var affirmatives = map[string]bool{
	"yes":      true,
	"sure":     true,
	"go ahead": true,
	"explain":  true,
	"okay":     true,
}

// ContentQuestion is a question about a page the user is reading.
type ContentQuestion struct {
	Question    string `json:"question" validate:"required"`
	Content     string `json:"content" validate:"required"`
	PageContext string `json:"pageContext" validate:"required"`
	SourceURL   string `json:"sourceUrl" validate:"required"`
}

// SummaryRequest asks for a shareable summary of content and its discussion.
type SummaryRequest struct {
	Content    string          `json:"content" validate:"required"`
	Discussion json.RawMessage `json:"discussion"`
}

// AskAboutContent answers q. Greetings and bare affirmatives are answered
// without calling the completion API.
func (s *Service) AskAboutContent(ctx context.Context, q ContentQuestion) (string, error) {
	if greeting.MatchString(q.Question) {
		return GreetingReply, nil
	}
	if affirmatives[strings.ToLower(strings.TrimSpace(q.Question))] {
		return fmt.Sprintf(affirmativeReply, q.Content), nil
	}

	text, err := s.llm.Complete(ctx, contentPrompt(q))
	if errors.Is(err, llm.ErrEmptyCompletion) {
		return NoValidContent, nil
	}
	if err != nil {
		return "", errs.ErrUpstream.WithMessage("Failed to process chat, please try again later.").Wrap(err)
	}
	return text, nil
}

// Summarize condenses content and discussion into plain text.
func (s *Service) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	text, err := s.llm.Complete(ctx, summaryPrompt(req.Content, req.Discussion))
	if err != nil {
		return "", errs.ErrUpstream.WithMessage("Failed to generate summary").Wrap(err)
	}
	return strings.TrimSpace(text), nil
}

// ExploreRequest asks for an analysis of arbitrary content.
type ExploreRequest struct {
	Content string `json:"content" validate:"required"`
}

// Exploration is the analysis returned by Explore. Summary holds the full
// completion; Insights are its bullet lines.
type Exploration struct {
	Summary  string   `json:"summary"`
	Insights []string `json:"insights"`
}

// Explore summarizes content and lists its key insights.
func (s *Service) Explore(ctx context.Context, req ExploreRequest) (*Exploration, error) {
	text, err := s.llm.Complete(ctx, explorePrompt(req.Content))
	if err != nil {
		return nil, errs.ErrUpstream.WithMessage("Failed to explore content").Wrap(err)
	}
	out := &Exploration{Summary: strings.TrimSpace(text), Insights: []string{}}
	for _, line := range strings.Split(text, "\n") {
		if item, ok := bullet(line); ok {
			out.Insights = append(out.Insights, item)
		}
	}
	return out, nil
}

func bullet(line string) (string, bool) {
	line = strings.TrimSpace(line)
	for _, mark := range []string{"-", "*", "•"} {
		if rest, ok := strings.CutPrefix(line, mark); ok {
			rest = strings.TrimSpace(rest)
			return rest, rest != ""
		}
	}
	return "", false
}
