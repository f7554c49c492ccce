// Package tweets schedules tweets and publishes the ones that are due.
package tweets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/storage"
	"github.com/renderinc/learnshare/internal/twitter"
)

const (
	// DefaultBatch is the page size used when listing due rows
	DefaultBatch = 50
	// StaleAfter is how long a row may stay IN_PROGRESS before the sweep fails it.
	StaleAfter = 10 * time.Minute
)

// Poster publishes a tweet as the owner of token.
type Poster interface {
	PostTweet(ctx context.Context, token, secret, text string) (*twitter.Tweet, error)
}

type Store interface {
	CreateScheduledTweet(ctx context.Context, t *storage.ScheduledTweet) error
	ListDueTweetIDs(ctx context.Context, now time.Time, limit int) ([]int64, error)
	ClaimTweet(ctx context.Context, id int64, now time.Time) (*storage.ScheduledTweet, error)
	FinishTweet(ctx context.Context, id int64, status storage.TweetStatus, tweetID, lastError string, now time.Time) (bool, error)
	ExpireStaleClaims(ctx context.Context, cutoff time.Time) (int64, error)
}

type ScheduleRequest struct {
	Content       string    `json:"content" validate:"required"`
	ScheduledTime time.Time `json:"scheduledTime" validate:"required"`
}

type PostRequest struct {
	Content string `json:"content" validate:"required"`
}

// TickStats summarizes one Tick
type TickStats struct {
	Due      int           `json:"due"`
	Claimed  int           `json:"claimed"`
	Posted   int           `json:"posted"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Expired  int64         `json:"expired"`
	Duration time.Duration `json:"duration"`
}

// Publisher moves scheduled tweets through PENDING -> IN_PROGRESS -> POSTED | FAILED.
type Publisher struct {
	store      Store
	poster     Poster
	batch      int
	staleAfter time.Duration
	now        func() time.Time
}

func NewPublisher(store Store, poster Poster, batch int) *Publisher {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Publisher{store: store, poster: poster, batch: batch, staleAfter: StaleAfter, now: time.Now}
}

// Schedule stores a PENDING tweet carrying the user's current credentials.
func (p *Publisher) Schedule(ctx context.Context, u *storage.User, req ScheduleRequest) (*storage.ScheduledTweet, error) {
	if !u.HasTwitter() {
		return nil, errs.ErrTwitterNotConnected
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, errs.ErrInvalidRequest.WithMessage("content is required")
	}
	t := &storage.ScheduledTweet{
		UserID:        u.ID,
		Content:       req.Content,
		TwitterToken:  u.TwitterToken,
		TwitterSecret: u.TwitterSecret,
		ScheduledTime: req.ScheduledTime.UTC(),
	}
	if err := p.store.CreateScheduledTweet(ctx, t); err != nil {
		return nil, err
	}
	log.Printf("[twitter] Scheduled tweet %d for user %d at %s", t.ID, u.ID, t.ScheduledTime.Format(time.RFC3339))
	return t, nil
}

// PostNow publishes text immediately with the user's stored credentials.
// A rejection by the API keeps its status and detail.
func (p *Publisher) PostNow(ctx context.Context, u *storage.User, text string) (*twitter.Tweet, error) {
	if !u.HasTwitter() {
		return nil, errs.ErrTwitterNotConnected
	}
	if strings.TrimSpace(text) == "" {
		return nil, errs.ErrInvalidRequest.WithMessage("content is required")
	}
	tweet, err := p.poster.PostTweet(ctx, u.TwitterToken, u.TwitterSecret, text)
	var apiErr *twitter.APIError
	if errors.As(err, &apiErr) {
		return nil, errs.New(apiErr.Status, apiErr.Detail).Wrap(err)
	}
	if err != nil {
		return nil, errs.ErrUpstream.WithMessage("failed to post tweet").Wrap(err)
	}
	return tweet, nil
}

// Tick expires stale claims, then claims and posts every due tweet in order.
// Rows claimed by a concurrent tick are counted as skipped.
func (p *Publisher) Tick(ctx context.Context) (*TickStats, error) {
	start := time.Now()
	stats := &TickStats{}

	expired, err := p.store.ExpireStaleClaims(ctx, p.now().Add(-p.staleAfter))
	if err != nil {
		return stats, err
	}
	stats.Expired = expired
	if expired > 0 {
		log.Printf("[twitter] Expired %d stale claims", expired)
	}

	// Due rows are read a page at a time until none remain. Every listed row
	// leaves PENDING once claimed, so each page only returns rows not yet seen.
	now := p.now()
	seen := make(map[int64]bool)
	for {
		ids, err := p.store.ListDueTweetIDs(ctx, now, p.batch)
		if err != nil {
			return stats, err
		}
		fresh := 0
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			fresh++
			stats.Due++

			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			t, err := p.store.ClaimTweet(ctx, id, p.now())
			if err != nil {
				return stats, err
			}
			if t == nil {
				stats.Skipped++
				continue
			}
			stats.Claimed++

			if p.publish(ctx, t) {
				stats.Posted++
			} else {
				stats.Failed++
			}
		}
		if len(ids) < p.batch || fresh == 0 {
			break
		}
	}

	stats.Duration = time.Since(start)
	if stats.Due > 0 {
		log.Printf("[twitter] Tick: %d due, %d posted, %d failed, %d skipped in %v",
			stats.Due, stats.Posted, stats.Failed, stats.Skipped, stats.Duration)
	}
	return stats, nil
}

func (p *Publisher) publish(ctx context.Context, t *storage.ScheduledTweet) bool {
	status, tweetID, lastErr := storage.TweetPosted, "", ""
	if t.TwitterToken == "" || t.TwitterSecret == "" {
		status, lastErr = storage.TweetFailed, "missing twitter credentials"
	} else if tweet, err := p.poster.PostTweet(ctx, t.TwitterToken, t.TwitterSecret, t.Content); err != nil {
		status, lastErr = storage.TweetFailed, err.Error()
	} else {
		tweetID = tweet.ID
	}
	if status == storage.TweetFailed {
		log.Printf("[twitter] Tweet %d failed: %s", t.ID, lastErr)
	}

	// Finish with a fresh context so a cancelled tick still records the outcome.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	ok, err := p.store.FinishTweet(finishCtx, t.ID, status, tweetID, lastErr, p.now())
	if err != nil {
		log.Printf("[twitter] Record outcome of tweet %d: %v", t.ID, err)
	} else if !ok {
		log.Printf("[twitter] Tweet %d was no longer in progress", t.ID)
	}
	return status == storage.TweetPosted
}

// String renders stats for the CLI.
func (s *TickStats) String() string {
	return fmt.Sprintf("due=%d claimed=%d posted=%d failed=%d skipped=%d expired=%d",
		s.Due, s.Claimed, s.Posted, s.Failed, s.Skipped, s.Expired)
}
