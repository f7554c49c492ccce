package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBrowser() *BrowserExtractor {
	b := NewBrowserExtractor(BrowserOptions{NavigationTimeout: 20 * time.Millisecond, Attempts: 3})
	b.newTab = func(browser context.Context) (context.Context, context.CancelFunc) {
		return context.WithCancel(browser)
	}
	b.backoff = time.Millisecond
	return b
}

func TestBrowserExtractor_RetryRecoversAfterTimeout(t *testing.T) {
	b := testBrowser()
	browserCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	page, err := b.retry(context.Background(), browserCtx, "https://example.com", func(ctx context.Context, link string) (*rawPage, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		require.NoError(t, ctx.Err(), "later attempts get a live tab")
		return &rawPage{Title: "ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", page.Title)
	assert.Equal(t, 2, calls)
	assert.NoError(t, browserCtx.Err(), "a timed out attempt must not stop the browser")
}

func TestBrowserExtractor_RetryGivesUp(t *testing.T) {
	b := testBrowser()

	calls := 0
	_, err := b.retry(context.Background(), context.Background(), "https://example.com", func(ctx context.Context, link string) (*rawPage, error) {
		calls++
		return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
	assert.Equal(t, 3, calls)
}

func TestBrowserExtractor_RetryStopsOnCancel(t *testing.T) {
	b := testBrowser()
	b.backoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := b.retry(ctx, context.Background(), "https://example.com", func(context.Context, string) (*rawPage, error) {
		calls++
		cancel()
		return nil, errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
