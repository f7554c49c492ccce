package crafting

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/renderinc/learnshare/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.reply(prompt)
}

func byPlatform(prompt string) (string, error) {
	if strings.Contains(prompt, "Twitter post") {
		return "Learn   Go\n\ntoday #go\n", nil
	}
	return "Title\n\n\n\nBody   line\n\n\nQuestion?", nil
}

func TestCrafter_CraftPosts(t *testing.T) {
	f := &fakeCompleter{reply: byPlatform}
	c := New(f)

	posts, err := c.CraftPosts(context.Background(), "goroutines are cheap")
	require.NoError(t, err)

	assert.Equal(t, "Learn Go today #go", posts.Twitter)
	assert.Equal(t, "Title\n\nBody line\n\nQuestion?", posts.LinkedIn)
	assert.Equal(t, posts.LinkedIn, posts.Facebook)
	assert.Equal(t, posts.Twitter, posts.Instagram)

	require.Len(t, f.prompts, 2)
	for _, p := range f.prompts {
		assert.Contains(t, p, "goroutines are cheap")
	}
}

func TestCrafter_CraftThoughtUpstreamError(t *testing.T) {
	f := &fakeCompleter{reply: func(p string) (string, error) {
		if strings.Contains(p, "LinkedIn") {
			return "", errors.New("503")
		}
		return "ok", nil
	}}
	_, err := New(f).CraftThought(context.Background(), "a thought")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrUpstream)
}

func TestCrafter_Craft(t *testing.T) {
	long := strings.Repeat("é", 400)
	f := &fakeCompleter{reply: func(string) (string, error) { return long, nil }}
	c := New(f)

	text, err := c.Craft(context.Background(), Content{Summary: "s", KeyPoints: []string{"a", "b"}}, Twitter, "")
	require.NoError(t, err)
	assert.Equal(t, 280, len([]rune(text)))
	assert.Contains(t, f.prompts[0], "Style: professional")
	assert.Contains(t, f.prompts[0], "Key Points: a, b")
	assert.NotContains(t, f.prompts[0], "thread")

	_, err = c.Craft(context.Background(), Content{Summary: "s"}, Twitter, StyleThread)
	require.NoError(t, err)
	assert.Contains(t, f.prompts[1], "Format as a thread")

	text, err = c.Craft(context.Background(), Content{Summary: "s"}, LinkedIn, StyleCasual)
	require.NoError(t, err)
	assert.Equal(t, long, text)
}

func TestCrafter_CraftUnknownPlatform(t *testing.T) {
	_, err := New(&fakeCompleter{}).Craft(context.Background(), Content{Summary: "s"}, Platform("myspace"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrUnknownPlatform)
	assert.Equal(t, 400, errs.From(err).Status)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 10))
	assert.Equal(t, "", Truncate("hi", 0))
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" LinkedIn ")
	require.NoError(t, err)
	assert.Equal(t, LinkedIn, p)

	_, err = ParsePlatform("fax")
	assert.Error(t, err)
}
