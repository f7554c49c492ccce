package chatcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_EvictsOldestBeyondCapacity(t *testing.T) {
	c := NewLRU(2, time.Minute)
	now := time.Now()

	c.Set("a", Fresh(now))
	c.Set("b", Fresh(now))
	c.Set("c", Fresh(now))

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest key is evicted")
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_ExpiresAfterTTL(t *testing.T) {
	c := NewLRU(10, 50*time.Millisecond)
	c.Set("a", Fresh(time.Now()))

	_, ok := c.Get("a")
	require.True(t, ok)

	time.Sleep(120 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestLRU_GetReturnsCopy(t *testing.T) {
	c := NewLRU(10, time.Minute)
	ctx := Fresh(time.Now())
	ctx.Metadata = append(ctx.Metadata, Item{Title: "one"})
	c.Set("k", ctx)

	got, _ := c.Get("k")
	got.Metadata[0].Title = "changed"
	got.Metadata = append(got.Metadata, Item{Title: "two"})

	again, _ := c.Get("k")
	require.Len(t, again.Metadata, 1)
	assert.Equal(t, "one", again.Metadata[0].Title)
}

func TestLRU_Evict(t *testing.T) {
	c := NewLRU(10, time.Minute)
	c.Set("k", Fresh(time.Now()))
	c.Evict("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU(100, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			c.Set(key, Fresh(time.Now()))
			c.Get(key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, c.Len())
}
