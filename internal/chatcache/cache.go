// Package chatcache holds per-conversation search context for the chat service.
package chatcache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Sources of a conversation's current context.
const (
	SourceGeneral  = "general"
	SourceDatabase = "database"
)

// Item is one piece of content a conversation has surfaced.
type Item struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Image        *string `json:"image"`
	Author       string  `json:"author"`
	Timestamp    *string `json:"timestamp"`
	Link         string  `json:"link"`
	Score        float64 `json:"score"`
	LastQuestion string  `json:"lastQuestion"`
}

// Context is what the chat service remembers about one conversation.
type Context struct {
	Source    string
	Metadata  []Item
	Timestamp time.Time
	SearchHit bool
}

// Fresh returns an empty general context.
func Fresh(now time.Time) Context {
	return Context{Source: SourceGeneral, Metadata: []Item{}, Timestamp: now}
}

// Cache stores contexts by conversation key. Implementations are safe for
// concurrent use.
type Cache interface {
	Get(key string) (Context, bool)
	Set(key string, c Context)
	Evict(key string)
	Len() int
}

var _ Cache = (*LRU)(nil)

// LRU is a bounded, TTL-expiring Cache.
type LRU struct {
	lru *expirable.LRU[string, Context]
}

// Defaults for NewLRU
const (
	DefaultSize = 10000
	DefaultTTL  = 30 * time.Minute
)

// NewLRU holds at most size contexts, each for at most ttl.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LRU{lru: expirable.NewLRU[string, Context](size, nil, ttl)}
}

func (l *LRU) Get(key string) (Context, bool) {
	c, ok := l.lru.Get(key)
	if !ok {
		return Context{}, false
	}
	return clone(c), true
}

func (l *LRU) Set(key string, c Context) {
	l.lru.Add(key, clone(c))
}

func (l *LRU) Evict(key string) {
	l.lru.Remove(key)
}

func (l *LRU) Len() int {
	return l.lru.Len()
}

// clone copies the item slice so callers never share backing arrays with the cache.
func clone(c Context) Context {
	c.Metadata = append([]Item(nil), c.Metadata...)
	return c
}
