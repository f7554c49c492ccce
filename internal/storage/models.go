package storage

import (
	"strings"
	"time"
)

// ContentType classifies a saved capture
type ContentType string

const (
	TypeText    ContentType = "TEXT"
	TypeImage   ContentType = "IMAGE"
	TypeVideo   ContentType = "VIDEO"
	TypeAudio   ContentType = "AUDIO"
	TypeArticle ContentType = "ARTICLE"
	TypeNote    ContentType = "NOTE"
)

// User is an account. Password holds the bcrypt hash.
type User struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Password      string    `json:"-"`
	TwitterID     string    `json:"twitterId,omitempty"`
	TwitterToken  string    `json:"-"`
	TwitterSecret string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}

// HasTwitter reports whether the user completed the Twitter OAuth handshake.
func (u *User) HasTwitter() bool {
	return u.TwitterToken != "" && u.TwitterSecret != ""
}

type Tag struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Metadata is the free-form JSON attached to a Content row by extraction.
type Metadata map[string]any

// String returns the string value at key, or "".
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Content is a saved capture with its derived metadata.
type Content struct {
	ID             int64       `json:"id"`
	UserID         int64       `json:"userId"`
	Link           string      `json:"link"`
	Type           ContentType `json:"type"`
	Title          string      `json:"title"`
	ExtractedText  string      `json:"extractedText"`
	Keywords       []string    `json:"keywords"`
	Metadata       Metadata    `json:"metadata"`
	Author         string      `json:"author"`
	Duration       int         `json:"duration"`
	PublishedAt    *time.Time  `json:"publishedAt,omitempty"`
	Embedding      []float32   `json:"-"`
	Shared         bool        `json:"shared"`
	VectorSyncedAt *time.Time  `json:"vectorSyncedAt,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	Tags           []Tag       `json:"tags"`
}

// Description returns metadata.description
func (c *Content) Description() string {
	return c.Metadata.String("description")
}

// Link grants one user read access to one Content row.
type Link struct {
	ID        int64     `json:"id"`
	Hash      string    `json:"hash"`
	UserID    int64     `json:"userId"`
	ContentID int64     `json:"contentId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ContentContext is a selection captured from a page, attached to a Content row.
type ContentContext struct {
	ID           int64     `json:"id"`
	ContentID    int64     `json:"contentId"`
	SourceURL    string    `json:"sourceUrl"`
	SelectedText string    `json:"selectedText"`
	PageContext  string    `json:"pageContext"`
	UserThought  string    `json:"userThought"`
	CaptureTime  time.Time `json:"captureTime"`
}

type Topic struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TweetStatus is the state of a ScheduledTweet. Transitions only move forward:
// PENDING -> IN_PROGRESS -> POSTED | FAILED.
type TweetStatus string

const (
	TweetPending    TweetStatus = "PENDING"
	TweetInProgress TweetStatus = "IN_PROGRESS"
	TweetPosted     TweetStatus = "POSTED"
	TweetFailed     TweetStatus = "FAILED"
)

type ScheduledTweet struct {
	ID            int64       `json:"id"`
	UserID        int64       `json:"userId"`
	Content       string      `json:"content"`
	TwitterToken  string      `json:"-"`
	TwitterSecret string      `json:"-"`
	ScheduledTime time.Time   `json:"scheduledTime"`
	Status        TweetStatus `json:"status"`
	Attempts      int         `json:"attempts"`
	LastError     string      `json:"lastError,omitempty"`
	TweetID       string      `json:"tweetId,omitempty"`
	ClaimedAt     *time.Time  `json:"claimedAt,omitempty"`
	PostedAt      *time.Time  `json:"postedAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// OAuthState correlates a Twitter request-token call with its callback.
type OAuthState struct {
	State            string
	OAuthToken       string
	OAuthTokenSecret string
	UserID           *int64
	ExpiresAt        time.Time
}

// OutboxEntry is a pending vector write for one Content row.
type OutboxEntry struct {
	ContentID     int64
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// NormalizeTags trims, lower-cases and de-duplicates tag titles, keeping order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
