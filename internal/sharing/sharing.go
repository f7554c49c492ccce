// Package sharing grants other users access to saved content and resolves
// shared links.
package sharing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/storage"
)

const (
	hashBytes = 10
	// maxHashAttempts bounds retries on a hash collision
	maxHashAttempts = 5
)

type Store interface {
	GetUser(ctx context.Context, id int64) (*storage.User, error)
	GetContent(ctx context.Context, id int64) (*storage.Content, error)
	GetContentForUser(ctx context.Context, id, userID int64) (*storage.Content, error)
	FindPublicContentByLink(ctx context.Context, link string) (*storage.Content, error)
	CreateLink(ctx context.Context, l *storage.Link) error
	GetLinkByHash(ctx context.Context, hash string) (*storage.Link, error)
	SetContentShared(ctx context.Context, id, userID int64) (bool, error)
	UnshareContent(ctx context.Context, id, userID int64) (bool, error)
}

type ShareRequest struct {
	ContentID    int64 `json:"contentId" validate:"required"`
	TargetUserID int64 `json:"targetUserId" validate:"required"`
}

type VisibilityRequest struct {
	ContentID int64 `json:"contentId" validate:"required"`
}

// Shared is the result of ShareWithUser
type Shared struct {
	SharedWith int64  `json:"sharedWith"`
	ShareLink  string `json:"shareLink"`
}

// Resolved is content reached through a shared URL. Public is false when it
// was reached through a per-user Link.
type Resolved struct {
	Content *storage.Content
	Public  bool
}

type Service struct {
	store   Store
	baseURL string
	newHash func() (string, error)
}

// NewService builds share links under baseURL, e.g. http://localhost:3125.
func NewService(store Store, baseURL string) *Service {
	return &Service{store: store, baseURL: strings.TrimRight(baseURL, "/"), newHash: GenerateHash}
}

// GenerateHash returns 20 lowercase hex characters from crypto/rand.
func GenerateHash() (string, error) {
	b := make([]byte, hashBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// SharedURL is the public address of hash.
func (s *Service) SharedURL(hash string) string {
	return s.baseURL + "/api/v1/shared/" + url.PathEscape(hash)
}

// ShareWithUser creates a Link granting target read access to the owner's content.
func (s *Service) ShareWithUser(ctx context.Context, ownerID int64, req ShareRequest) (*Shared, error) {
	c, err := s.store.GetContentForUser(ctx, req.ContentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	if c == nil {
		return nil, errs.ErrContentNotFound
	}
	target, err := s.store.GetUser(ctx, req.TargetUserID)
	if err != nil {
		return nil, fmt.Errorf("load target user: %w", err)
	}
	if target == nil {
		return nil, errs.ErrUserNotFound
	}

	for attempt := 0; attempt < maxHashAttempts; attempt++ {
		hash, err := s.newHash()
		if err != nil {
			return nil, err
		}
		link := &storage.Link{Hash: hash, UserID: target.ID, ContentID: c.ID}
		err = s.store.CreateLink(ctx, link)
		if errors.Is(err, storage.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create link: %w", err)
		}
		return &Shared{SharedWith: target.ID, ShareLink: s.SharedURL(link.Hash)}, nil
	}
	return nil, fmt.Errorf("create link: %d hash collisions", maxHashAttempts)
}

// MakePublic marks the owner's content shared and returns its public URL.
func (s *Service) MakePublic(ctx context.Context, ownerID, contentID int64) (string, error) {
	ok, err := s.store.SetContentShared(ctx, contentID, ownerID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errs.ErrContentNotFound
	}
	c, err := s.store.GetContent(ctx, contentID)
	if err != nil {
		return "", fmt.Errorf("load content: %w", err)
	}
	if c == nil {
		return "", errs.ErrContentNotFound
	}
	return s.SharedURL(c.Link), nil
}

// MakePrivate clears the shared flag and revokes every Link to the content.
func (s *Service) MakePrivate(ctx context.Context, ownerID, contentID int64) error {
	ok, err := s.store.UnshareContent(ctx, contentID, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrContentNotFound
	}
	return nil
}

// Resolve looks hash up as a Link first, then as the link of public content.
func (s *Service) Resolve(ctx context.Context, hash string) (*Resolved, error) {
	if hash == "" {
		return nil, errs.ErrSharedNotFound
	}

	link, err := s.store.GetLinkByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if link != nil {
		c, err := s.store.GetContent(ctx, link.ContentID)
		if err != nil {
			return nil, fmt.Errorf("load content: %w", err)
		}
		if c != nil {
			return &Resolved{Content: c}, nil
		}
	}

	c, err := s.store.FindPublicContentByLink(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("find public content: %w", err)
	}
	if c == nil {
		return nil, errs.ErrSharedNotFound
	}
	return &Resolved{Content: c, Public: true}, nil
}
