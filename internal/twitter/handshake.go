package twitter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/storage"
)

// StateTTL bounds how long a started handshake can be completed.
const StateTTL = 5 * time.Minute

// TokenSource performs the OAuth 1.0a token exchanges.
type TokenSource interface {
	RequestToken() (token, secret string, err error)
	AuthorizationURL(requestToken string) (string, error)
	AccessToken(requestToken, requestSecret, verifier string) (token, secret string, err error)
	Me(ctx context.Context, token, secret string) (*User, error)
}

// StateStore persists handshake state and the resulting credentials.
type StateStore interface {
	CreateOAuthState(ctx context.Context, s *storage.OAuthState) error
	ConsumeOAuthState(ctx context.Context, oauthToken string, now time.Time) (*storage.OAuthState, error)
	SetTwitterCredentials(ctx context.Context, userID int64, twitterID, token, secret string) error
}

// Handshake runs the three-legged OAuth flow that connects a user's Twitter account.
type Handshake struct {
	tokens TokenSource
	store  StateStore
	ttl    time.Duration
	now    func() time.Time
}

func NewHandshake(tokens TokenSource, store StateStore) *Handshake {
	return &Handshake{tokens: tokens, store: store, ttl: StateTTL, now: time.Now}
}

// Start is returned to the client that begins a handshake.
type Start struct {
	OAuthToken   string `json:"oauthToken"`
	State        string `json:"state"`
	AuthorizeURL string `json:"authorizeUrl"`
}

// Begin fetches a request token and remembers its secret until the callback.
// userID is nil when the caller is not signed in yet.
func (h *Handshake) Begin(ctx context.Context, userID *int64) (*Start, error) {
	token, secret, err := h.tokens.RequestToken()
	if err != nil {
		return nil, errs.ErrUpstream.WithMessage("failed to get request token").Wrap(err)
	}
	authURL, err := h.tokens.AuthorizationURL(token)
	if err != nil {
		return nil, errs.ErrUpstream.Wrap(err)
	}

	state := &storage.OAuthState{
		State:            uuid.NewString(),
		OAuthToken:       token,
		OAuthTokenSecret: secret,
		UserID:           userID,
		ExpiresAt:        h.now().Add(h.ttl),
	}
	if err := h.store.CreateOAuthState(ctx, state); err != nil {
		return nil, fmt.Errorf("save oauth state: %w", err)
	}
	return &Start{OAuthToken: token, State: state.State, AuthorizeURL: authURL}, nil
}

// Complete exchanges the verifier for access tokens and stores them on userID.
// The state is consumed whether or not the exchange succeeds.
func (h *Handshake) Complete(ctx context.Context, userID int64, oauthToken, verifier string) error {
	state, err := h.store.ConsumeOAuthState(ctx, oauthToken, h.now())
	if err != nil {
		return fmt.Errorf("consume oauth state: %w", err)
	}
	if state == nil {
		return errs.ErrOAuthStateInvalid
	}
	if state.UserID != nil && *state.UserID != userID {
		return errs.ErrOAuthStateInvalid
	}

	token, secret, err := h.tokens.AccessToken(state.OAuthToken, state.OAuthTokenSecret, verifier)
	if err != nil {
		return errs.ErrUpstream.WithMessage("failed to get access token").Wrap(err)
	}

	var twitterID string
	if me, err := h.tokens.Me(ctx, token, secret); err != nil {
		log.Printf("[twitter] look up account for user %d: %v", userID, err)
	} else {
		twitterID = me.ID
	}

	if err := h.store.SetTwitterCredentials(ctx, userID, twitterID, token, secret); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrUserNotFound
		}
		return fmt.Errorf("store twitter credentials: %w", err)
	}
	return nil
}
