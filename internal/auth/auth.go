// Package auth handles account sign-up, password sign-in and bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 10
	// DefaultTokenTTL is the lifetime of an issued token
	DefaultTokenTTL = time.Hour
)

// Store is the user persistence the service needs.
type Store interface {
	CreateUser(ctx context.Context, u *storage.User) error
	GetUser(ctx context.Context, id int64) (*storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (*storage.User, error)
}

type SignUpRequest struct {
	Name     string `json:"name" validate:"required,min=1"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// Claims is the JWT payload
type Claims struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	store  Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(store Store, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{store: store, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SignUp creates an account. The returned user carries the password hash,
// which never serializes.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*storage.User, error) {
	email := strings.TrimSpace(req.Email)
	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up email: %w", err)
	}
	if existing != nil {
		return nil, errs.ErrEmailExists
	}

	// max=72 counts runes; bcrypt's limit is 72 bytes.
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, errs.ErrInvalidRequest.WithMessage("password must be at most 72 bytes")
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &storage.User{Name: strings.TrimSpace(req.Name), Email: email, Password: string(hash)}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, errs.ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SignIn checks credentials and returns a signed token.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (string, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return "", fmt.Errorf("look up email: %w", err)
	}
	if u == nil {
		return "", errs.ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return "", errs.ErrInvalidCredentials
	}
	return s.IssueToken(u)
}

// IssueToken signs an HS256 token for u.
func (s *Service) IssueToken(u *storage.User) (string, error) {
	now := s.now()
	claims := Claims{
		ID:    u.ID,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Authenticate validates token and loads its user. Every failure, including
// a deleted user, is ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, token string) (*storage.User, error) {
	if token == "" {
		return nil, errs.ErrNoToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errs.ErrInvalidToken.Wrap(err)
	}

	u, err := s.store.GetUser(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, errs.ErrInvalidToken
	}
	return u, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type ctxKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *storage.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the user stored by WithUser, or nil.
func UserFrom(ctx context.Context) *storage.User {
	u, _ := ctx.Value(ctxKey{}).(*storage.User)
	return u
}
