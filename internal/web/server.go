package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/renderinc/learnshare/internal/auth"
	"github.com/renderinc/learnshare/internal/capture"
	"github.com/renderinc/learnshare/internal/chat"
	"github.com/renderinc/learnshare/internal/crafting"
	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/ingest"
	"github.com/renderinc/learnshare/internal/relations"
	"github.com/renderinc/learnshare/internal/search"
	"github.com/renderinc/learnshare/internal/sharing"
	"github.com/renderinc/learnshare/internal/storage"
	"github.com/renderinc/learnshare/internal/tweets"
	"github.com/renderinc/learnshare/internal/twitter"
)

const (
	apiPrefix    = "/api/v1"
	maxBodyBytes = 50 << 20
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout = 10 * time.Second
)

// Store is the read side the handlers use directly.
type Store interface {
	ListContents(ctx context.Context, userID int64, limit int) ([]*storage.Content, error)
	CountContents(ctx context.Context) (int, error)
	CountIndexedContents(ctx context.Context) (int, error)
	CountOutbox(ctx context.Context) (int, error)
}

// Deps wires the services behind the HTTP API.
type Deps struct {
	Store     Store
	Auth      *auth.Service
	Ingest    *ingest.Pipeline
	Text      *search.Index
	Semantic  *search.Semantic
	Chat      *chat.Service
	Crafter   *crafting.Crafter
	Capture   *capture.Service
	Relations *relations.Service
	Sharing   *sharing.Service
	Handshake *twitter.Handshake
	Tweets    *tweets.Publisher
}

type Server struct {
	deps     Deps
	validate *validator.Validate
}

func NewServer(deps Deps) *Server {
	return &Server{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handler returns the full middleware-wrapped API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+apiPrefix+path, h)
	}

	handle("GET /health", s.handleHealth)

	handle("POST /auth/signup", s.handleSignUp)
	handle("POST /auth/signin", s.handleSignIn)
	handle("GET /auth/twitter/request-token", s.optionalAuth(s.handleTwitterRequestToken))
	handle("POST /auth/twitter/access-token", s.requireAuth(s.handleTwitterAccessToken))

	handle("POST /content/addContent", s.requireAuth(s.handleAddContent))
	handle("GET /get-content", s.requireAuth(s.handleListContent))
	handle("GET /captures/recent", s.requireAuth(s.handleRecentCaptures))
	handle("POST /content/explore", s.handleExplore)

	handle("POST /context", s.requireAuth(s.handleCaptureContext))
	handle("GET /content/{contentId}/contexts", s.requireAuth(s.handleListContexts))
	handle("POST /quick-capture", s.requireAuth(s.handleQuickCapture))

	handle("GET /content/{contentId}/suggest-relations", s.requireAuth(s.handleSuggestRelations))
	handle("POST /content/relationships", s.requireAuth(s.handleCreateRelations))
	handle("GET /content/{contentId}/relations", s.requireAuth(s.handleRelated))

	handle("POST /share/user", s.requireAuth(s.handleShareWithUser))
	handle("POST /share/public", s.requireAuth(s.handleMakePublic))
	handle("POST /share/private", s.requireAuth(s.handleMakePrivate))
	handle("GET /shared/{hash}", s.handleShared)

	handle("GET /search", s.requireAuth(s.handleSearch))
	handle("GET /search-content", s.requireAuth(s.handleSemanticSearch))

	handle("POST /content/chat", s.handleContentChat)
	handle("POST /content/summary", s.handleContentSummary)
	handle("POST /chat-with-us", s.requireAuth(s.handleChat))

	handle("POST /content/craft-posts", s.handleCraftPosts)
	handle("POST /content/craft-thought", s.handleCraftThought)
	handle("POST /craft-post", s.handleCraftPost)
	handle("POST /social/generate", s.requireAuth(s.handleGenerateSocial))

	handle("POST /post/twitter", s.requireAuth(s.handlePostTweet))
	handle("POST /schedule/twitter", s.requireAuth(s.handleScheduleTweet))

	return chain(mux, withRecover, withCORS, withLogging, withRequestID)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	log.Println("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// writeError renders err with its categorized status. Causes of server
// errors are logged and never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := errs.From(err)
	if e.IsServerError() {
		log.Printf("[%s] %s %s: %v", requestID(r.Context()), r.Method, r.URL.Path, err)
	}
	writeJSON(w, e.Status, envelope{Success: false, Message: e.Message})
}

// decode reads a JSON body into dst and validates its struct tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.ErrInvalidRequest.WithMessage("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.New(http.StatusRequestEntityTooLarge, "request body too large")
		}
		return errs.ErrInvalidRequest.Wrap(err)
	}
	return s.check(dst)
}

func (s *Server) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return errs.ErrInvalidRequest.WithMessage(fmt.Sprintf("invalid %s: failed %s", lowerFirst(f.Field()), f.Tag())).Wrap(err)
		}
		return errs.ErrInvalidRequest.Wrap(err)
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
