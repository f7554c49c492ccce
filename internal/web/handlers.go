package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/renderinc/learnshare/internal/auth"
	"github.com/renderinc/learnshare/internal/chat"
	"github.com/renderinc/learnshare/internal/crafting"
	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/ingest"
	"github.com/renderinc/learnshare/internal/search"
	"github.com/renderinc/learnshare/internal/sharing"
	"github.com/renderinc/learnshare/internal/storage"
	"github.com/renderinc/learnshare/internal/tweets"
)

const (
	fullTextLimit = 20
	recentLimit   = 10
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contents, err := s.deps.Store.CountContents(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	indexed, err := s.deps.Store.CountIndexedContents(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pending, err := s.deps.Store.CountOutbox(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"contents":      contents,
		"indexed":       indexed,
		"outboxPending": pending,
	})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.deps.Auth.SignUp(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "You are signed up", u)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req auth.SignInRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, err := s.deps.Auth.SignIn(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Sign-in successful", map[string]string{"token": token})
}

func (s *Server) handleTwitterRequestToken(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if u := auth.UserFrom(r.Context()); u != nil {
		userID = &u.ID
	}
	start, err := s.deps.Handshake.Begin(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", start)
}

type accessTokenRequest struct {
	OAuthToken    string `json:"oauthToken" validate:"required"`
	OAuthVerifier string `json:"oauthVerifier" validate:"required"`
}

func (s *Server) handleTwitterAccessToken(w http.ResponseWriter, r *http.Request) {
	var req accessTokenRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u := auth.UserFrom(r.Context())
	if err := s.deps.Handshake.Complete(r.Context(), u.ID, req.OAuthToken, req.OAuthVerifier); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Twitter account connected", nil)
}

func (s *Server) handleAddContent(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Ingest.Ingest(r.Context(), auth.UserFrom(r.Context()).ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Content created successfully", c)
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	s.listContent(w, r, 0)
}

func (s *Server) handleRecentCaptures(w http.ResponseWriter, r *http.Request) {
	s.listContent(w, r, queryInt(r, "limit", recentLimit, 100))
}

func (s *Server) listContent(w http.ResponseWriter, r *http.Request, limit int) {
	contents, err := s.deps.Store.ListContents(r.Context(), auth.UserFrom(r.Context()).ID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(contents) == 0 {
		writeOK(w, http.StatusOK, "No content available", []*storage.Content{})
		return
	}
	writeOK(w, http.StatusOK, "Content fetched successfully", contents)
}

func (s *Server) handleShareWithUser(w http.ResponseWriter, r *http.Request) {
	var req sharing.ShareRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	shared, err := s.deps.Sharing.ShareWithUser(r.Context(), auth.UserFrom(r.Context()).ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Content shared successfully with user", shared)
}

func (s *Server) handleMakePublic(w http.ResponseWriter, r *http.Request) {
	var req sharing.VisibilityRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	link, err := s.deps.Sharing.MakePublic(r.Context(), auth.UserFrom(r.Context()).ID, req.ContentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Content is now public", map[string]string{"publicLink": link})
}

func (s *Server) handleMakePrivate(w http.ResponseWriter, r *http.Request) {
	var req sharing.VisibilityRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Sharing.MakePrivate(r.Context(), auth.UserFrom(r.Context()).ID, req.ContentID); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Content is now private", nil)
}

func (s *Server) handleShared(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Sharing.Resolve(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Shared content fetched successfully"
	if res.Public {
		msg = "Public content fetched successfully"
	}
	writeOK(w, http.StatusOK, msg, res.Content)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, r, errs.ErrInvalidRequest.WithMessage("Invalid search query"))
		return
	}
	hits, err := s.deps.Text.Search(auth.UserFrom(r.Context()).ID, query, queryInt(r, "limit", fullTextLimit, 100))
	if err != nil {
		writeError(w, r, errs.ErrInvalidRequest.WithMessage("Invalid search query").Wrap(err))
		return
	}
	if len(hits) == 0 {
		writeError(w, r, errs.ErrNoSearchResults)
		return
	}
	writeOK(w, http.StatusOK, "Search results retrieved successfully.", hits)
}

func (s *Server) handleSemanticSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, r, errs.ErrInvalidRequest.WithMessage("query is required"))
		return
	}
	results, err := s.deps.Semantic.Search(r.Context(), auth.UserFrom(r.Context()).ID, query, search.DirectTopK)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Search completed successfully.", results)
}

func (s *Server) handleContentChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ContentQuestion
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	answer, err := s.deps.Chat.AskAboutContent(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]string{"response": answer})
}

func (s *Server) handleContentSummary(w http.ResponseWriter, r *http.Request) {
	var req chat.SummaryRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.deps.Chat.Summarize(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]string{"summary": summary})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := s.deps.Chat.Chat(r.Context(), auth.UserFrom(r.Context()).ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", reply)
}

type craftPostsRequest struct {
	Summary string `json:"summary" validate:"required"`
}

type craftThoughtRequest struct {
	Thought string `json:"thought" validate:"required"`
}

type craftPostRequest struct {
	Content  crafting.Content `json:"content"`
	Platform string           `json:"platform" validate:"required"`
	Style    crafting.Style   `json:"style" validate:"omitempty,oneof=professional casual technical minimal thread"`
}

func (s *Server) handleCraftPosts(w http.ResponseWriter, r *http.Request) {
	var req craftPostsRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	posts, err := s.deps.Crafter.CraftPosts(r.Context(), req.Summary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", posts)
}

func (s *Server) handleCraftThought(w http.ResponseWriter, r *http.Request) {
	var req craftThoughtRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	posts, err := s.deps.Crafter.CraftThought(r.Context(), req.Thought)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", posts)
}

func (s *Server) handleCraftPost(w http.ResponseWriter, r *http.Request) {
	var req craftPostRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	platform, err := crafting.ParsePlatform(req.Platform)
	if err != nil {
		writeError(w, r, err)
		return
	}
	post, err := s.deps.Crafter.Craft(r.Context(), req.Content, platform, req.Style)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]string{"post": post})
}

func (s *Server) handlePostTweet(w http.ResponseWriter, r *http.Request) {
	var req tweets.PostRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tweet, err := s.deps.Tweets.PostNow(r.Context(), auth.UserFrom(r.Context()), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Tweet posted successfully!", tweet)
}

func (s *Server) handleScheduleTweet(w http.ResponseWriter, r *http.Request) {
	var req tweets.ScheduleRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deps.Tweets.Schedule(r.Context(), auth.UserFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Tweet scheduled successfully!", st)
}

// queryInt parses a positive integer query parameter no larger than max.
func queryInt(r *http.Request, name string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 || v > max {
		return def
	}
	return v
}
