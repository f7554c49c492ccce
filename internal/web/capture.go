package web

import (
	"net/http"
	"strconv"

	"github.com/renderinc/learnshare/internal/auth"
	"github.com/renderinc/learnshare/internal/capture"
	"github.com/renderinc/learnshare/internal/chat"
	"github.com/renderinc/learnshare/internal/errs"
	"github.com/renderinc/learnshare/internal/relations"
)

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	var req chat.ExploreRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Chat.Explore(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", out)
}

func (s *Server) handleCaptureContext(w http.ResponseWriter, r *http.Request) {
	var req capture.ContextRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	captured, err := s.deps.Capture.Capture(r.Context(), auth.UserFrom(r.Context()).ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Context captured successfully", captured)
}

func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request) {
	id, err := contentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	contexts, err := s.deps.Capture.Contexts(r.Context(), auth.UserFrom(r.Context()).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Contexts retrieved successfully", contexts)
}

func (s *Server) handleQuickCapture(w http.ResponseWriter, r *http.Request) {
	var req capture.QuickCaptureRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Capture.QuickCapture(r.Context(), auth.UserFrom(r.Context()).ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Content captured successfully", out)
}

func (s *Server) handleGenerateSocial(w http.ResponseWriter, r *http.Request) {
	var req capture.SocialRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	posts, err := s.deps.Capture.GeneratePosts(r.Context(), auth.UserFrom(r.Context()).ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Social posts generated successfully", map[string]any{"posts": posts})
}

func (s *Server) handleSuggestRelations(w http.ResponseWriter, r *http.Request) {
	id, err := contentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Relations.Suggest(r.Context(), auth.UserFrom(r.Context()).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Relationship suggestions generated", out)
}

func (s *Server) handleCreateRelations(w http.ResponseWriter, r *http.Request) {
	var req relations.CreateRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Relations.Create(r.Context(), auth.UserFrom(r.Context()).ID, req); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Relationships created successfully", nil)
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	id, err := contentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Relations.Related(r.Context(), auth.UserFrom(r.Context()).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Related content retrieved successfully", out)
}

func contentID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("contentId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.ErrInvalidRequest.WithMessage("invalid content id")
	}
	return id, nil
}
