package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jcgentr/article-summarizer/internal/auth"
	"github.com/jcgentr/article-summarizer/internal/billing"
	"github.com/jcgentr/article-summarizer/internal/domain"
)

const (
	defaultDiscoverStories = 10
	maxDiscoverStories     = 50
)

type ingestRequest struct {
	URL string `json:"url"`
	Tag string `json:"tag"`
}

type readStatusRequest struct {
	HasRead bool `json:"has_read"`
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

type tagRequest struct {
	Tag string `json:"tag"`
}

type feedbackRequest struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

type benchmarkRequest struct {
	URL string `json:"url"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// user authenticates the bearer token of r.
func (s *Server) user(r *http.Request) (domain.User, error) {
	if s.verifier == nil {
		return domain.User{}, auth.ErrAuthRequired
	}

	token, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return domain.User{}, err
	}

	return s.verifier.Verify(token)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	switch {
	case errors.Is(err, auth.ErrAuthRequired):
		// Ingest reports a missing identity as its own outcome.
		user = domain.User{}
	case err != nil:
		s.writeError(w, r, err)
		return
	}

	var req ingestRequest
	if err = decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result := s.library.Ingest(r.Context(), user, req.URL, req.Tag)

	s.writeJSON(w, r, ingestStatus(result.Outcome), result)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	saved, err := s.library.ListArticles(r.Context(), user, r.URL.Query().Get("tag"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if saved == nil {
		saved = []domain.SavedArticle{}
	}

	s.writeJSON(w, r, http.StatusOK, saved)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err = s.library.DeleteArticle(r.Context(), user, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetReadStatus(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req readStatusRequest
	if err = decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err = s.library.SetReadStatus(r.Context(), user, r.PathValue("id"), req.HasRead); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetRating(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req ratingRequest
	if err = decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err = s.library.SetRating(r.Context(), user, r.PathValue("id"), req.Rating); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req tagRequest
	if err = decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	tag, err := s.library.AddTag(r.Context(), user, r.PathValue("id"), req.Tag)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, tagRequest{Tag: tag})
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err = s.library.DeleteTag(r.Context(), user, r.PathValue("id"), r.PathValue("tag")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tags, err := s.library.Tags(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if tags == nil {
		tags = []string{}
	}

	s.writeJSON(w, r, http.StatusOK, tags)
}

// handleLeaderboard is public.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	board, err := s.library.Leaderboard(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, board)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req feedbackRequest
	if err = decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err = s.library.SubmitFeedback(r.Context(), user, req.Category, req.Message); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	usage, err := s.library.Usage(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, usage)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	s.redirectToBilling(w, r, func(user domain.User) (string, error) {
		return s.billing.CreateCheckoutSession(r.Context(), user)
	})
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	s.redirectToBilling(w, r, func(user domain.User) (string, error) {
		return s.billing.CreatePortalSession(r.Context(), user)
	})
}

func (s *Server) redirectToBilling(
	w http.ResponseWriter,
	r *http.Request,
	createSession func(domain.User) (string, error),
) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.billing == nil {
		s.writeError(w, r, billing.ErrNotConfigured)
		return
	}

	sessionURL, err := createSession(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, sessionURL, http.StatusSeeOther)
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	user, err := s.user(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req benchmarkRequest
	if err = decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	results, err := s.library.Benchmark(r.Context(), user, req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, results)
}

// handleDiscover is public.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if s.discover == nil {
		s.writeJSON(w, r, http.StatusOK, []domain.Story{})
		return
	}

	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		n = defaultDiscoverStories
	}
	n = min(n, maxDiscoverStories)

	stories, err := s.discover.Top(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if stories == nil {
		stories = []domain.Story{}
	}

	s.writeJSON(w, r, http.StatusOK, stories)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.log.ErrorContext(r.Context(), "Health check failed",
				"error", err)

			s.writeJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}

	s.writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
}
