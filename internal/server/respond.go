package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jcgentr/article-summarizer/internal/articles"
	"github.com/jcgentr/article-summarizer/internal/auth"
	"github.com/jcgentr/article-summarizer/internal/billing"
	"github.com/jcgentr/article-summarizer/internal/database"
	"github.com/jcgentr/article-summarizer/internal/extractor"
	"github.com/jcgentr/article-summarizer/internal/summarizer"
)

const maxBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed request body")

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to write response",
			"error", err,
			"path", r.URL.Path)
	}
}

// writeError maps err onto a status code. Only client errors carry a specific
// message; everything else is logged and answered generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	message := http.StatusText(status)
	if status < http.StatusInternalServerError {
		message = clientMessage(err)
	} else {
		s.log.ErrorContext(r.Context(), "Failed to handle request",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"requestID", requestIDFrom(r.Context()))
	}

	s.writeJSON(w, r, status, errorResponse{Error: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrAuthRequired), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errMalformedBody),
		errors.Is(err, articles.ErrInvalidURL),
		errors.Is(err, articles.ErrInvalidRating),
		errors.Is(err, articles.ErrInvalidTag),
		errors.Is(err, articles.ErrInvalidFeedback):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound), errors.Is(err, billing.ErrNoCustomer):
		return http.StatusNotFound
	case errors.Is(err, database.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, summarizer.ErrContentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, extractor.ErrFetch), errors.Is(err, extractor.ErrParse):
		return http.StatusBadGateway
	case errors.Is(err, billing.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage keeps store errors to their sentinel text so driver details
// such as constraint names stay out of responses.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return database.ErrNotFound.Error()
	case errors.Is(err, database.ErrAlreadyExists):
		return database.ErrAlreadyExists.Error()
	default:
		return err.Error()
	}
}

// ingestStatus picks the HTTP status for an ingest outcome.
func ingestStatus(outcome articles.Outcome) int {
	switch outcome {
	case articles.OutcomeCreated:
		return http.StatusCreated
	case articles.OutcomeLinkedExisting, articles.OutcomeTagAdded, articles.OutcomeAlreadySaved:
		return http.StatusOK
	case articles.OutcomeUnauthenticated:
		return http.StatusUnauthorized
	case articles.OutcomeInvalidURL:
		return http.StatusBadRequest
	case articles.OutcomeQuotaExceeded:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errMalformedBody, err)
	}

	return nil
}
