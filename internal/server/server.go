package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jcgentr/article-summarizer/internal/articles"
	"github.com/jcgentr/article-summarizer/internal/auth"
	"github.com/jcgentr/article-summarizer/internal/domain"
	"github.com/jcgentr/article-summarizer/internal/summarizer"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	// Ingest may fetch a page and wait for a provider.
	writeTimeout    = 3 * time.Minute
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Library is what the HTTP API needs from the article repository.
type Library interface {
	Ingest(ctx context.Context, user domain.User, rawURL string, rawTag string) articles.IngestResult
	ListArticles(ctx context.Context, user domain.User, rawTag string) ([]domain.SavedArticle, error)
	DeleteArticle(ctx context.Context, user domain.User, articleID string) error
	SetReadStatus(ctx context.Context, user domain.User, articleID string, hasRead bool) error
	SetRating(ctx context.Context, user domain.User, articleID string, rating int) error
	AddTag(ctx context.Context, user domain.User, articleID string, rawTag string) (string, error)
	DeleteTag(ctx context.Context, user domain.User, articleID string, rawTag string) error
	Tags(ctx context.Context, user domain.User) ([]string, error)
	Leaderboard(ctx context.Context, limit int) (articles.Leaderboard, error)
	SubmitFeedback(ctx context.Context, user domain.User, category, message string) error
	Usage(ctx context.Context, user domain.User) (articles.Usage, error)
	Benchmark(ctx context.Context, user domain.User, rawURL string) ([]summarizer.BenchmarkResult, error)
}

type Billing interface {
	CreateCheckoutSession(ctx context.Context, user domain.User) (string, error)
	CreatePortalSession(ctx context.Context, user domain.User) (string, error)
}

type Discoverer interface {
	Top(ctx context.Context, n int) ([]domain.Story, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	library   Library
	verifier  *auth.Verifier
	billing   Billing
	discover  Discoverer
	health    Pinger
	benchmark bool
	log       *slog.Logger
}

type Option func(*Server)

func WithBilling(b Billing) Option {
	return func(s *Server) { s.billing = b }
}

func WithDiscover(d Discoverer) Option {
	return func(s *Server) { s.discover = d }
}

func WithHealthCheck(p Pinger) Option {
	return func(s *Server) { s.health = p }
}

// WithBenchmark exposes POST /v1/benchmark.
func WithBenchmark(enabled bool) Option {
	return func(s *Server) { s.benchmark = enabled }
}

// New builds the API. A nil verifier rejects every authenticated route.
func New(library Library, verifier *auth.Verifier, log *slog.Logger, opts ...Option) *Server {
	s := &Server{
		library:  library,
		verifier: verifier,
		log:      log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/articles", s.handleIngest)
	mux.HandleFunc("GET /v1/articles", s.handleListArticles)
	mux.HandleFunc("DELETE /v1/articles/{id}", s.handleDeleteArticle)
	mux.HandleFunc("PUT /v1/articles/{id}/read", s.handleSetReadStatus)
	mux.HandleFunc("PUT /v1/articles/{id}/rating", s.handleSetRating)
	mux.HandleFunc("POST /v1/articles/{id}/tags", s.handleAddTag)
	mux.HandleFunc("DELETE /v1/articles/{id}/tags/{tag}", s.handleDeleteTag)
	mux.HandleFunc("GET /v1/tags", s.handleTags)
	mux.HandleFunc("GET /v1/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("POST /v1/feedback", s.handleFeedback)
	mux.HandleFunc("GET /v1/usage", s.handleUsage)
	mux.HandleFunc("POST /v1/billing/checkout", s.handleCheckout)
	mux.HandleFunc("POST /v1/billing/portal", s.handlePortal)
	mux.HandleFunc("GET /v1/discover", s.handleDiscover)
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.benchmark {
		mux.HandleFunc("POST /v1/benchmark", s.handleBenchmark)
	}

	var h http.Handler = mux
	h = s.accessLog(h)
	h = requestID(h)

	return h
}

// Run serves addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.log.InfoContext(ctx, "HTTP server starting",
			"addr", addr,
			"benchmark", s.benchmark)

		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("listen and serve: %w", err)

	case <-ctx.Done():
		s.log.InfoContext(ctx, "HTTP server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.ErrorContext(ctx, "Failed to shut down HTTP server",
				"error", err)

			if closeErr := httpServer.Close(); closeErr != nil {
				return errors.Join(
					fmt.Errorf("shutdown: %w", err),
					fmt.Errorf("close: %w", closeErr),
				)
			}
		}

		if err := <-serverErr; err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
	}

	s.log.InfoContext(ctx, "HTTP server stopped")

	return nil
}
