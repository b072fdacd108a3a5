package articles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jcgentr/article-summarizer/internal/domain"
	"github.com/jcgentr/article-summarizer/internal/summarizer"
)

const (
	DefaultLeaderboardLimit = 10

	maxFeedbackLength = 5000
)

var (
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrInvalidTag      = errors.New("tag is empty")
	ErrInvalidFeedback = errors.New("feedback category and message are required")
)

type Leaderboard struct {
	TopRated []domain.RatedArticle   `json:"top_rated"`
	TopSaved []domain.PopularArticle `json:"top_saved"`
}

type Usage struct {
	Plan       domain.PlanType `json:"plan"`
	Used       int             `json:"used"`
	Limit      int             `json:"limit"`
	CycleStart time.Time       `json:"cycle_start"`
	CycleEnds  time.Time       `json:"cycle_ends"`
}

func (r *Repository) SetReadStatus(ctx context.Context, user domain.User, articleID string, hasRead bool) error {
	if err := requireUser(user); err != nil {
		return err
	}

	if err := r.db.SetReadStatus(ctx, user.ID, articleID, hasRead, r.now()); err != nil {
		return fmt.Errorf("set read status: %w", err)
	}

	return nil
}

func (r *Repository) SetRating(ctx context.Context, user domain.User, articleID string, rating int) error {
	if err := requireUser(user); err != nil {
		return err
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	if err := r.db.SetRating(ctx, user.ID, articleID, rating, r.now()); err != nil {
		return fmt.Errorf("set rating: %w", err)
	}

	return nil
}

// AddTag returns the normalized tag that was stored.
func (r *Repository) AddTag(ctx context.Context, user domain.User, articleID string, rawTag string) (string, error) {
	if err := requireUser(user); err != nil {
		return "", err
	}

	tag := NormalizeTag(rawTag)
	if tag == "" {
		return "", ErrInvalidTag
	}

	if err := r.db.InsertTag(ctx, user.ID, articleID, tag, r.now()); err != nil {
		return "", fmt.Errorf("insert tag: %w", err)
	}

	return tag, nil
}

func (r *Repository) DeleteTag(ctx context.Context, user domain.User, articleID string, rawTag string) error {
	if err := requireUser(user); err != nil {
		return err
	}

	tag := NormalizeTag(rawTag)
	if tag == "" {
		return ErrInvalidTag
	}

	if err := r.db.DeleteTag(ctx, user.ID, articleID, tag); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	return nil
}

// DeleteArticle removes the article from the user's library together with
// the user's tags for it.
func (r *Repository) DeleteArticle(ctx context.Context, user domain.User, articleID string) error {
	if err := requireUser(user); err != nil {
		return err
	}

	if err := r.db.DeleteUserArticle(ctx, user.ID, articleID); err != nil {
		return fmt.Errorf("delete user article: %w", err)
	}

	return nil
}

func (r *Repository) ListArticles(ctx context.Context, user domain.User, rawTag string) ([]domain.SavedArticle, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}

	saved, err := r.db.ListSavedArticles(ctx, user.ID, NormalizeTag(rawTag))
	if err != nil {
		return nil, fmt.Errorf("list saved articles: %w", err)
	}

	for i := range saved {
		saved[i].ReadTimeMinutes = ReadTimeMinutes(saved[i].WordCount)
	}

	return saved, nil
}

func (r *Repository) Tags(ctx context.Context, user domain.User) ([]string, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}

	tags, err := r.db.DistinctTags(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get distinct tags: %w", err)
	}

	return tags, nil
}

func (r *Repository) Leaderboard(ctx context.Context, limit int) (Leaderboard, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	rated, err := r.db.TopRated(ctx, limit)
	if err != nil {
		return Leaderboard{}, fmt.Errorf("get top rated: %w", err)
	}

	saved, err := r.db.TopSaved(ctx, limit)
	if err != nil {
		return Leaderboard{}, fmt.Errorf("get top saved: %w", err)
	}

	return Leaderboard{TopRated: rated, TopSaved: saved}, nil
}

func (r *Repository) SubmitFeedback(ctx context.Context, user domain.User, category, message string) error {
	if err := requireUser(user); err != nil {
		return err
	}

	category = strings.TrimSpace(category)
	message = strings.TrimSpace(message)
	if category == "" || message == "" || len(message) > maxFeedbackLength {
		return ErrInvalidFeedback
	}

	if err := r.db.InsertFeedback(ctx, &domain.Feedback{
		UserID:    user.ID,
		UserEmail: user.Email,
		Category:  category,
		Message:   message,
		CreatedAt: r.now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}

	return nil
}

// Usage reports the user's quota state after applying any due rollover.
func (r *Repository) Usage(ctx context.Context, user domain.User) (Usage, error) {
	if err := requireUser(user); err != nil {
		return Usage{}, err
	}

	decision, err := r.admit(ctx, user)
	if err != nil {
		return Usage{}, err
	}

	meta := decision.Metadata

	return Usage{
		Plan:       meta.PlanType,
		Used:       meta.SummariesGenerated,
		Limit:      decision.Limit,
		CycleStart: meta.BillingCycleStart,
		CycleEnds:  meta.BillingCycleStart.AddDate(0, 1, 0),
	}, nil
}

// Benchmark runs every provider over the page without storing anything or
// consuming quota.
func (r *Repository) Benchmark(ctx context.Context, user domain.User, rawURL string) ([]summarizer.BenchmarkResult, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}

	pageURL, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	page, err := r.extractor.Extract(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}

	return r.summarizer.BenchmarkAll(ctx, page.Content, page.WordCount), nil
}
