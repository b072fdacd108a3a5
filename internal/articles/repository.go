package articles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcgentr/article-summarizer/internal/auth"
	"github.com/jcgentr/article-summarizer/internal/database"
	"github.com/jcgentr/article-summarizer/internal/domain"
	"github.com/jcgentr/article-summarizer/internal/extractor"
	"github.com/jcgentr/article-summarizer/internal/quota"
	"github.com/jcgentr/article-summarizer/internal/summarizer"
)

const (
	msgAlreadySaved    = "You've already saved this article"
	msgFailed          = "Failed to create article summary"
	msgUnauthenticated = "You must be logged in to create summaries"
	msgInvalidURL      = "Please provide a valid http(s) URL"
)

type Extractor interface {
	Extract(ctx context.Context, pageURL string) (extractor.Result, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, content string, wordCount int) (summarizer.Result, error)
	BenchmarkAll(ctx context.Context, content string, wordCount int) []summarizer.BenchmarkResult
}

// Store is the persistence the repository works against. *database.Database
// implements it.
type Store interface {
	GetArticleByURL(ctx context.Context, url string) (domain.Article, error)
	InsertArticle(ctx context.Context, a *domain.Article) error
	HasUserArticle(ctx context.Context, userID, articleID string) (bool, error)
	InsertUserArticle(ctx context.Context, userID, articleID string, now time.Time) error
	LinkCountedArticle(ctx context.Context, userID, articleID string, limit int, now time.Time) error
	DeleteUserArticle(ctx context.Context, userID, articleID string) error
	SetReadStatus(ctx context.Context, userID, articleID string, hasRead bool, now time.Time) error
	SetRating(ctx context.Context, userID, articleID string, rating int, now time.Time) error
	HasTag(ctx context.Context, userID, articleID, tag string) (bool, error)
	InsertTag(ctx context.Context, userID, articleID, tag string, now time.Time) error
	DeleteTag(ctx context.Context, userID, articleID, tag string) error
	ListSavedArticles(ctx context.Context, userID, tag string) ([]domain.SavedArticle, error)
	DistinctTags(ctx context.Context, userID string) ([]string, error)
	EnsureUserMetadata(ctx context.Context, userID, email string, now time.Time) (domain.UserMetadata, error)
	GetUserMetadata(ctx context.Context, userID string) (domain.UserMetadata, error)
	ResetBillingCycle(ctx context.Context, userID string, prevStart, newStart time.Time) (bool, error)
	TopRated(ctx context.Context, limit int) ([]domain.RatedArticle, error)
	TopSaved(ctx context.Context, limit int) ([]domain.PopularArticle, error)
	InsertFeedback(ctx context.Context, fb *domain.Feedback) error
}

type IngestResult struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	// ArticleID is set whenever the user ends up with the article saved.
	ArticleID string `json:"article_id,omitempty"`
}

func (r IngestResult) Success() bool {
	switch r.Outcome {
	case OutcomeCreated, OutcomeLinkedExisting, OutcomeTagAdded:
		return true
	default:
		return false
	}
}

type Repository struct {
	db         Store
	extractor  Extractor
	summarizer Summarizer
	ledger     *quota.Ledger
	now        func() time.Time
	log        *slog.Logger
}

type Option func(*Repository)

func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

func New(
	db Store,
	ext Extractor,
	sum Summarizer,
	ledger *quota.Ledger,
	log *slog.Logger,
	opts ...Option,
) *Repository {
	r := &Repository{
		db:         db,
		extractor:  ext,
		summarizer: sum,
		ledger:     ledger,
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ingest saves the article behind rawURL into the user's library, creating
// and summarizing it first when nobody has saved it before.
func (r *Repository) Ingest(ctx context.Context, user domain.User, rawURL string, rawTag string) IngestResult {
	if user.ID == "" {
		return IngestResult{Outcome: OutcomeUnauthenticated, Message: msgUnauthenticated}
	}

	pageURL, err := NormalizeURL(rawURL)
	if err != nil {
		return IngestResult{Outcome: OutcomeInvalidURL, Message: msgInvalidURL}
	}

	tag := NormalizeTag(rawTag)

	article, err := r.db.GetArticleByURL(ctx, pageURL)
	switch {
	case err == nil:
		return r.ingestExisting(ctx, user, article, tag)
	case errors.Is(err, database.ErrNotFound):
		return r.apply(ctx, user, pageURL, domain.Article{}, tag, decisionKey{tagProvided: tag != ""})
	default:
		r.log.ErrorContext(ctx, "Failed to look up article",
			"error", err,
			"userID", user.ID,
			"url", pageURL)

		return failed()
	}
}

func (r *Repository) ingestExisting(
	ctx context.Context,
	user domain.User,
	article domain.Article,
	tag string,
) IngestResult {
	key := decisionKey{articleExists: true, tagProvided: tag != ""}

	hasLink, err := r.db.HasUserArticle(ctx, user.ID, article.ID)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to check user article",
			"error", err,
			"userID", user.ID,
			"articleID", article.ID)

		return failed()
	}
	key.userHasLink = hasLink

	if hasLink && key.tagProvided {
		if key.tagAlreadyPresent, err = r.db.HasTag(ctx, user.ID, article.ID, tag); err != nil {
			r.log.ErrorContext(ctx, "Failed to check tag",
				"error", err,
				"userID", user.ID,
				"articleID", article.ID,
				"tag", tag)

			return failed()
		}
	}

	return r.apply(ctx, user, article.URL, article, tag, key)
}

// apply carries out the outcome the decision table picks for key. article is
// empty when the URL has not been stored yet.
func (r *Repository) apply(
	ctx context.Context,
	user domain.User,
	pageURL string,
	article domain.Article,
	tag string,
	key decisionKey,
) IngestResult {
	switch decide(key) {
	case OutcomeCreated:
		return r.ingestNew(ctx, user, pageURL, tag)

	case OutcomeAlreadySaved:
		return alreadySaved(article.ID)

	case OutcomeTagAdded:
		if err := r.db.InsertTag(ctx, user.ID, article.ID, tag, r.now()); err != nil {
			if errors.Is(err, database.ErrAlreadyExists) {
				return alreadySaved(article.ID)
			}

			r.log.ErrorContext(ctx, "Failed to add tag to existing article",
				"error", err,
				"userID", user.ID,
				"articleID", article.ID,
				"tag", tag)

			return failed()
		}

		return IngestResult{
			Outcome:   OutcomeTagAdded,
			Message:   fmt.Sprintf("Added new tag %q to existing article", tag),
			ArticleID: article.ID,
		}

	case OutcomeLinkedExisting:
		if err := r.db.InsertUserArticle(ctx, user.ID, article.ID, r.now()); err != nil {
			if errors.Is(err, database.ErrAlreadyExists) {
				return alreadySaved(article.ID)
			}

			r.log.ErrorContext(ctx, "Failed to link existing article",
				"error", err,
				"userID", user.ID,
				"articleID", article.ID)

			return failed()
		}

		r.addTagBestEffort(ctx, user, article.ID, tag)

		return IngestResult{
			Outcome:   OutcomeLinkedExisting,
			Message:   withTag("Added existing article summary", tag),
			ArticleID: article.ID,
		}

	default:
		r.log.ErrorContext(ctx, "Unexpected ingest decision",
			"userID", user.ID,
			"url", pageURL,
			"key", fmt.Sprintf("%+v", key))

		return failed()
	}
}

func (r *Repository) ingestNew(ctx context.Context, user domain.User, pageURL string, tag string) IngestResult {
	decision, err := r.admit(ctx, user)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to check quota",
			"error", err,
			"userID", user.ID)

		return failed()
	}
	if !decision.Admit {
		r.log.InfoContext(ctx, "Quota is exceeded",
			"userID", user.ID,
			"plan", decision.Metadata.PlanType,
			"used", decision.Metadata.SummariesGenerated,
			"limit", decision.Limit)

		return IngestResult{Outcome: OutcomeQuotaExceeded, Message: decision.Reason}
	}

	page, err := r.extractor.Extract(ctx, pageURL)
	if err != nil {
		r.log.WarnContext(ctx, "Failed to extract article",
			"error", err,
			"userID", user.ID,
			"url", pageURL)

		return failed()
	}

	summary, err := r.summarizer.Summarize(ctx, page.Content, page.WordCount)
	if err != nil {
		r.log.WarnContext(ctx, "Failed to summarize article",
			"error", err,
			"userID", user.ID,
			"url", pageURL,
			"wordCount", page.WordCount)

		return failed()
	}

	article := domain.Article{
		URL:              pageURL,
		Title:            page.Title,
		Author:           page.Author,
		PublishedTime:    page.PublishedTime,
		Content:          page.Content,
		FormattedContent: page.FormattedContent,
		WordCount:        page.WordCount,
		Summary:          summary.Summary,
		Tags:             summary.Tags,
		Provider:         summary.Provider,
		CreatedAt:        r.now().UTC(),
	}

	if err = r.db.InsertArticle(ctx, &article); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			// Someone else stored the same URL first; continue as for an existing one.
			existing, lookupErr := r.db.GetArticleByURL(ctx, pageURL)
			if lookupErr != nil {
				r.log.ErrorContext(ctx, "Failed to look up concurrently created article",
					"error", lookupErr,
					"userID", user.ID,
					"url", pageURL)

				return failed()
			}

			return r.ingestExisting(ctx, user, existing, tag)
		}

		r.log.ErrorContext(ctx, "Failed to insert article",
			"error", err,
			"userID", user.ID,
			"url", pageURL)

		return failed()
	}

	// Linking and counting commit together and only while the user is still
	// under the limit, so parallel ingests cannot overrun the quota.
	if err = r.db.LinkCountedArticle(ctx, user.ID, article.ID, decision.Limit, r.now()); err != nil {
		switch {
		case errors.Is(err, database.ErrAlreadyExists):
			return alreadySaved(article.ID)

		case errors.Is(err, database.ErrLimitReached):
			r.log.InfoContext(ctx, "Quota is exceeded at commit",
				"userID", user.ID,
				"articleID", article.ID,
				"plan", decision.Metadata.PlanType,
				"limit", decision.Limit)

			return IngestResult{
				Outcome: OutcomeQuotaExceeded,
				Message: r.ledger.DenyReason(decision.Metadata.PlanType),
			}
		}

		r.log.ErrorContext(ctx, "Failed to link new article",
			"error", err,
			"userID", user.ID,
			"articleID", article.ID)

		return failed()
	}

	r.addTagBestEffort(ctx, user, article.ID, tag)

	r.log.InfoContext(ctx, "Article is created",
		"userID", user.ID,
		"articleID", article.ID,
		"provider", article.Provider,
		"wordCount", article.WordCount)

	return IngestResult{
		Outcome:   OutcomeCreated,
		Message:   withTag("Added article summary", tag),
		ArticleID: article.ID,
	}
}

// admit loads the user's metadata and applies the ledger, persisting a
// billing cycle rollover when one is due.
func (r *Repository) admit(ctx context.Context, user domain.User) (quota.Decision, error) {
	now := r.now().UTC()

	meta, err := r.db.EnsureUserMetadata(ctx, user.ID, user.Email, now)
	if err != nil {
		return quota.Decision{}, fmt.Errorf("ensure user metadata: %w", err)
	}

	decision := r.ledger.Check(meta, now)
	if !decision.RolledOver {
		return decision, nil
	}

	won, err := r.db.ResetBillingCycle(ctx, user.ID, decision.PreviousCycleStart, decision.Metadata.BillingCycleStart)
	if err != nil {
		return quota.Decision{}, fmt.Errorf("reset billing cycle: %w", err)
	}

	if !won {
		// Another request already reset the cycle; evaluate against its state.
		if meta, err = r.db.GetUserMetadata(ctx, user.ID); err != nil {
			return quota.Decision{}, fmt.Errorf("get user metadata: %w", err)
		}
		decision = r.ledger.Check(meta, now)
	}

	return decision, nil
}

func (r *Repository) addTagBestEffort(ctx context.Context, user domain.User, articleID, tag string) {
	if tag == "" {
		return
	}

	if err := r.db.InsertTag(ctx, user.ID, articleID, tag, r.now()); err != nil &&
		!errors.Is(err, database.ErrAlreadyExists) {
		r.log.WarnContext(ctx, "Failed to add tag",
			"error", err,
			"userID", user.ID,
			"articleID", articleID,
			"tag", tag)
	}
}

func withTag(message, tag string) string {
	if tag == "" {
		return message
	}
	return message + " with tag: " + tag
}

func alreadySaved(articleID string) IngestResult {
	return IngestResult{Outcome: OutcomeAlreadySaved, Message: msgAlreadySaved, ArticleID: articleID}
}

func failed() IngestResult {
	return IngestResult{Outcome: OutcomeFailed, Message: msgFailed}
}

func requireUser(user domain.User) error {
	if user.ID == "" {
		return auth.ErrAuthRequired
	}
	return nil
}
