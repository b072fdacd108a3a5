package articles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jcgentr/article-summarizer/internal/auth"
	"github.com/jcgentr/article-summarizer/internal/database"
	"github.com/jcgentr/article-summarizer/internal/domain"
	"github.com/jcgentr/article-summarizer/internal/extractor"
	"github.com/jcgentr/article-summarizer/internal/quota"
	"github.com/jcgentr/article-summarizer/internal/summarizer"
)

type stubExtractor struct {
	mu     sync.Mutex
	calls  int
	result extractor.Result
	err    error
	delay  time.Duration
}

func (s *stubExtractor) Extract(context.Context, string) (extractor.Result, error) {
	time.Sleep(s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.err != nil {
		return extractor.Result{}, s.err
	}
	return s.result, nil
}

func (s *stubExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSummarizer struct {
	mu     sync.Mutex
	calls  int
	result summarizer.Result
	err    error
}

func (s *stubSummarizer) Summarize(context.Context, string, int) (summarizer.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.err != nil {
		return summarizer.Result{}, s.err
	}
	return s.result, nil
}

func (s *stubSummarizer) BenchmarkAll(context.Context, string, int) []summarizer.BenchmarkResult {
	return []summarizer.BenchmarkResult{{Provider: "stub", Success: true, Summary: s.result.Summary}}
}

func (s *stubSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// failingStore fails the writes that have an error set.
type failingStore struct {
	Store
	insertArticleErr error
	linkErr          error
	tagErr           error
}

func (s *failingStore) InsertArticle(ctx context.Context, a *domain.Article) error {
	if s.insertArticleErr != nil {
		return s.insertArticleErr
	}
	return s.Store.InsertArticle(ctx, a)
}

func (s *failingStore) LinkCountedArticle(
	ctx context.Context,
	userID, articleID string,
	limit int,
	now time.Time,
) error {
	if s.linkErr != nil {
		return s.linkErr
	}
	return s.Store.LinkCountedArticle(ctx, userID, articleID, limit, now)
}

func (s *failingStore) InsertTag(ctx context.Context, userID, articleID, tag string, now time.Time) error {
	if s.tagErr != nil {
		return s.tagErr
	}
	return s.Store.InsertTag(ctx, userID, articleID, tag, now)
}

type fixture struct {
	repo   *Repository
	db     *database.Database
	ext    *stubExtractor
	sum    *stubSummarizer
	ledger *quota.Ledger
	log    *slog.Logger
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		db:  db,
		log: log,
		ext: &stubExtractor{result: extractor.Result{
			Title:     "Readable title",
			Content:   "one two three four five",
			WordCount: 5,
		}},
		sum: &stubSummarizer{result: summarizer.Result{
			Provider: "stub",
			Summary:  "A short summary.",
			Tags:     "go,testing",
		}},
		now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}

	f.ledger = quota.NewLedger(map[domain.PlanType]int{domain.PlanFree: 2, domain.PlanPro: 10})
	f.repo = f.newRepository(db)

	return f
}

func (f *fixture) newRepository(store Store) *Repository {
	return New(store, f.ext, f.sum, f.ledger, f.log, WithClock(func() time.Time { return f.now }))
}

// failWrites points the repository at a store that fails the writes set on s.
func (f *fixture) failWrites(s *failingStore) {
	s.Store = f.db
	f.repo = f.newRepository(s)
}

func (f *fixture) usage(t *testing.T, userID string) domain.UserMetadata {
	t.Helper()

	meta, err := f.db.GetUserMetadata(context.Background(), userID)
	require.NoError(t, err)
	return meta
}

var (
	alice = domain.User{ID: "alice", Email: "alice@example.com"}
	bob   = domain.User{ID: "bob", Email: "bob@example.com"}
)

func TestIngestCreatesArticle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.repo.Ingest(ctx, alice, "  HTTPS://Example.com/Post#section ", "")
	require.Equal(t, OutcomeCreated, res.Outcome)
	require.Equal(t, "Added article summary", res.Message)
	require.True(t, res.Success())

	article, err := f.db.GetArticleByURL(ctx, "https://example.com/Post")
	require.NoError(t, err)
	require.Equal(t, res.ArticleID, article.ID)
	require.Equal(t, "A short summary.", article.Summary)
	require.Equal(t, "go,testing", article.Tags)
	require.Equal(t, "stub", article.Provider)
	require.Equal(t, 5, article.WordCount)

	require.Equal(t, 1, f.usage(t, alice.ID).SummariesGenerated)
}

func TestIngestCreatesArticleWithTag(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.repo.Ingest(ctx, alice, "https://example.com/a", "  Golang ")
	require.Equal(t, OutcomeCreated, res.Outcome)
	require.Equal(t, "Added article summary with tag: golang", res.Message)

	tags, err := f.repo.Tags(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, []string{"golang"}, tags)
}

func TestIngestAlreadySavedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.Equal(t, OutcomeCreated, f.repo.Ingest(ctx, alice, "https://example.com/a", "").Outcome)

	res := f.repo.Ingest(ctx, alice, "https://example.com/a", "")
	require.Equal(t, OutcomeAlreadySaved, res.Outcome)
	require.Equal(t, "You've already saved this article", res.Message)

	require.Equal(t, 1, f.ext.callCount())
	require.Equal(t, 1, f.sum.callCount())
	require.Equal(t, 1, f.usage(t, alice.ID).SummariesGenerated)
}

func TestIngestExistingArticleForAnotherUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.Equal(t, OutcomeCreated, f.repo.Ingest(ctx, alice, "https://example.com/a", "").Outcome)

	res := f.repo.Ingest(ctx, bob, "https://example.com/a", "News")
	require.Equal(t, OutcomeLinkedExisting, res.Outcome)
	require.Equal(t, "Added existing article summary with tag: news", res.Message)

	require.Equal(t, 1, f.ext.callCount(), "existing article must not be refetched")
	require.Equal(t, 1, f.sum.callCount())

	_, err := f.db.GetUserMetadata(ctx, bob.ID)
	require.ErrorIs(t, err, database.ErrNotFound, "linking an existing article consumes no quota")
}

func TestIngestTagOnSavedArticle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.Equal(t, OutcomeCreated, f.repo.Ingest(ctx, alice, "https://example.com/a", "go").Outcome)

	res := f.repo.Ingest(ctx, alice, "https://example.com/a", "Databases")
	require.Equal(t, OutcomeTagAdded, res.Outcome)
	require.Equal(t, `Added new tag "databases" to existing article`, res.Message)

	res = f.repo.Ingest(ctx, alice, "https://example.com/a", "databases")
	require.Equal(t, OutcomeAlreadySaved, res.Outcome)

	require.Equal(t, 1, f.usage(t, alice.ID).SummariesGenerated)
}

func TestIngestQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.Equal(t, OutcomeCreated, f.repo.Ingest(ctx, alice, "https://example.com/1", "").Outcome)
	require.Equal(t, OutcomeCreated, f.repo.Ingest(ctx, alice, "https://example.com/2", "").Outcome)

	res := f.repo.Ingest(ctx, alice, "https://example.com/3", "")
	require.Equal(t, OutcomeQuotaExceeded, res.Outcome)
	require.Equal(t, "You've reached your free plan limit.", res.Message)
	require.Equal(t, 2, f.ext.callCount(), "denied request must not fetch")

	_, err := f.db.GetArticleByURL(ctx, "https://example.com/3")
	require.ErrorIs(t, err, database.ErrNotFound)

	// Existing articles can still be linked once the quota is spent.
	require.Equal(t, OutcomeCreated, f.repo.Ingest(ctx, bob, "https://example.com/4", "").Outcome)
	require.Equal(t, OutcomeLinkedExisting, f.repo.Ingest(ctx, alice, "https://example.com/4", "").Outcome)
}

func TestIngestRollsOverBillingCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.Equal(t, OutcomeCreated, f.repo.Ingest(ctx, alice, "https://example.com/1", "").Outcome)
	require.Equal(t, OutcomeCreated, f.repo.Ingest(ctx, alice, "https://example.com/2", "").Outcome)
	require.Equal(t, OutcomeQuotaExceeded, f.repo.Ingest(ctx, alice, "https://example.com/3", "").Outcome)

	start := f.now
	f.now = f.now.AddDate(0, 1, 3)

	require.Equal(t, OutcomeCreated, f.repo.Ingest(ctx, alice, "https://example.com/3", "").Outcome)

	meta := f.usage(t, alice.ID)
	require.Equal(t, 1, meta.SummariesGenerated)
	require.True(t, meta.BillingCycleStart.Equal(start.AddDate(0, 1, 0)))
}

func TestIngestFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("extract", func(t *testing.T) {
		f := newFixture(t)
		f.ext.err = &extractor.FetchError{URL: "https://example.com/a", StatusCode: 404}

		res := f.repo.Ingest(ctx, alice, "https://example.com/a", "")
		require.Equal(t, OutcomeFailed, res.Outcome)
		require.Equal(t, "Failed to create article summary", res.Message)
		require.Zero(t, f.sum.callCount())
		require.Zero(t, f.usage(t, alice.ID).SummariesGenerated)
	})

	t.Run("summarize", func(t *testing.T) {
		f := newFixture(t)
		f.sum.err = &summarizer.ContentTooLargeError{Provider: "stub", Estimated: 10, Limit: 1}

		res := f.repo.Ingest(ctx, alice, "https://example.com/a", "")
		require.Equal(t, OutcomeFailed, res.Outcome)
		require.Zero(t, f.usage(t, alice.ID).SummariesGenerated)

		_, err := f.db.GetArticleByURL(ctx, "https://example.com/a")
		require.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestIngestWriteFailures(t *testing.T) {
	ctx := context.Background()
	diskErr := errors.New("disk I/O error")

	t.Run("article insert", func(t *testing.T) {
		f := newFixture(t)
		f.failWrites(&failingStore{insertArticleErr: diskErr})

		res := f.repo.Ingest(ctx, alice, "https://example.com/a", "")
		require.Equal(t, OutcomeFailed, res.Outcome)
		require.Zero(t, f.usage(t, alice.ID).SummariesGenerated)

		_, err := f.db.GetArticleByURL(ctx, "https://example.com/a")
		require.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("link insert", func(t *testing.T) {
		f := newFixture(t)
		store := &failingStore{linkErr: diskErr}
		f.failWrites(store)

		res := f.repo.Ingest(ctx, alice, "https://example.com/a", "go")
		require.Equal(t, OutcomeFailed, res.Outcome)
		require.Zero(t, f.usage(t, alice.ID).SummariesGenerated)

		article, err := f.db.GetArticleByURL(ctx, "https://example.com/a")
		require.NoError(t, err, "stored article stays for later ingests")

		has, err := f.db.HasUserArticle(ctx, alice.ID, article.ID)
		require.NoError(t, err)
		require.False(t, has)

		store.linkErr = nil
		res = f.repo.Ingest(ctx, alice, "https://example.com/a", "")
		require.Equal(t, OutcomeLinkedExisting, res.Outcome)
		require.Equal(t, article.ID, res.ArticleID)
		require.Equal(t, 1, f.ext.callCount(), "stored article must not be refetched")
		require.Zero(t, f.usage(t, alice.ID).SummariesGenerated)
	})

	t.Run("tag insert", func(t *testing.T) {
		f := newFixture(t)
		f.failWrites(&failingStore{tagErr: diskErr})

		res := f.repo.Ingest(ctx, alice, "https://example.com/a", "go")
		require.Equal(t, OutcomeCreated, res.Outcome)
		require.Equal(t, 1, f.usage(t, alice.ID).SummariesGenerated)

		tags, err := f.repo.Tags(ctx, alice)
		require.NoError(t, err)
		require.Empty(t, tags)
	})
}

func TestIngestRejectsInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.repo.Ingest(ctx, domain.User{}, "https://example.com/a", "")
	require.Equal(t, OutcomeUnauthenticated, res.Outcome)
	require.Equal(t, "You must be logged in to create summaries", res.Message)

	for _, raw := range []string{"", "   ", "ftp://example.com/file", "not a url", "https:///path"} {
		res = f.repo.Ingest(ctx, alice, raw, "")
		require.Equal(t, OutcomeInvalidURL, res.Outcome, "input %q", raw)
	}

	require.Zero(t, f.ext.callCount())
}

func TestIngestConcurrentSameURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const users = 6

	var wg sync.WaitGroup
	results := make([]IngestResult, users)

	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.repo.Ingest(ctx, domain.User{ID: fmt.Sprintf("user-%d", i)}, "https://example.com/hot", "")
		}(i)
	}
	wg.Wait()

	created := 0
	articleIDs := make(map[string]struct{})
	for _, res := range results {
		require.True(t, res.Success(), "unexpected outcome %q", res.Outcome)
		if res.Outcome == OutcomeCreated {
			created++
		}
		articleIDs[res.ArticleID] = struct{}{}
	}

	require.Equal(t, 1, created)
	require.Len(t, articleIDs, 1)

	saved, err := f.db.TopSaved(ctx, 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Equal(t, users, saved[0].SaveCount)
}

func TestIngestConcurrentDistinctURLsRespectQuota(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ext.delay = 50 * time.Millisecond

	const requests = 8

	var wg sync.WaitGroup
	results := make([]IngestResult, requests)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.repo.Ingest(ctx, alice, fmt.Sprintf("https://example.com/post-%d", i), "")
		}(i)
	}
	wg.Wait()

	counts := make(map[Outcome]int)
	for _, res := range results {
		counts[res.Outcome]++
	}

	require.Equal(t, 2, counts[OutcomeCreated], "outcomes: %v", counts)
	require.Equal(t, requests-2, counts[OutcomeQuotaExceeded], "outcomes: %v", counts)
	require.Equal(t, 2, f.usage(t, alice.ID).SummariesGenerated)

	list, err := f.repo.ListArticles(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestDeleteArticleRemovesTags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.repo.Ingest(ctx, alice, "https://example.com/a", "go")
	require.Equal(t, OutcomeCreated, res.Outcome)

	require.NoError(t, f.repo.DeleteArticle(ctx, alice, res.ArticleID))

	tags, err := f.repo.Tags(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, tags)

	list, err := f.repo.ListArticles(ctx, alice, "")
	require.NoError(t, err)
	require.Empty(t, list)

	require.ErrorIs(t, f.repo.DeleteArticle(ctx, alice, res.ArticleID), database.ErrNotFound)
	require.ErrorIs(t, f.repo.DeleteArticle(ctx, domain.User{}, res.ArticleID), auth.ErrAuthRequired)

	// Saving again reuses the stored article.
	require.Equal(t, OutcomeLinkedExisting, f.repo.Ingest(ctx, alice, "https://example.com/a", "").Outcome)
}

func TestUserActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.repo.Ingest(ctx, alice, "https://example.com/a", "")
	require.Equal(t, OutcomeCreated, res.Outcome)
	id := res.ArticleID

	require.NoError(t, f.repo.SetReadStatus(ctx, alice, id, true))
	require.ErrorIs(t, f.repo.SetReadStatus(ctx, bob, id, true), database.ErrNotFound)

	require.ErrorIs(t, f.repo.SetRating(ctx, alice, id, 0), ErrInvalidRating)
	require.ErrorIs(t, f.repo.SetRating(ctx, alice, id, 6), ErrInvalidRating)
	require.NoError(t, f.repo.SetRating(ctx, alice, id, 5))

	tag, err := f.repo.AddTag(ctx, alice, id, "  Research ")
	require.NoError(t, err)
	require.Equal(t, "research", tag)

	_, err = f.repo.AddTag(ctx, alice, id, "RESEARCH")
	require.ErrorIs(t, err, database.ErrAlreadyExists)

	_, err = f.repo.AddTag(ctx, alice, id, "  ")
	require.ErrorIs(t, err, ErrInvalidTag)

	list, err := f.repo.ListArticles(ctx, alice, "Research")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].HasRead)
	require.Equal(t, 5, *list[0].Rating)
	require.Equal(t, 1, list[0].ReadTimeMinutes)
	require.Equal(t, []string{"research"}, list[0].UserTags)

	require.NoError(t, f.repo.DeleteTag(ctx, alice, id, "research"))
	require.ErrorIs(t, f.repo.DeleteTag(ctx, alice, id, "research"), database.ErrNotFound)

	board, err := f.repo.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board.TopRated, 1)
	require.Len(t, board.TopSaved, 1)

	require.ErrorIs(t, f.repo.SubmitFeedback(ctx, alice, "bug", "  "), ErrInvalidFeedback)
	require.NoError(t, f.repo.SubmitFeedback(ctx, alice, "bug", "Summaries are too long"))
}

func TestUsage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	usage, err := f.repo.Usage(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, domain.PlanFree, usage.Plan)
	require.Zero(t, usage.Used)
	require.Equal(t, 2, usage.Limit)
	require.True(t, usage.CycleEnds.Equal(f.now.AddDate(0, 1, 0)))

	_, err = f.repo.Usage(ctx, domain.User{})
	require.True(t, errors.Is(err, auth.ErrAuthRequired))
}

func TestBenchmarkDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	results, err := f.repo.Benchmark(ctx, alice, "https://example.com/bench")
	require.NoError(t, err)
	require.Len(t, results, 1)

	_, err = f.db.GetArticleByURL(ctx, "https://example.com/bench")
	require.ErrorIs(t, err, database.ErrNotFound)

	_, err = f.db.GetUserMetadata(ctx, alice.ID)
	require.ErrorIs(t, err, database.ErrNotFound)
}
