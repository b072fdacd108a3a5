package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jcgentr/article-summarizer/internal/domain"
)

const articleColumns = `id, url, title, author, published_time, content, formatted_content,
	word_count, summary, tags, provider, created_at`

func (d *Database) GetArticleByURL(ctx context.Context, url string) (domain.Article, error) {
	query := "select " + articleColumns + " from articles where url = ?"

	var a domain.Article
	if err := d.db.GetContext(ctx, &a, query, url); err != nil {
		return domain.Article{}, mapError(err)
	}

	return a, nil
}

func (d *Database) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	query := "select " + articleColumns + " from articles where id = ?"

	var a domain.Article
	if err := d.db.GetContext(ctx, &a, query, id); err != nil {
		return domain.Article{}, mapError(err)
	}

	return a, nil
}

// InsertArticle assigns ID and CreatedAt when they are empty.
func (d *Database) InsertArticle(ctx context.Context, a *domain.Article) error {
	if a.WordCount < 0 {
		return fmt.Errorf("word count is negative: %d", a.WordCount)
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `insert into articles (` + articleColumns + `)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		a.ID, a.URL, a.Title, a.Author, a.PublishedTime, a.Content, a.FormattedContent,
		a.WordCount, a.Summary, a.Tags, a.Provider, a.CreatedAt)

	return mapError(err)
}

func (d *Database) HasUserArticle(ctx context.Context, userID, articleID string) (bool, error) {
	query := "select exists(select 1 from user_articles where user_id = ? and article_id = ?)"

	var exists bool
	if err := d.db.GetContext(ctx, &exists, query, userID, articleID); err != nil {
		return false, mapError(err)
	}

	return exists, nil
}

func (d *Database) InsertUserArticle(ctx context.Context, userID, articleID string, now time.Time) error {
	return insertUserArticle(ctx, d.db, userID, articleID, now)
}

func insertUserArticle(ctx context.Context, db DBTX, userID, articleID string, now time.Time) error {
	query := `insert into user_articles (user_id, article_id, has_read, created_at, updated_at)
		values (?, ?, 0, ?, ?)`

	now = now.UTC()
	_, err := db.ExecContext(ctx, query, userID, articleID, now, now)

	return mapError(err)
}

func (d *Database) SetReadStatus(ctx context.Context, userID, articleID string, hasRead bool, now time.Time) error {
	query := "update user_articles set has_read = ?, updated_at = ? where user_id = ? and article_id = ?"

	return d.execAffectingOne(ctx, query, hasRead, now.UTC(), userID, articleID)
}

func (d *Database) SetRating(ctx context.Context, userID, articleID string, rating int, now time.Time) error {
	query := "update user_articles set rating = ?, updated_at = ? where user_id = ? and article_id = ?"

	return d.execAffectingOne(ctx, query, rating, now.UTC(), userID, articleID)
}

func (d *Database) HasTag(ctx context.Context, userID, articleID, tag string) (bool, error) {
	query := `select exists(
		select 1 from user_article_tags where user_id = ? and article_id = ? and tag = ?
	)`

	var exists bool
	if err := d.db.GetContext(ctx, &exists, query, userID, articleID, tag); err != nil {
		return false, mapError(err)
	}

	return exists, nil
}

func (d *Database) InsertTag(ctx context.Context, userID, articleID, tag string, now time.Time) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.New("tag is empty")
	}

	query := `insert into user_article_tags (user_id, article_id, tag, created_at)
		values (?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query, userID, articleID, tag, now.UTC())

	return mapError(err)
}

func (d *Database) DeleteTag(ctx context.Context, userID, articleID, tag string) error {
	query := "delete from user_article_tags where user_id = ? and article_id = ? and tag = ?"

	return d.execAffectingOne(ctx, query, userID, articleID, tag)
}

// DeleteUserArticle removes the user's tags and link for an article in a
// single transaction. The shared article row stays.
func (d *Database) DeleteUserArticle(ctx context.Context, userID, articleID string) error {
	return WithTx(ctx, d.db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			"delete from user_article_tags where user_id = ? and article_id = ?",
			userID, articleID,
		); err != nil {
			return fmt.Errorf("delete tags: %w", mapError(err))
		}

		res, err := tx.ExecContext(ctx,
			"delete from user_articles where user_id = ? and article_id = ?",
			userID, articleID,
		)
		if err != nil {
			return fmt.Errorf("delete user article: %w", mapError(err))
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}

		return nil
	})
}

func (d *Database) ListSavedArticles(ctx context.Context, userID, tag string) ([]domain.SavedArticle, error) {
	query := `select a.id, a.url, a.title, a.author, a.published_time, a.content,
			a.formatted_content, a.word_count, a.summary, a.tags, a.provider, a.created_at,
			ua.has_read, ua.rating, ua.created_at as saved_at
		from user_articles ua
		join articles a on a.id = ua.article_id
		where ua.user_id = ?`
	args := []any{userID}

	if tag != "" {
		query += ` and exists (
			select 1 from user_article_tags t
			where t.user_id = ua.user_id and t.article_id = ua.article_id and t.tag = ?
		)`
		args = append(args, tag)
	}
	query += " order by ua.created_at desc"

	var articles []domain.SavedArticle
	if err := d.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("select saved articles: %w", mapError(err))
	}

	tags, err := d.userTags(ctx, userID)
	if err != nil {
		return nil, err
	}

	byArticle := make(map[string][]string)
	for _, t := range tags {
		byArticle[t.ArticleID] = append(byArticle[t.ArticleID], t.Tag)
	}

	for i := range articles {
		articles[i].UserTags = byArticle[articles[i].ID]
	}

	return articles, nil
}

// userTags returns the user's tags, newest first.
func (d *Database) userTags(ctx context.Context, userID string) ([]domain.Tag, error) {
	query := `select id, user_id, article_id, tag, created_at
		from user_article_tags where user_id = ? order by created_at desc, id desc`

	var tags []domain.Tag
	if err := d.db.SelectContext(ctx, &tags, query, userID); err != nil {
		return nil, fmt.Errorf("select user tags: %w", mapError(err))
	}

	return tags, nil
}

// DistinctTags returns each tag once, most recently used first.
func (d *Database) DistinctTags(ctx context.Context, userID string) ([]string, error) {
	query := `select tag from user_article_tags
		where user_id = ? group by tag order by max(id) desc`

	var tags []string
	if err := d.db.SelectContext(ctx, &tags, query, userID); err != nil {
		return nil, fmt.Errorf("select distinct tags: %w", mapError(err))
	}

	return tags, nil
}

func (d *Database) execAffectingOne(ctx context.Context, query string, args ...any) error {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
