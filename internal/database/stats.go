package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jcgentr/article-summarizer/internal/domain"
)

func (d *Database) TopRated(ctx context.Context, limit int) ([]domain.RatedArticle, error) {
	query := `select a.id as article_id, a.url, a.title,
			avg(ua.rating) as average_rating, count(ua.rating) as rating_count
		from user_articles ua
		join articles a on a.id = ua.article_id
		where ua.rating is not null
		group by a.id
		order by average_rating desc, rating_count desc, a.created_at desc
		limit ?`

	var rows []domain.RatedArticle
	if err := d.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("select top rated: %w", mapError(err))
	}

	return rows, nil
}

func (d *Database) TopSaved(ctx context.Context, limit int) ([]domain.PopularArticle, error) {
	query := `select a.id as article_id, a.url, a.title, count(*) as save_count
		from user_articles ua
		join articles a on a.id = ua.article_id
		group by a.id
		order by save_count desc, a.created_at desc
		limit ?`

	var rows []domain.PopularArticle
	if err := d.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("select top saved: %w", mapError(err))
	}

	return rows, nil
}

func (d *Database) InsertFeedback(ctx context.Context, fb *domain.Feedback) error {
	fb.Category = strings.TrimSpace(fb.Category)
	fb.Message = strings.TrimSpace(fb.Message)
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	query := `insert into feedback (user_id, user_email, category, message, created_at)
		values (?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query, fb.UserID, fb.UserEmail, fb.Category, fb.Message, fb.CreatedAt)
	if err != nil {
		return mapError(err)
	}

	if fb.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	return nil
}
