package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jcgentr/article-summarizer/internal/domain"
)

const userMetadataColumns = `user_id, email, plan_type, summaries_generated,
	billing_cycle_start, stripe_customer_id`

// EnsureUserMetadata creates a free-plan row whose cycle starts now on first
// contact and returns the stored row.
func (d *Database) EnsureUserMetadata(
	ctx context.Context,
	userID string,
	email string,
	now time.Time,
) (domain.UserMetadata, error) {
	insert := `insert into user_metadata (user_id, email, plan_type, summaries_generated, billing_cycle_start)
		values (?, ?, ?, 0, ?)
		on conflict (user_id) do update set email = excluded.email
		where excluded.email != '' and user_metadata.email != excluded.email`

	if _, err := d.db.ExecContext(ctx, insert, userID, email, domain.PlanFree, now.UTC()); err != nil {
		return domain.UserMetadata{}, fmt.Errorf("insert user metadata: %w", mapError(err))
	}

	return d.GetUserMetadata(ctx, userID)
}

func (d *Database) GetUserMetadata(ctx context.Context, userID string) (domain.UserMetadata, error) {
	query := "select " + userMetadataColumns + " from user_metadata where user_id = ?"

	var meta domain.UserMetadata
	if err := d.db.GetContext(ctx, &meta, query, userID); err != nil {
		return domain.UserMetadata{}, mapError(err)
	}

	return meta, nil
}

// ResetBillingCycle moves the cycle start and zeroes the counter only when the
// stored start still equals prevStart. It reports whether this call won.
func (d *Database) ResetBillingCycle(
	ctx context.Context,
	userID string,
	prevStart time.Time,
	newStart time.Time,
) (bool, error) {
	query := `update user_metadata set summaries_generated = 0, billing_cycle_start = ?
		where user_id = ? and billing_cycle_start = ?`

	res, err := d.db.ExecContext(ctx, query, newStart.UTC(), userID, prevStart.UTC())
	if err != nil {
		return false, mapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return affected == 1, nil
}

// LinkCountedArticle links a newly created article to the user and counts it
// as one generated summary, in one transaction. It returns ErrLimitReached and
// writes nothing when the user's counter has already reached limit.
func (d *Database) LinkCountedArticle(
	ctx context.Context,
	userID string,
	articleID string,
	limit int,
	now time.Time,
) error {
	return WithTx(ctx, d.db, nil, func(ctx context.Context, tx DBTX) error {
		if err := insertUserArticle(ctx, tx, userID, articleID, now); err != nil {
			return fmt.Errorf("insert user article: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`update user_metadata set summaries_generated = summaries_generated + 1
			where user_id = ? and summaries_generated < ?`,
			userID, limit,
		)
		if err != nil {
			return fmt.Errorf("increment summaries: %w", mapError(err))
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if affected == 0 {
			return ErrLimitReached
		}

		return nil
	})
}

func (d *Database) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	query := "update user_metadata set stripe_customer_id = ? where user_id = ?"

	return d.execAffectingOne(ctx, query, customerID, userID)
}

// CyclesStartedBefore lists users whose billing cycle started at or before
// cutoff.
func (d *Database) CyclesStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.UserMetadata, error) {
	query := "select " + userMetadataColumns + " from user_metadata where billing_cycle_start <= ?"

	var metas []domain.UserMetadata
	if err := d.db.SelectContext(ctx, &metas, query, cutoff.UTC()); err != nil {
		return nil, fmt.Errorf("select user metadata: %w", mapError(err))
	}

	return metas, nil
}
