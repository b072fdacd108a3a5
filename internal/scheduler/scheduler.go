package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcgentr/article-summarizer/internal/domain"
	"github.com/jcgentr/article-summarizer/internal/quota"

	"github.com/robfig/cron/v3"
)

const (
	DefaultCycleSweepSpec = "0 0 * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	sweepTimeout          = 15 * time.Minute
)

// CycleStore is the billing cycle part of the database.
type CycleStore interface {
	CyclesStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.UserMetadata, error)
	ResetBillingCycle(ctx context.Context, userID string, prevStart, newStart time.Time) (bool, error)
}

// Scheduler periodically rolls expired billing cycles over, so that counters
// are reset even for users who stay idle. Ingest performs the same rollover
// lazily, and the conditional reset keeps both paths idempotent.
type Scheduler struct {
	ctx   context.Context
	cron  *cron.Cron
	spec  string
	store CycleStore
	now   func() time.Time
	log   *slog.Logger
}

func New(ctx context.Context, spec string, store CycleStore, log *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultCycleSweepSpec
	}

	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:   ctx,
		cron:  c,
		spec:  spec,
		store: store,
		now:   time.Now,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweepCycles); err != nil {
		return fmt.Errorf("add cycle sweep %q: %w", s.spec, err)
	}

	s.cron.Start()

	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweepCycles() {
	ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	reset, err := s.sweep(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to sweep billing cycles",
			"error", err,
			"reset", reset)
		return
	}

	s.log.InfoContext(ctx, "Billing cycles swept",
		"reset", reset)
}

// sweep resets every cycle that has run for at least a calendar month and
// returns how many rows it changed.
func (s *Scheduler) sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()

	metas, err := s.store.CyclesStartedBefore(ctx, now.AddDate(0, -1, 0))
	if err != nil {
		return 0, fmt.Errorf("list expired cycles: %w", err)
	}

	reset := 0

	for _, meta := range metas {
		if ctx.Err() != nil {
			return reset, ctx.Err()
		}

		next, rolled := quota.Rollover(meta.BillingCycleStart, now)
		if !rolled {
			continue
		}

		won, err := s.store.ResetBillingCycle(ctx, meta.UserID, meta.BillingCycleStart, next)
		if err != nil {
			s.log.ErrorContext(ctx, "Failed to reset billing cycle",
				"error", err,
				"userID", meta.UserID,
				"cycleStart", meta.BillingCycleStart)
			continue
		}

		if won {
			reset++
		}
	}

	return reset, nil
}
