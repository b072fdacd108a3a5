package quota

import (
	"time"

	"github.com/jcgentr/article-summarizer/internal/domain"
)

const (
	freePlanReason    = "You've reached your free plan limit."
	monthlyPlanReason = "You've reached your monthly summary limit."
)

type Decision struct {
	Admit  bool
	Reason string
	Limit  int
	// Metadata reflects any billing cycle rollover.
	Metadata           domain.UserMetadata
	RolledOver         bool
	PreviousCycleStart time.Time
}

type Ledger struct {
	limits map[domain.PlanType]int
}

func NewLedger(limits map[domain.PlanType]int) *Ledger {
	l := make(map[domain.PlanType]int, len(limits))
	for plan, limit := range limits {
		l[plan] = limit
	}
	return &Ledger{limits: l}
}

// Limit never fails: unknown plans get the free limit.
func (l *Ledger) Limit(plan domain.PlanType) int {
	if limit, ok := l.limits[plan]; ok {
		return limit
	}
	return l.limits[domain.PlanFree]
}

func (l *Ledger) Check(meta domain.UserMetadata, now time.Time) Decision {
	d := Decision{
		Metadata:           meta,
		PreviousCycleStart: meta.BillingCycleStart,
	}

	if start, ok := Rollover(meta.BillingCycleStart, now); ok {
		d.Metadata.BillingCycleStart = start
		d.Metadata.SummariesGenerated = 0
		d.RolledOver = true
	}

	d.Limit = l.Limit(d.Metadata.PlanType)

	if d.Metadata.SummariesGenerated >= d.Limit {
		d.Reason = l.DenyReason(d.Metadata.PlanType)
		return d
	}

	d.Admit = true
	return d
}

// Rollover returns the start of the cycle containing now when at least one
// full calendar month has passed since start.
func Rollover(start, now time.Time) (time.Time, bool) {
	if now.Before(start.AddDate(0, 1, 0)) {
		return start, false
	}

	months := (now.Year()-start.Year())*12 + int(now.Month()-start.Month())
	next := start.AddDate(0, months, 0)
	for next.After(now) {
		months--
		next = start.AddDate(0, months, 0)
	}

	return next, true
}

// DenyReason is the user-facing message for a spent quota on plan.
func (l *Ledger) DenyReason(plan domain.PlanType) string {
	if _, known := l.limits[plan]; !known || plan == domain.PlanFree {
		return freePlanReason
	}
	return monthlyPlanReason
}
