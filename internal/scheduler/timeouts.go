package scheduler

import (
	"context"
	"time"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/shared/logging"
)

// TransitionRule expires runs stuck in From for longer than TTL into To. A
// zero TTL moves every run currently in From.
type TransitionRule struct {
	From domain.TaskRunStatus
	To   domain.TaskRunStatus
	TTL  time.Duration
}

// ExpiredTransitioner is the store operation behind the timeout job.
type ExpiredTransitioner interface {
	TransitionExpired(ctx context.Context, from, to domain.TaskRunStatus, ttl time.Duration, at time.Time) ([]int64, error)
}

// TimeoutTransitioner recovers runs the workers never answered for. QUEUED
// and EXECUTION runs that overstay their TTL are interrupted; interrupted and
// temporarily failed runs return to WAITING for re-dispatch.
type TimeoutTransitioner struct {
	store  ExpiredTransitioner
	rules  []TransitionRule
	now    func() time.Time
	logger logging.Logger
}

// DefaultRules builds the recovery chain from the configured TTLs.
func DefaultRules(queuedTTL, executionTTL, interruptedTTL, tempErrorTTL time.Duration) []TransitionRule {
	return []TransitionRule{
		{From: domain.RunQueued, To: domain.RunInterrupted, TTL: queuedTTL},
		{From: domain.RunExecution, To: domain.RunInterrupted, TTL: executionTTL},
		{From: domain.RunInterrupted, To: domain.RunWaiting, TTL: interruptedTTL},
		{From: domain.RunTempError, To: domain.RunWaiting, TTL: tempErrorTTL},
	}
}

// NewTimeoutTransitioner wires the timeout job. A nil clock defaults to
// time.Now.
func NewTimeoutTransitioner(store ExpiredTransitioner, rules []TransitionRule, now func() time.Time) *TimeoutTransitioner {
	if now == nil {
		now = time.Now
	}
	return &TimeoutTransitioner{
		store:  store,
		rules:  rules,
		now:    now,
		logger: logging.NewComponentLogger("TimeoutTransitioner"),
	}
}

// Transition applies every rule once. Rules run in order so a run released
// to WAITING is not re-interrupted within the same tick. Each rule stamps its
// own instant: a run interrupted by an earlier rule carries that rule's
// timestamp, and the log primary key (task_run_id, status_updated_at) stays
// collision-free when a later rule picks the run up again.
func (t *TimeoutTransitioner) Transition(ctx context.Context) error {
	for _, rule := range t.rules {
		ids, err := t.store.TransitionExpired(ctx, rule.From, rule.To, rule.TTL, t.now())
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			t.logger.Info("moved %d runs %s -> %s", len(ids), rule.From, rule.To)
		}
	}
	return nil
}
