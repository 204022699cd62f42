package due

import (
	"context"
	"time"

	"github.com/MatweyL/Potok/internal/domain"
)

// PeriodicTaskLister is the store query behind the periodic provider.
type PeriodicTaskLister interface {
	ListDuePeriodicTasks(ctx context.Context, now time.Time) ([]domain.Task, error)
}

// PeriodicProvider lists tasks with PERIODIC algorithms that are due: NEW
// tasks, and EXECUTION or SUCCEED tasks whose timeout has elapsed. The
// selection ignores timeout noise; noise shifts the timestamp recorded at
// materialization instead.
type PeriodicProvider struct {
	tasks PeriodicTaskLister
	now   func() time.Time
}

// NewPeriodicProvider builds the provider. A nil clock defaults to time.Now.
func NewPeriodicProvider(tasks PeriodicTaskLister, now func() time.Time) *PeriodicProvider {
	if now == nil {
		now = time.Now
	}
	return &PeriodicProvider{tasks: tasks, now: now}
}

func (p *PeriodicProvider) Name() string { return "periodic" }

func (p *PeriodicProvider) DueTasks(ctx context.Context) ([]domain.Task, error) {
	return p.tasks.ListDuePeriodicTasks(ctx, p.now())
}
