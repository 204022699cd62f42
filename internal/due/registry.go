// Package due decides which tasks are due for a new run. One provider per
// monitoring-algorithm variant; the registry fans out over all of them.
package due

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/shared/logging"
)

// Provider answers which tasks are due now for one algorithm variant.
type Provider interface {
	Name() string
	DueTasks(ctx context.Context) ([]domain.Task, error)
}

// Registry runs all providers concurrently and concatenates their results.
type Registry struct {
	providers []Provider
	logger    logging.Logger
}

// NewRegistry builds a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers, logger: logging.NewComponentLogger("DueRegistry")}
}

// DueTasks collects due tasks from every provider. A failing provider fails
// the whole collection so the materializer retries the tick.
func (r *Registry) DueTasks(ctx context.Context) ([]domain.Task, error) {
	results := make([][]domain.Task, len(r.providers))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, provider := range r.providers {
		group.Go(func() error {
			tasks, err := provider.DueTasks(groupCtx)
			if err != nil {
				r.logger.Warn("provider %s failed: %v", provider.Name(), err)
				return err
			}
			results[i] = tasks
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var all []domain.Task
	for _, tasks := range results {
		all = append(all, tasks...)
	}
	return all, nil
}
