package scheduler

import (
	"context"
	"time"

	"github.com/MatweyL/Potok/internal/batch"
	"github.com/MatweyL/Potok/internal/domain"
	scherrors "github.com/MatweyL/Potok/internal/shared/errors"
	"github.com/MatweyL/Potok/internal/shared/logging"
)

// RunQueuer flips runs to QUEUED and invokes emit for each inside the same
// transaction. MarkRunsFailed settles runs whose command could not be
// published as ERROR.
type RunQueuer interface {
	DispatchRuns(ctx context.Context, runs []domain.TaskRun, at time.Time, emit func(domain.TaskRun) error) error
	MarkRunsFailed(ctx context.Context, ids []int64, description string, at time.Time) error
}

// CommandPublisher sends one encoded command to the broker.
type CommandPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Dispatcher releases one batch of WAITING runs per tick. The batch provider
// decides how many; the store transaction guarantees a run is QUEUED exactly
// when its command was acknowledged by the broker. Commands route by the
// run's group name unless routingKey overrides it.
type Dispatcher struct {
	provider   batch.Provider
	store      RunQueuer
	producer   CommandPublisher
	routingKey string
	now        func() time.Time
	logger     logging.Logger
}

// NewDispatcher wires the dispatch job. An empty routingKey routes by group
// name; a nil clock defaults to time.Now.
func NewDispatcher(provider batch.Provider, store RunQueuer, producer CommandPublisher, routingKey string, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		provider:   provider,
		store:      store,
		producer:   producer,
		routingKey: routingKey,
		now:        now,
		logger:     logging.NewComponentLogger("Dispatcher"),
	}
}

// Dispatch runs one tick.
func (d *Dispatcher) Dispatch(ctx context.Context) error {
	runs, err := d.provider.NextBatch(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		d.logger.Debug("no waiting runs")
		return nil
	}

	var unpublishable []int64
	err = d.store.DispatchRuns(ctx, runs, d.now(), func(run domain.TaskRun) error {
		body, err := domain.EncodeCommand(domain.ExecuteCommand(run))
		if err != nil {
			return err
		}
		key := d.routingKey
		if key == "" {
			key = run.GroupName
		}
		err = d.producer.Publish(ctx, key, body)
		if err != nil && scherrors.KindOf(err) == scherrors.KindBrokerFatal {
			d.logger.Error("dropping unpublishable command for run %d: %v", run.ID, err)
			unpublishable = append(unpublishable, run.ID)
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	if len(unpublishable) > 0 {
		if err := d.store.MarkRunsFailed(ctx, unpublishable, "command could not be published", d.now()); err != nil {
			return err
		}
	}
	d.logger.Info("dispatched %d runs", len(runs))
	return nil
}
