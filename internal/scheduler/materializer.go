// Package scheduler hosts the periodic jobs that move tasks and runs through
// their lifecycles: materialization, dispatch, response ingestion, and
// timeout recovery.
package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/shared/logging"
	"github.com/MatweyL/Potok/internal/store/postgres"
)

// DueSource yields the tasks due for a new run right now.
type DueSource interface {
	DueTasks(ctx context.Context) ([]domain.Task, error)
}

// BoundsSource returns the ordered work slices per task id.
type BoundsSource interface {
	ProvideBatch(ctx context.Context, tasks []domain.Task) (map[int64][]domain.ExecutionBounds, error)
}

// PayloadSource resolves payloads by id.
type PayloadSource interface {
	Resolve(ctx context.Context, ids []int64) (map[int64]domain.Payload, error)
}

// AlgorithmReader fetches one monitoring algorithm.
type AlgorithmReader interface {
	GetAlgorithm(ctx context.Context, id int64) (domain.MonitoringAlgorithm, error)
}

// RunWriter persists one materialization tick atomically.
type RunWriter interface {
	MaterializeRuns(ctx context.Context, taskUpdates []postgres.TaskStatusUpdate, runs []domain.TaskRun) ([]domain.TaskRun, error)
}

// Materializer turns due tasks into WAITING runs. Each tick flips the tasks
// to EXECUTION and creates their runs in one transaction, with the payload
// and bounds snapshotted onto the run.
type Materializer struct {
	due        DueSource
	bounds     BoundsSource
	payloads   PayloadSource
	algorithms AlgorithmReader
	store      RunWriter
	now        func() time.Time
	noise      func(limit float64) float64
	logger     logging.Logger
}

// NewMaterializer wires the materialization job. A nil clock defaults to
// time.Now; a nil noise source defaults to uniform(-limit, +limit).
func NewMaterializer(due DueSource, bounds BoundsSource, payloads PayloadSource,
	algorithms AlgorithmReader, store RunWriter, now func() time.Time, noise func(limit float64) float64) *Materializer {
	if now == nil {
		now = time.Now
	}
	if noise == nil {
		noise = func(limit float64) float64 {
			if limit == 0 {
				return 0
			}
			return (rand.Float64()*2 - 1) * limit
		}
	}
	return &Materializer{
		due:        due,
		bounds:     bounds,
		payloads:   payloads,
		algorithms: algorithms,
		store:      store,
		now:        now,
		noise:      noise,
		logger:     logging.NewComponentLogger("Materializer"),
	}
}

// Materialize runs one tick.
func (m *Materializer) Materialize(ctx context.Context) error {
	tasks, err := m.due.DueTasks(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		m.logger.Debug("no due tasks")
		return nil
	}

	payloadIDs := make([]int64, 0, len(tasks))
	for _, task := range tasks {
		if task.PayloadID != 0 {
			payloadIDs = append(payloadIDs, task.PayloadID)
		}
	}
	payloads, err := m.payloads.Resolve(ctx, payloadIDs)
	if err != nil {
		return err
	}

	boundsByTask, err := m.bounds.ProvideBatch(ctx, tasks)
	if err != nil {
		return err
	}

	now := m.now()
	algorithms := make(map[int64]domain.MonitoringAlgorithm)
	updates := make([]postgres.TaskStatusUpdate, 0, len(tasks))
	runs := make([]domain.TaskRun, 0, len(tasks))
	for _, task := range tasks {
		algorithm, ok := algorithms[task.MonitoringAlgorithmID]
		if !ok {
			algorithm, err = m.algorithms.GetAlgorithm(ctx, task.MonitoringAlgorithmID)
			if err != nil {
				return err
			}
			algorithms[task.MonitoringAlgorithmID] = algorithm
		}

		// the recorded timestamp carries the jitter, so the next timeout
		// check spreads tasks of the same cadence apart
		at := now.Add(time.Duration(m.noise(algorithm.TimeoutNoise) * float64(time.Second)))
		updates = append(updates, postgres.TaskStatusUpdate{TaskID: task.ID, At: at})

		run := domain.TaskRun{
			TaskID:             task.ID,
			GroupName:          task.GroupName,
			Priority:           task.Priority,
			Type:               task.Type,
			ExecutionBounds:    boundsByTask[task.ID],
			ExecutionArguments: task.ExecutionArguments,
			Status:             domain.RunWaiting,
			StatusUpdatedAt:    at,
		}
		if payload, ok := payloads[task.PayloadID]; ok {
			run.Payload = &payload
		}
		runs = append(runs, run)
	}

	created, err := m.store.MaterializeRuns(ctx, updates, runs)
	if err != nil {
		return err
	}
	m.logger.Info("materialized %d runs from %d due tasks", len(created), len(tasks))
	return nil
}
