package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/store"
)

const taskRunColumns = `id, task_id, group_name, priority, type, payload,
       execution_bounds, execution_arguments, status, status_updated_at, description`

// TaskStatusUpdate carries the per-task timestamp recorded when a task flips
// to EXECUTION. Timestamps differ per task when timeout noise applies.
type TaskStatusUpdate struct {
	TaskID int64
	At     time.Time
}

// MaterializeRuns atomically flips the given tasks to EXECUTION (with task
// logs) and creates one WAITING run per entry of runs (with run logs).
// Returns the runs with their assigned ids.
func (s *Store) MaterializeRuns(ctx context.Context, taskUpdates []TaskStatusUpdate, runs []domain.TaskRun) ([]domain.TaskRun, error) {
	if len(taskUpdates) == 0 && len(runs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	for _, update := range taskUpdates {
		if _, err := tx.Exec(ctx, `
UPDATE tasks SET status = $1, status_updated_at = $2 WHERE id = $3;
`, string(domain.TaskExecution), update.At, update.TaskID); err != nil {
			return nil, fmt.Errorf("update task %d: %w", update.TaskID, err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO task_status_logs (task_id, status, status_updated_at) VALUES ($1, $2, $3);
`, update.TaskID, string(domain.TaskExecution), update.At); err != nil {
			return nil, fmt.Errorf("insert task log %d: %w", update.TaskID, err)
		}
	}

	created := make([]domain.TaskRun, 0, len(runs))
	for _, run := range runs {
		payloadJSON, err := jsonBytes(run.Payload)
		if err != nil {
			return nil, fmt.Errorf("run payload for task %d: %w", run.TaskID, err)
		}
		boundsJSON, err := jsonBytes(run.ExecutionBounds)
		if err != nil {
			return nil, fmt.Errorf("run bounds for task %d: %w", run.TaskID, err)
		}
		argsJSON, err := jsonBytes(run.ExecutionArguments)
		if err != nil {
			return nil, fmt.Errorf("run arguments for task %d: %w", run.TaskID, err)
		}

		if err := tx.QueryRow(ctx, `
INSERT INTO task_runs (task_id, group_name, priority, type, payload,
                       execution_bounds, execution_arguments, status, status_updated_at, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id;
`, run.TaskID, run.GroupName, string(run.Priority), string(run.Type), payloadJSON,
			boundsJSON, argsJSON, string(run.Status), run.StatusUpdatedAt, run.Description).Scan(&run.ID); err != nil {
			return nil, fmt.Errorf("insert run for task %d: %w", run.TaskID, err)
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO task_run_status_logs (task_run_id, status, status_updated_at) VALUES ($1, $2, $3);
`, run.ID, string(run.Status), run.StatusUpdatedAt); err != nil {
			return nil, fmt.Errorf("insert run log %d: %w", run.ID, err)
		}
		created = append(created, run)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit materialization: %w", err)
	}
	return created, nil
}

// GetTaskRun fetches one run by id.
func (s *Store) GetTaskRun(ctx context.Context, id int64) (domain.TaskRun, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+taskRunColumns+`
FROM task_runs WHERE id = $1;
`, id)
	run, err := scanTaskRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TaskRun{}, store.ErrNotFound
	}
	if err != nil {
		return domain.TaskRun{}, fmt.Errorf("get run %d: %w", id, err)
	}
	return run, nil
}

// ListWaitingRuns returns up to limit WAITING runs, FIFO by status timestamp
// with id as tiebreak.
func (s *Store) ListWaitingRuns(ctx context.Context, limit int) ([]domain.TaskRun, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
SELECT `+taskRunColumns+`
FROM task_runs
WHERE status = $1
ORDER BY status_updated_at, id
LIMIT $2;
`, string(domain.RunWaiting), limit)
	if err != nil {
		return nil, fmt.Errorf("list waiting runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.TaskRun
	for rows.Next() {
		run, err := scanTaskRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waiting run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list waiting runs: %w", err)
	}
	return runs, nil
}

// DispatchRuns moves the runs to QUEUED, appends logs, and calls emit for
// each run inside the same transaction: either every log commits with every
// emission acknowledged, or the whole tick rolls back.
func (s *Store) DispatchRuns(ctx context.Context, runs []domain.TaskRun, at time.Time, emit func(domain.TaskRun) error) error {
	if len(runs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	for _, run := range runs {
		if _, err := tx.Exec(ctx, `
UPDATE task_runs SET status = $1, status_updated_at = $2 WHERE id = $3;
`, string(domain.RunQueued), at, run.ID); err != nil {
			return fmt.Errorf("queue run %d: %w", run.ID, err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO task_run_status_logs (task_run_id, status, status_updated_at) VALUES ($1, $2, $3);
`, run.ID, string(domain.RunQueued), at); err != nil {
			return fmt.Errorf("insert run log %d: %w", run.ID, err)
		}

		run.Status = domain.RunQueued
		run.StatusUpdatedAt = at
		if err := emit(run); err != nil {
			return fmt.Errorf("emit run %d: %w", run.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dispatch: %w", err)
	}
	return nil
}

// MarkRunsFailed settles the given runs as ERROR with the description, in
// one transaction.
func (s *Store) MarkRunsFailed(ctx context.Context, ids []int64, description string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
UPDATE task_runs SET status = $1, status_updated_at = $2, description = $3 WHERE id = $4;
`, string(domain.RunError), at, description, id); err != nil {
			return fmt.Errorf("fail run %d: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO task_run_status_logs (task_run_id, status, status_updated_at, description)
VALUES ($1, $2, $3, $4);
`, id, string(domain.RunError), at, description); err != nil {
			return fmt.Errorf("insert run log %d: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit failed runs: %w", err)
	}
	return nil
}

// ApplyResponse records a worker response: the run row and log take the
// reported status at the reported time, and any carried result upserts the
// task's collection progress. Returns store.ErrNotFound for unknown runs.
func (s *Store) ApplyResponse(ctx context.Context, response domain.CommandResponse) error {
	runID := response.Command.TaskRun.ID

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	tag, err := tx.Exec(ctx, `
UPDATE task_runs SET status = $1, status_updated_at = $2, description = $3 WHERE id = $4;
`, string(response.Status), response.CreatedAt, response.Description, runID)
	if err != nil {
		return fmt.Errorf("update run %d: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO task_run_status_logs (task_run_id, status, status_updated_at, description)
VALUES ($1, $2, $3, $4);
`, runID, string(response.Status), response.CreatedAt, response.Description); err != nil {
		return fmt.Errorf("insert run log %d: %w", runID, err)
	}

	if result := response.Result; result != nil {
		if _, err := tx.Exec(ctx, `
INSERT INTO time_interval_task_progress (task_id, right_bound_at, left_bound_at,
                                         collected_data_amount, saved_data_amount)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (task_id, right_bound_at) DO UPDATE SET
    left_bound_at = EXCLUDED.left_bound_at,
    collected_data_amount = EXCLUDED.collected_data_amount,
    saved_data_amount = EXCLUDED.saved_data_amount;
`, response.Command.TaskRun.TaskID, result.RightBoundAt, result.LeftBoundAt,
			result.CollectedDataAmount, result.SavedDataAmount); err != nil {
			return fmt.Errorf("upsert progress for task %d: %w", response.Command.TaskRun.TaskID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit response: %w", err)
	}
	return nil
}

// TransitionExpired moves every run currently in from whose status timestamp
// is strictly older than at-ttl into to, appending logs, in one transaction.
// A zero ttl selects every run in from older than at itself; runs stamped at
// exactly at are excluded, so a rule never rewrites a log another rule wrote
// at the same instant. Returns the ids transitioned.
func (s *Store) TransitionExpired(ctx context.Context, from, to domain.TaskRunStatus, ttl time.Duration, at time.Time) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	rows, err := tx.Query(ctx, `
SELECT id FROM task_runs WHERE status = $1 AND status_updated_at < $2 ORDER BY id;
`, string(from), at.Add(-ttl))
	if err != nil {
		return nil, fmt.Errorf("select expired %s runs: %w", from, err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired run: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select expired %s runs: %w", from, err)
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
UPDATE task_runs SET status = $1, status_updated_at = $2 WHERE id = $3;
`, string(to), at, id); err != nil {
			return nil, fmt.Errorf("transition run %d: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO task_run_status_logs (task_run_id, status, status_updated_at) VALUES ($1, $2, $3);
`, id, string(to), at); err != nil {
			return nil, fmt.Errorf("insert run log %d: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition %s -> %s: %w", from, to, err)
	}
	return ids, nil
}

func scanTaskRun(row pgx.Row) (domain.TaskRun, error) {
	var (
		run         domain.TaskRun
		payloadJSON []byte
		boundsJSON  []byte
		argsJSON    []byte
	)
	if err := row.Scan(
		&run.ID, &run.TaskID, &run.GroupName, &run.Priority, &run.Type, &payloadJSON,
		&boundsJSON, &argsJSON, &run.Status, &run.StatusUpdatedAt, &run.Description,
	); err != nil {
		return domain.TaskRun{}, err
	}
	if err := unmarshalInto(payloadJSON, &run.Payload); err != nil {
		return domain.TaskRun{}, fmt.Errorf("run %d payload: %w", run.ID, err)
	}
	if err := unmarshalInto(boundsJSON, &run.ExecutionBounds); err != nil {
		return domain.TaskRun{}, fmt.Errorf("run %d bounds: %w", run.ID, err)
	}
	if err := unmarshalInto(argsJSON, &run.ExecutionArguments); err != nil {
		return domain.TaskRun{}, fmt.Errorf("run %d arguments: %w", run.ID, err)
	}
	return run, nil
}
