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

const taskColumns = `id, group_name, priority, type, monitoring_algorithm_id,
       execution_arguments, payload_id, status, status_updated_at, loaded_at`

// CreateTasks deduplicates the payload bodies by checksum and creates one NEW
// task per body sharing the given configuration, appending the initial status
// logs. The whole intake is one transaction.
func (s *Store) CreateTasks(ctx context.Context, bodies []domain.PayloadBody, cfg domain.TaskConfiguration, at time.Time) ([]domain.Task, error) {
	if len(bodies) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	tasks := make([]domain.Task, 0, len(bodies))
	for _, body := range bodies {
		checksum, err := body.Checksum()
		if err != nil {
			return nil, err
		}
		dataJSON, err := jsonBytes(body.Data)
		if err != nil {
			return nil, fmt.Errorf("payload %s: %w", checksum, err)
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO payloads (data, checksum) VALUES ($1, $2)
ON CONFLICT (checksum) DO NOTHING;
`, dataJSON, checksum); err != nil {
			return nil, fmt.Errorf("insert payload %s: %w", checksum, err)
		}

		var payloadID int64
		if err := tx.QueryRow(ctx, `
SELECT id FROM payloads WHERE checksum = $1;
`, checksum).Scan(&payloadID); err != nil {
			return nil, fmt.Errorf("select payload %s: %w", checksum, err)
		}

		argsJSON, err := jsonBytes(cfg.ExecutionArguments)
		if err != nil {
			return nil, fmt.Errorf("task arguments: %w", err)
		}

		var taskID int64
		if err := tx.QueryRow(ctx, `
INSERT INTO tasks (group_name, priority, type, monitoring_algorithm_id,
                   execution_arguments, payload_id, status, status_updated_at, loaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id;
`, cfg.GroupName, string(cfg.Priority), string(cfg.Type), cfg.MonitoringAlgorithmID,
			argsJSON, payloadID, string(domain.TaskNew), at, at).Scan(&taskID); err != nil {
			return nil, fmt.Errorf("insert task: %w", err)
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO task_status_logs (task_id, status, status_updated_at) VALUES ($1, $2, $3);
`, taskID, string(domain.TaskNew), at); err != nil {
			return nil, fmt.Errorf("insert task log %d: %w", taskID, err)
		}

		tasks = append(tasks, domain.Task{
			ID:                    taskID,
			GroupName:             cfg.GroupName,
			Priority:              cfg.Priority,
			Type:                  cfg.Type,
			MonitoringAlgorithmID: cfg.MonitoringAlgorithmID,
			ExecutionArguments:    cfg.ExecutionArguments,
			PayloadID:             payloadID,
			Status:                domain.TaskNew,
			StatusUpdatedAt:       at,
			LoadedAt:              at,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit task intake: %w", err)
	}
	return tasks, nil
}

// GetTask fetches one task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+taskColumns+`
FROM tasks WHERE id = $1;
`, id)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Task{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

// ListDuePeriodicTasks returns tasks with a PERIODIC algorithm that are due
// at the given instant: NEW tasks, and EXECUTION or SUCCEED tasks whose
// status timestamp plus the algorithm timeout has passed.
func (s *Store) ListDuePeriodicTasks(ctx context.Context, now time.Time) ([]domain.Task, error) {
	rows, err := s.db.Query(ctx, `
SELECT t.id, t.group_name, t.priority, t.type, t.monitoring_algorithm_id,
       t.execution_arguments, t.payload_id, t.status, t.status_updated_at, t.loaded_at
FROM tasks t
JOIN monitoring_algorithms a ON a.id = t.monitoring_algorithm_id
WHERE a.type = $1
  AND (t.status = $2
       OR (t.status IN ($3, $4) AND t.status_updated_at + make_interval(secs => a.timeout) < $5))
ORDER BY t.id;
`, string(domain.AlgorithmPeriodic), string(domain.TaskNew),
		string(domain.TaskExecution), string(domain.TaskSucceed), now)
	if err != nil {
		return nil, fmt.Errorf("list due periodic tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list due periodic tasks: %w", err)
	}
	return tasks, nil
}

// TaskWithAlgorithm pairs a task with its monitoring algorithm.
type TaskWithAlgorithm struct {
	Task      domain.Task
	Algorithm domain.MonitoringAlgorithm
}

// ListTasksWithSingleAlgorithm returns every task driven by a SINGLE
// algorithm together with the algorithm itself. Due-ness is computed by the
// caller from the task's loaded_at and the algorithm timeouts.
func (s *Store) ListTasksWithSingleAlgorithm(ctx context.Context) ([]TaskWithAlgorithm, error) {
	rows, err := s.db.Query(ctx, `
SELECT t.id, t.group_name, t.priority, t.type, t.monitoring_algorithm_id,
       t.execution_arguments, t.payload_id, t.status, t.status_updated_at, t.loaded_at,
       a.id, a.type, a.timeout, a.timeouts, a.timeout_noise
FROM tasks t
JOIN monitoring_algorithms a ON a.id = t.monitoring_algorithm_id
WHERE a.type = $1
ORDER BY t.id;
`, string(domain.AlgorithmSingle))
	if err != nil {
		return nil, fmt.Errorf("list single-algorithm tasks: %w", err)
	}
	defer rows.Close()

	var pairs []TaskWithAlgorithm
	for rows.Next() {
		var (
			task         domain.Task
			algo         domain.MonitoringAlgorithm
			argsJSON     []byte
			timeoutsJSON []byte
		)
		if err := rows.Scan(
			&task.ID, &task.GroupName, &task.Priority, &task.Type, &task.MonitoringAlgorithmID,
			&argsJSON, &task.PayloadID, &task.Status, &task.StatusUpdatedAt, &task.LoadedAt,
			&algo.ID, &algo.Type, &algo.Timeout, &timeoutsJSON, &algo.TimeoutNoise,
		); err != nil {
			return nil, fmt.Errorf("scan single-algorithm task: %w", err)
		}
		if err := unmarshalInto(argsJSON, &task.ExecutionArguments); err != nil {
			return nil, fmt.Errorf("task %d arguments: %w", task.ID, err)
		}
		if err := unmarshalInto(timeoutsJSON, &algo.Timeouts); err != nil {
			return nil, fmt.Errorf("algorithm %d timeouts: %w", algo.ID, err)
		}
		pairs = append(pairs, TaskWithAlgorithm{Task: task, Algorithm: algo})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list single-algorithm tasks: %w", err)
	}
	return pairs, nil
}

func scanTask(row pgx.Row) (domain.Task, error) {
	var (
		task     domain.Task
		argsJSON []byte
	)
	if err := row.Scan(
		&task.ID, &task.GroupName, &task.Priority, &task.Type, &task.MonitoringAlgorithmID,
		&argsJSON, &task.PayloadID, &task.Status, &task.StatusUpdatedAt, &task.LoadedAt,
	); err != nil {
		return domain.Task{}, err
	}
	if err := unmarshalInto(argsJSON, &task.ExecutionArguments); err != nil {
		return domain.Task{}, fmt.Errorf("task %d arguments: %w", task.ID, err)
	}
	return task, nil
}
