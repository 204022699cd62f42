package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema creates the scheduler tables if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS payloads (
    id BIGSERIAL PRIMARY KEY,
    data JSONB,
    checksum TEXT NOT NULL UNIQUE
);`,
		`CREATE TABLE IF NOT EXISTS monitoring_algorithms (
    id BIGSERIAL PRIMARY KEY,
    type TEXT NOT NULL,
    timeout DOUBLE PRECISION NOT NULL DEFAULT 0,
    timeouts JSONB,
    timeout_noise DOUBLE PRECISION NOT NULL DEFAULT 0
);`,
		`CREATE TABLE IF NOT EXISTS tasks (
    id BIGSERIAL PRIMARY KEY,
    group_name TEXT NOT NULL DEFAULT '',
    priority TEXT NOT NULL,
    type TEXT NOT NULL,
    monitoring_algorithm_id BIGINT NOT NULL REFERENCES monitoring_algorithms(id),
    execution_arguments JSONB,
    payload_id BIGINT NOT NULL REFERENCES payloads(id),
    status TEXT NOT NULL,
    status_updated_at TIMESTAMPTZ NOT NULL,
    loaded_at TIMESTAMPTZ NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status, status_updated_at);`,
		`CREATE TABLE IF NOT EXISTS task_status_logs (
    task_id BIGINT NOT NULL,
    status TEXT NOT NULL,
    status_updated_at TIMESTAMPTZ NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (task_id, status_updated_at)
);`,
		`CREATE TABLE IF NOT EXISTS task_runs (
    id BIGSERIAL PRIMARY KEY,
    task_id BIGINT NOT NULL REFERENCES tasks(id),
    group_name TEXT NOT NULL DEFAULT '',
    priority TEXT NOT NULL,
    type TEXT NOT NULL,
    payload JSONB,
    execution_bounds JSONB,
    execution_arguments JSONB,
    status TEXT NOT NULL,
    status_updated_at TIMESTAMPTZ NOT NULL,
    description TEXT NOT NULL DEFAULT ''
);`,
		`CREATE INDEX IF NOT EXISTS idx_task_runs_status ON task_runs (status, status_updated_at, id);`,
		`CREATE TABLE IF NOT EXISTS task_run_status_logs (
    task_run_id BIGINT NOT NULL,
    status TEXT NOT NULL,
    status_updated_at TIMESTAMPTZ NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (task_run_id, status_updated_at)
);`,
		`CREATE INDEX IF NOT EXISTS idx_task_run_status_logs_status ON task_run_status_logs (status, status_updated_at);`,
		`CREATE TABLE IF NOT EXISTS time_interval_task_progress (
    task_id BIGINT NOT NULL,
    right_bound_at TIMESTAMPTZ NOT NULL,
    left_bound_at TIMESTAMPTZ,
    collected_data_amount BIGINT,
    saved_data_amount BIGINT,
    PRIMARY KEY (task_id, right_bound_at)
);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
