package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/MatweyL/Potok/internal/domain"
)

// CountRunsWithStatus counts runs whose current status is in statuses.
func (s *Store) CountRunsWithStatus(ctx context.Context, statuses ...domain.TaskRunStatus) (int, error) {
	var count int
	var err error
	if len(statuses) == 0 {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM task_runs;`).Scan(&count)
	} else {
		err = s.db.QueryRow(ctx, `
SELECT COUNT(*) FROM task_runs WHERE status = ANY($1);
`, statusStrings(statuses)).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return count, nil
}

// WindowRunCount counts runs whose current status is in statuses and was
// reached strictly after since.
func (s *Store) WindowRunCount(ctx context.Context, statuses []domain.TaskRunStatus, since time.Time) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `
SELECT COUNT(*) FROM task_runs WHERE status = ANY($1) AND status_updated_at > $2;
`, statusStrings(statuses), since).Scan(&count); err != nil {
		return 0, fmt.Errorf("window run count: %w", err)
	}
	return count, nil
}

// WindowRunTotal counts status-log records (not runs) with status in
// statuses written strictly after since. Drives arrival-rate metrics.
func (s *Store) WindowRunTotal(ctx context.Context, statuses []domain.TaskRunStatus, since time.Time) (int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `
SELECT COUNT(*) FROM task_run_status_logs WHERE status = ANY($1) AND status_updated_at > $2;
`, statusStrings(statuses), since).Scan(&total); err != nil {
		return 0, fmt.Errorf("window run total: %w", err)
	}
	return total, nil
}

// AverageRunDurationInStatus averages the durations of closed contiguous
// streaks in target whose newest log falls strictly after since. A streak
// ends at the first log after it; open streaks do not count.
func (s *Store) AverageRunDurationInStatus(ctx context.Context, target domain.TaskRunStatus, since time.Time) (float64, error) {
	var average float64
	if err := s.db.QueryRow(ctx, `
WITH ordered AS (
    SELECT task_run_id, status, status_updated_at,
           ROW_NUMBER() OVER (PARTITION BY task_run_id ORDER BY status_updated_at) AS rn
    FROM task_run_status_logs
),
streaks AS (
    SELECT task_run_id,
           MIN(status_updated_at) AS started_at,
           MAX(status_updated_at) AS newest_at,
           MAX(rn) AS last_rn
    FROM (
        SELECT task_run_id, status, status_updated_at, rn,
               rn - ROW_NUMBER() OVER (PARTITION BY task_run_id, status ORDER BY status_updated_at) AS grp
        FROM ordered
    ) islands
    WHERE status = $1
    GROUP BY task_run_id, grp
)
SELECT COALESCE(AVG(EXTRACT(EPOCH FROM o.status_updated_at - s.started_at)), 0)
FROM streaks s
JOIN ordered o ON o.task_run_id = s.task_run_id AND o.rn = s.last_rn + 1
WHERE s.newest_at > $2;
`, string(target), since).Scan(&average); err != nil {
		return 0, fmt.Errorf("average duration in %s: %w", target, err)
	}
	return average, nil
}

// PruneStatusLogs deletes task and run status logs with timestamps at or
// before cutoff, always keeping the newest record per entity. Returns the
// number of records removed.
func (s *Store) PruneStatusLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	runTag, err := s.db.Exec(ctx, `
DELETE FROM task_run_status_logs l
WHERE l.status_updated_at <= $1
  AND EXISTS (SELECT 1 FROM task_run_status_logs n
              WHERE n.task_run_id = l.task_run_id AND n.status_updated_at > l.status_updated_at);
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune run logs: %w", err)
	}

	taskTag, err := s.db.Exec(ctx, `
DELETE FROM task_status_logs l
WHERE l.status_updated_at <= $1
  AND EXISTS (SELECT 1 FROM task_status_logs n
              WHERE n.task_id = l.task_id AND n.status_updated_at > l.status_updated_at);
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune task logs: %w", err)
	}

	return runTag.RowsAffected() + taskTag.RowsAffected(), nil
}
