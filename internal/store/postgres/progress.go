package postgres

import (
	"context"
	"fmt"

	"github.com/MatweyL/Potok/internal/domain"
)

// LatestProgress returns, for each given task id that has any collection
// progress, the progress row with the maximum right bound.
func (s *Store) LatestProgress(ctx context.Context, taskIDs []int64) (map[int64]domain.TimeIntervalTaskProgress, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
SELECT DISTINCT ON (task_id)
       task_id, right_bound_at, left_bound_at, collected_data_amount, saved_data_amount
FROM time_interval_task_progress
WHERE task_id = ANY($1)
ORDER BY task_id, right_bound_at DESC;
`, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("latest progress: %w", err)
	}
	defer rows.Close()

	progress := make(map[int64]domain.TimeIntervalTaskProgress)
	for rows.Next() {
		var p domain.TimeIntervalTaskProgress
		if err := rows.Scan(&p.TaskID, &p.RightBoundAt, &p.LeftBoundAt,
			&p.CollectedDataAmount, &p.SavedDataAmount); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		progress[p.TaskID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("latest progress: %w", err)
	}
	return progress, nil
}
