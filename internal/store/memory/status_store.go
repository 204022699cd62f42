// Package memory provides an in-memory run-status store with the same query
// surface as the postgres status-log repository. It backs controller and
// collector tests and standalone runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/store"
)

// StatusStore keeps per-run status logs ordered oldest to newest.
type StatusStore struct {
	mu   sync.RWMutex
	logs map[int64][]domain.TaskRunStatusLog
}

// NewStatusStore builds an empty store.
func NewStatusStore() *StatusStore {
	return &StatusStore{logs: make(map[int64][]domain.TaskRunStatusLog)}
}

// Append records one status transition. Out-of-order timestamps are inserted
// at their sorted position so the newest log stays last.
func (s *StatusStore) Append(_ context.Context, log domain.TaskRunStatusLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := s.logs[log.TaskRunID]
	if n := len(logs); n == 0 || !log.StatusUpdatedAt.Before(logs[n-1].StatusUpdatedAt) {
		s.logs[log.TaskRunID] = append(logs, log)
		return nil
	}
	i := sort.Search(len(logs), func(i int) bool {
		return logs[i].StatusUpdatedAt.After(log.StatusUpdatedAt)
	})
	logs = append(logs, domain.TaskRunStatusLog{})
	copy(logs[i+1:], logs[i:])
	logs[i] = log
	s.logs[log.TaskRunID] = logs
	return nil
}

// CurrentStatus returns the newest status entry for a run.
func (s *StatusStore) CurrentStatus(_ context.Context, id int64) (domain.StatusEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs, ok := s.logs[id]
	if !ok || len(logs) == 0 {
		return domain.StatusEntry{}, store.ErrNotFound
	}
	newest := logs[len(logs)-1]
	return domain.StatusEntry{ID: id, Status: newest.Status, UpdatedAt: newest.StatusUpdatedAt}, nil
}

// CurrentEntries lists runs whose current status is in statuses (all runs if
// empty), FIFO by status timestamp with id as tiebreak.
func (s *StatusStore) CurrentEntries(_ context.Context, statuses ...domain.TaskRunStatus) ([]domain.StatusEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []domain.StatusEntry
	for id, logs := range s.logs {
		if len(logs) == 0 {
			continue
		}
		newest := logs[len(logs)-1]
		if len(statuses) > 0 && !statusIn(newest.Status, statuses) {
			continue
		}
		entries = append(entries, domain.StatusEntry{ID: id, Status: newest.Status, UpdatedAt: newest.StatusUpdatedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].UpdatedAt.Before(entries[j].UpdatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// CountRunsWithStatus counts runs whose current status is in statuses (all
// runs if empty).
func (s *StatusStore) CountRunsWithStatus(_ context.Context, statuses ...domain.TaskRunStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(statuses) == 0 {
		return len(s.logs), nil
	}
	count := 0
	for _, logs := range s.logs {
		if len(logs) == 0 {
			continue
		}
		if statusIn(logs[len(logs)-1].Status, statuses) {
			count++
		}
	}
	return count, nil
}

// WindowRunCount counts runs whose current status is in statuses and was
// reached strictly after since.
func (s *StatusStore) WindowRunCount(_ context.Context, statuses []domain.TaskRunStatus, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, logs := range s.logs {
		if len(logs) == 0 {
			continue
		}
		newest := logs[len(logs)-1]
		if statusIn(newest.Status, statuses) && newest.StatusUpdatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

// WindowRunTotal counts log records (not runs) written strictly after since
// whose status is in statuses. Drives arrival-rate metrics.
func (s *StatusStore) WindowRunTotal(_ context.Context, statuses []domain.TaskRunStatus, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, logs := range s.logs {
		for i := len(logs) - 1; i >= 0; i-- {
			if !logs[i].StatusUpdatedAt.After(since) {
				break
			}
			if statusIn(logs[i].Status, statuses) {
				total++
			}
		}
	}
	return total, nil
}

// AverageRunDurationInStatus averages, over runs, the durations of contiguous
// streaks in target whose newest appearance falls strictly after since. A
// streak still open at the head of the log is not counted.
func (s *StatusStore) AverageRunDurationInStatus(_ context.Context, target domain.TaskRunStatus, since time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		totalCount    int
		totalDuration float64
	)
	for _, logs := range s.logs {
		var (
			end      *domain.TaskRunStatusLog // log that closed the streak; nil while the streak touches the head
			oldest   *domain.TaskRunStatusLog
			inWindow bool
		)
		closeStreak := func() {
			if oldest != nil && end != nil && inWindow {
				totalDuration += end.StatusUpdatedAt.Sub(oldest.StatusUpdatedAt).Seconds()
				totalCount++
			}
			end, oldest = nil, nil
			inWindow = false
		}
		for i := len(logs) - 1; i >= 0; i-- {
			if logs[i].Status == target {
				if oldest == nil && i < len(logs)-1 {
					end = &logs[i+1]
				}
				if logs[i].StatusUpdatedAt.After(since) {
					inWindow = true
				}
				oldest = &logs[i]
				continue
			}
			closeStreak()
			if !logs[i].StatusUpdatedAt.After(since) {
				break
			}
		}
		closeStreak()
	}
	if totalCount == 0 {
		return 0, nil
	}
	return totalDuration / float64(totalCount), nil
}

// PruneStatusLogs drops records with timestamps at or before cutoff, always
// keeping the newest record per run. Returns the number of records removed.
func (s *StatusStore) PruneStatusLogs(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, logs := range s.logs {
		drop := 0
		for _, log := range logs {
			if log.StatusUpdatedAt.After(cutoff) {
				break
			}
			drop++
		}
		if drop == len(logs) {
			drop--
		}
		if drop <= 0 {
			continue
		}
		s.logs[id] = logs[drop:]
		removed += int64(drop)
	}
	return removed, nil
}

func statusIn(status domain.TaskRunStatus, set []domain.TaskRunStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
