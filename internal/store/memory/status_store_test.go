package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/store"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return epoch.Add(time.Duration(seconds) * time.Second)
}

func appendAll(t *testing.T, s *StatusStore, logs ...domain.TaskRunStatusLog) {
	t.Helper()
	for _, log := range logs {
		require.NoError(t, s.Append(context.Background(), log))
	}
}

func log(id int64, status domain.TaskRunStatus, seconds int) domain.TaskRunStatusLog {
	return domain.TaskRunStatusLog{TaskRunID: id, Status: status, StatusUpdatedAt: at(seconds)}
}

func TestCurrentStatus(t *testing.T) {
	s := NewStatusStore()
	appendAll(t, s,
		log(1, domain.RunWaiting, 0),
		log(1, domain.RunQueued, 10),
		log(1, domain.RunExecution, 20),
	)

	entry, err := s.CurrentStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.RunExecution, entry.Status)
	assert.Equal(t, at(20), entry.UpdatedAt)

	_, err = s.CurrentStatus(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCurrentEntriesFIFO(t *testing.T) {
	s := NewStatusStore()
	appendAll(t, s,
		log(3, domain.RunWaiting, 30),
		log(1, domain.RunWaiting, 10),
		log(2, domain.RunWaiting, 10),
		log(4, domain.RunQueued, 5),
	)

	entries, err := s.CurrentEntries(context.Background(), domain.RunWaiting)
	require.NoError(t, err)
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestWindowCountAndTotal(t *testing.T) {
	s := NewStatusStore()
	appendAll(t, s,
		log(1, domain.RunSucceed, 50), // after the since mark at 40
		log(2, domain.RunSucceed, 40), // boundary: exactly at the mark -> out
		log(3, domain.RunSucceed, 95), // in
		log(4, domain.RunTempError, 90),
	)

	succeeded := []domain.TaskRunStatus{domain.RunSucceed}

	count, err := s.WindowRunCount(context.Background(), succeeded, at(40))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	total, err := s.WindowRunTotal(context.Background(), succeeded, at(40))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestWindowTotalCountsRecordsNotRuns(t *testing.T) {
	s := NewStatusStore()
	appendAll(t, s,
		log(1, domain.RunTempError, 60),
		log(1, domain.RunWaiting, 70),
		log(1, domain.RunQueued, 75),
		log(1, domain.RunExecution, 80),
		log(1, domain.RunTempError, 90),
	)

	total, err := s.WindowRunTotal(context.Background(), domain.ReturnedRunStatuses, at(40))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestCountRunsWithStatus(t *testing.T) {
	s := NewStatusStore()
	appendAll(t, s,
		log(1, domain.RunWaiting, 10),
		log(2, domain.RunWaiting, 20),
		log(2, domain.RunQueued, 30),
		log(3, domain.RunSucceed, 40),
	)

	count, err := s.CountRunsWithStatus(context.Background(), domain.RunWaiting)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	all, err := s.CountRunsWithStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, all)
}

func TestAverageDurationClosedStreak(t *testing.T) {
	s := NewStatusStore()
	// run 1: QUEUED for 10 s, run 2: QUEUED for 30 s.
	appendAll(t, s,
		log(1, domain.RunQueued, 50),
		log(1, domain.RunExecution, 60),
		log(2, domain.RunQueued, 50),
		log(2, domain.RunExecution, 80),
	)

	avg, err := s.AverageRunDurationInStatus(context.Background(), domain.RunQueued, at(40))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, avg, 1e-9)
}

func TestAverageDurationOpenStreakExcluded(t *testing.T) {
	s := NewStatusStore()
	// run 1 closed its QUEUED streak; run 2 is still QUEUED.
	appendAll(t, s,
		log(1, domain.RunQueued, 50),
		log(1, domain.RunExecution, 65),
		log(2, domain.RunWaiting, 40),
		log(2, domain.RunQueued, 60),
	)

	avg, err := s.AverageRunDurationInStatus(context.Background(), domain.RunQueued, at(40))
	require.NoError(t, err)
	assert.InDelta(t, 15.0, avg, 1e-9)
}

func TestAverageDurationMultiLogOpenStreakExcluded(t *testing.T) {
	s := NewStatusStore()
	// the run re-logged QUEUED twice and is still QUEUED: the streak never
	// closed, so it contributes nothing.
	appendAll(t, s,
		log(1, domain.RunWaiting, 40),
		log(1, domain.RunQueued, 50),
		log(1, domain.RunQueued, 60),
	)

	avg, err := s.AverageRunDurationInStatus(context.Background(), domain.RunQueued, at(30))
	require.NoError(t, err)
	assert.Zero(t, avg)
}

func TestAverageDurationMultiLogClosedStreak(t *testing.T) {
	s := NewStatusStore()
	// two consecutive QUEUED logs closed by EXECUTION count as one streak.
	appendAll(t, s,
		log(1, domain.RunWaiting, 40),
		log(1, domain.RunQueued, 50),
		log(1, domain.RunQueued, 60),
		log(1, domain.RunExecution, 70),
	)

	avg, err := s.AverageRunDurationInStatus(context.Background(), domain.RunQueued, at(30))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, avg, 1e-9)
}

func TestAverageDurationNoStreaks(t *testing.T) {
	s := NewStatusStore()
	appendAll(t, s, log(1, domain.RunWaiting, 50))

	avg, err := s.AverageRunDurationInStatus(context.Background(), domain.RunQueued, at(40))
	require.NoError(t, err)
	assert.Zero(t, avg)
}

func TestPruneKeepsNewestPerRun(t *testing.T) {
	s := NewStatusStore()
	appendAll(t, s,
		log(1, domain.RunWaiting, 10),
		log(1, domain.RunQueued, 20),
		log(1, domain.RunSucceed, 30),
		log(2, domain.RunWaiting, 5),
	)

	removed, err := s.PruneStatusLogs(context.Background(), at(30))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	entry, err := s.CurrentStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceed, entry.Status)

	// run 2's only record survives even though it is older than the cutoff
	entry, err = s.CurrentStatus(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, domain.RunWaiting, entry.Status)

	total, err := s.WindowRunTotal(context.Background(), []domain.TaskRunStatus{domain.RunWaiting}, at(-1000))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestAppendOutOfOrderKeepsNewestLast(t *testing.T) {
	s := NewStatusStore()
	appendAll(t, s,
		log(1, domain.RunQueued, 20),
		log(1, domain.RunWaiting, 10),
	)

	entry, err := s.CurrentStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.RunQueued, entry.Status)
}
