package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/store"
)

func newStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	s, err := New(pool)
	require.NoError(t, err)
	return s, pool
}

func TestCreateTasksDedupesPayloads(t *testing.T) {
	s, pool := newStore(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	body := domain.PayloadBody{Data: map[string]any{"url": "https://example.com"}}
	checksum, err := body.Checksum()
	require.NoError(t, err)

	cfg := domain.TaskConfiguration{
		GroupName:             "crawlers",
		Priority:              domain.PriorityMedium,
		Type:                  domain.TypeTimeInterval,
		MonitoringAlgorithmID: 3,
	}

	pool.ExpectBegin()
	pool.ExpectExec("INSERT INTO payloads").
		WithArgs(pgxmock.AnyArg(), checksum).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectQuery("SELECT id FROM payloads").
		WithArgs(checksum).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	pool.ExpectQuery("INSERT INTO tasks").
		WithArgs(cfg.GroupName, string(cfg.Priority), string(cfg.Type), cfg.MonitoringAlgorithmID,
			pgxmock.AnyArg(), int64(11), string(domain.TaskNew), at, at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(21)))
	pool.ExpectExec("INSERT INTO task_status_logs").
		WithArgs(int64(21), string(domain.TaskNew), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	tasks, err := s.CreateTasks(context.Background(), []domain.PayloadBody{body}, cfg, at)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(21), tasks[0].ID)
	assert.Equal(t, int64(11), tasks[0].PayloadID)
	assert.Equal(t, domain.TaskNew, tasks[0].Status)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestMaterializeRunsAtomically(t *testing.T) {
	s, pool := newStore(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	run := domain.TaskRun{
		TaskID:          21,
		GroupName:       "crawlers",
		Priority:        domain.PriorityMedium,
		Type:            domain.TypeTimeInterval,
		Status:          domain.RunWaiting,
		StatusUpdatedAt: at,
	}

	pool.ExpectBegin()
	pool.ExpectExec("UPDATE tasks SET status").
		WithArgs(string(domain.TaskExecution), at, int64(21)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("INSERT INTO task_status_logs").
		WithArgs(int64(21), string(domain.TaskExecution), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectQuery("INSERT INTO task_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(31)))
	pool.ExpectExec("INSERT INTO task_run_status_logs").
		WithArgs(int64(31), string(domain.RunWaiting), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	created, err := s.MaterializeRuns(context.Background(),
		[]TaskStatusUpdate{{TaskID: 21, At: at}}, []domain.TaskRun{run})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, int64(31), created[0].ID)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestDispatchRunsEmitsInsideTransaction(t *testing.T) {
	s, pool := newStore(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	run := domain.TaskRun{ID: 31, TaskID: 21, Status: domain.RunWaiting}

	pool.ExpectBegin()
	pool.ExpectExec("UPDATE task_runs SET status").
		WithArgs(string(domain.RunQueued), at, int64(31)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("INSERT INTO task_run_status_logs").
		WithArgs(int64(31), string(domain.RunQueued), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	var emitted []domain.TaskRun
	err := s.DispatchRuns(context.Background(), []domain.TaskRun{run}, at, func(r domain.TaskRun) error {
		emitted = append(emitted, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, domain.RunQueued, emitted[0].Status)
	assert.Equal(t, at, emitted[0].StatusUpdatedAt)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestDispatchRunsRollsBackOnEmitFailure(t *testing.T) {
	s, pool := newStore(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	run := domain.TaskRun{ID: 31, Status: domain.RunWaiting}

	pool.ExpectBegin()
	pool.ExpectExec("UPDATE task_runs SET status").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("INSERT INTO task_run_status_logs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectRollback()

	err := s.DispatchRuns(context.Background(), []domain.TaskRun{run}, at, func(domain.TaskRun) error {
		return assert.AnError
	})
	require.Error(t, err)

	require.NoError(t, pool.ExpectationsWereMet())
}

func TestApplyResponseWithProgress(t *testing.T) {
	s, pool := newStore(t)
	created := time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC)
	right := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	collected := int64(120)

	response := domain.CommandResponse{
		Command: domain.Command{Type: domain.CommandExecute, TaskRun: domain.TaskRun{ID: 31, TaskID: 21}},
		Status:  domain.RunSucceed,
		Result: &domain.TimeIntervalExecutionResults{
			RightBoundAt:        right,
			CollectedDataAmount: &collected,
			SavedDataAmount:     &collected,
		},
		CreatedAt: created,
	}

	pool.ExpectBegin()
	pool.ExpectExec("UPDATE task_runs SET status").
		WithArgs(string(domain.RunSucceed), created, "", int64(31)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("INSERT INTO task_run_status_logs").
		WithArgs(int64(31), string(domain.RunSucceed), created, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO time_interval_task_progress").
		WithArgs(int64(21), right, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	require.NoError(t, s.ApplyResponse(context.Background(), response))
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestApplyResponseUnknownRun(t *testing.T) {
	s, pool := newStore(t)

	response := domain.CommandResponse{
		Command:   domain.Command{TaskRun: domain.TaskRun{ID: 999}},
		Status:    domain.RunSucceed,
		CreatedAt: time.Now(),
	}

	pool.ExpectBegin()
	pool.ExpectExec("UPDATE task_runs SET status").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	pool.ExpectRollback()

	err := s.ApplyResponse(context.Background(), response)
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestTransitionExpiredStrictCutoff(t *testing.T) {
	s, pool := newStore(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ttl := 300 * time.Second

	pool.ExpectBegin()
	pool.ExpectQuery("SELECT id FROM task_runs WHERE status").
		WithArgs(string(domain.RunExecution), at.Add(-ttl)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(31)).AddRow(int64(32)))
	pool.ExpectExec("UPDATE task_runs SET status").
		WithArgs(string(domain.RunInterrupted), at, int64(31)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("INSERT INTO task_run_status_logs").
		WithArgs(int64(31), string(domain.RunInterrupted), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("UPDATE task_runs SET status").
		WithArgs(string(domain.RunInterrupted), at, int64(32)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("INSERT INTO task_run_status_logs").
		WithArgs(int64(32), string(domain.RunInterrupted), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	ids, err := s.TransitionExpired(context.Background(), domain.RunExecution, domain.RunInterrupted, ttl, at)
	require.NoError(t, err)
	assert.Equal(t, []int64{31, 32}, ids)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestTransitionExpiredZeroTTLExcludesCurrentInstant(t *testing.T) {
	s, pool := newStore(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// cutoff equals at: a run interrupted at this very instant by an earlier
	// rule is not selected, so its log row is never duplicated.
	pool.ExpectBegin()
	pool.ExpectQuery("SELECT id FROM task_runs WHERE status").
		WithArgs(string(domain.RunInterrupted), at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	pool.ExpectCommit()

	ids, err := s.TransitionExpired(context.Background(), domain.RunInterrupted, domain.RunWaiting, 0, at)
	require.NoError(t, err)
	assert.Empty(t, ids)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestListWaitingRunsFIFO(t *testing.T) {
	s, pool := newStore(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "task_id", "group_name", "priority", "type", "payload",
		"execution_bounds", "execution_arguments", "status", "status_updated_at", "description",
	}).
		AddRow(int64(1), int64(21), "crawlers", "MEDIUM", "TIME_INTERVAL", []byte(nil),
			[]byte(nil), []byte(nil), "WAITING", at, "").
		AddRow(int64(2), int64(22), "crawlers", "MEDIUM", "TIME_INTERVAL", []byte(`{"id":5,"data":{"x":1},"checksum":"c"}`),
			[]byte(nil), []byte(nil), "WAITING", at, "")

	pool.ExpectQuery("FROM task_runs").
		WithArgs(string(domain.RunWaiting), 10).
		WillReturnRows(rows)

	runs, err := s.ListWaitingRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(1), runs[0].ID)
	require.NotNil(t, runs[1].Payload)
	assert.Equal(t, int64(5), runs[1].Payload.ID)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestListTaskRunsWithFilters(t *testing.T) {
	s, pool := newStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "task_id", "group_name", "priority", "type", "payload",
		"execution_bounds", "execution_arguments", "status", "status_updated_at", "description",
	}).AddRow(int64(7), int64(21), "crawlers", "HIGH", "TIME_INTERVAL", []byte(nil),
		[]byte(nil), []byte(nil), "SUCCEED", time.Now(), "")

	pool.ExpectQuery("FROM task_runs").
		WithArgs("SUCCEED", 5).
		WillReturnRows(rows)

	runs, err := s.ListTaskRuns(context.Background(),
		[]store.Filter{store.EQ("status", "SUCCEED")},
		[]store.Order{{Field: "status_updated_at", Desc: true}}, 5, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(7), runs[0].ID)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestWindowQueriesAndPrune(t *testing.T) {
	s, pool := newStore(t)
	since := time.Date(2025, 6, 1, 9, 59, 0, 0, time.UTC)

	pool.ExpectQuery("SELECT COUNT").
		WithArgs([]string{"SUCCEED", "ERROR", "CANCELLED"}, since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))
	total, err := s.WindowRunTotal(context.Background(), domain.CompletedRunStatuses, since)
	require.NoError(t, err)
	assert.Equal(t, 42, total)

	pool.ExpectQuery("SELECT COUNT").
		WithArgs([]string{"WAITING"}).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	count, err := s.CountRunsWithStatus(context.Background(), domain.RunWaiting)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	pool.ExpectQuery("WITH ordered").
		WithArgs("QUEUED", since).
		WillReturnRows(pgxmock.NewRows([]string{"avg"}).AddRow(12.5))
	avg, err := s.AverageRunDurationInStatus(context.Background(), domain.RunQueued, since)
	require.NoError(t, err)
	assert.Equal(t, 12.5, avg)

	cutoff := since.Add(-24 * time.Hour)
	pool.ExpectExec("DELETE FROM task_run_status_logs").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 100))
	pool.ExpectExec("DELETE FROM task_status_logs").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	removed, err := s.PruneStatusLogs(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(105), removed)

	require.NoError(t, pool.ExpectationsWereMet())
}
