package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/shared/logging"
)

// Snapshot is one periodic view of the run population.
type Snapshot struct {
	Time                 time.Time `json:"time"`
	ExecutionCount       int       `json:"execution_count"`
	QueuedCount          int       `json:"queued_count"`
	WaitingCount         int       `json:"waiting_count"`
	QueuedAvgDuration    float64   `json:"queued_avg_duration"`
	ExecutionAvgDuration float64   `json:"execution_avg_duration"`
	ReturnFrequency      float64   `json:"return_frequency"`
	SucceedFrequency     float64   `json:"succeed_frequency"`
	CompletedCount       int       `json:"completed_count"`
	TotalCount           int       `json:"total_count"`
}

// Report is the JSON artifact written when a collection run finishes.
type Report struct {
	RunName    string     `json:"run_name"`
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Snapshots  []Snapshot `json:"snapshots"`
}

// Collector samples the run population every period and keeps the history
// for the shutdown report. Waiting covers runs the dispatcher still owes the
// broker: WAITING plus the returned statuses awaiting re-dispatch.
type Collector struct {
	queries StatusQuerier
	period  time.Duration
	gauges  *Gauges
	logger  logging.Logger

	runName   string
	runID     string
	startedAt time.Time
	now       func() time.Time

	mu      sync.Mutex
	history []Snapshot
}

// NewCollector builds a collector for one named run.
func NewCollector(queries StatusQuerier, period time.Duration, runName string, gauges *Gauges) *Collector {
	now := time.Now
	return &Collector{
		queries:   queries,
		period:    period,
		gauges:    gauges,
		logger:    logging.NewComponentLogger("MetricCollector"),
		runName:   runName,
		runID:     uuid.NewString(),
		startedAt: now(),
		now:       now,
	}
}

// Collect takes one snapshot, records it, and publishes the gauges.
func (c *Collector) Collect(ctx context.Context) (Snapshot, error) {
	at := c.now()
	since := at.Add(-c.period)

	snapshot := Snapshot{Time: at}
	var err error
	if snapshot.ExecutionCount, err = c.queries.CountRunsWithStatus(ctx, domain.RunExecution); err != nil {
		return Snapshot{}, fmt.Errorf("count execution runs: %w", err)
	}
	if snapshot.QueuedCount, err = c.queries.CountRunsWithStatus(ctx, domain.RunQueued); err != nil {
		return Snapshot{}, fmt.Errorf("count queued runs: %w", err)
	}
	waiting := append([]domain.TaskRunStatus{domain.RunWaiting}, domain.ReturnedRunStatuses...)
	if snapshot.WaitingCount, err = c.queries.CountRunsWithStatus(ctx, waiting...); err != nil {
		return Snapshot{}, fmt.Errorf("count waiting runs: %w", err)
	}
	if snapshot.CompletedCount, err = c.queries.CountRunsWithStatus(ctx, domain.CompletedRunStatuses...); err != nil {
		return Snapshot{}, fmt.Errorf("count completed runs: %w", err)
	}
	if snapshot.TotalCount, err = c.queries.CountRunsWithStatus(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("count runs: %w", err)
	}
	if snapshot.QueuedAvgDuration, err = c.queries.AverageRunDurationInStatus(ctx, domain.RunQueued, since); err != nil {
		return Snapshot{}, fmt.Errorf("queued avg duration: %w", err)
	}
	if snapshot.ExecutionAvgDuration, err = c.queries.AverageRunDurationInStatus(ctx, domain.RunExecution, since); err != nil {
		return Snapshot{}, fmt.Errorf("execution avg duration: %w", err)
	}

	seconds := c.period.Seconds()
	returned, err := c.queries.WindowRunTotal(ctx, domain.ReturnedRunStatuses, since)
	if err != nil {
		return Snapshot{}, fmt.Errorf("returned window total: %w", err)
	}
	succeeded, err := c.queries.WindowRunTotal(ctx, domain.CompletedRunStatuses, since)
	if err != nil {
		return Snapshot{}, fmt.Errorf("succeeded window total: %w", err)
	}
	snapshot.ReturnFrequency = float64(returned) / seconds
	snapshot.SucceedFrequency = float64(succeeded) / seconds

	c.mu.Lock()
	c.history = append(c.history, snapshot)
	c.mu.Unlock()
	c.gauges.Record(snapshot)
	c.logger.Debug("snapshot: %d queued, %d executing, %d waiting, %d/%d completed",
		snapshot.QueuedCount, snapshot.ExecutionCount, snapshot.WaitingCount, snapshot.CompletedCount, snapshot.TotalCount)
	return snapshot, nil
}

// History returns a copy of the recorded snapshots.
func (c *Collector) History() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := make([]Snapshot, len(c.history))
	copy(history, c.history)
	return history
}

// WriteReport saves the collected history as a JSON artifact under dir and
// returns the written path.
func (c *Collector) WriteReport(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	report := Report{
		RunName:    c.runName,
		RunID:      c.runID,
		StartedAt:  c.startedAt,
		FinishedAt: c.now(),
		Snapshots:  c.History(),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", c.runName, c.runID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	c.logger.Info("saved run report %s with %d snapshots", path, len(report.Snapshots))
	return path, nil
}
