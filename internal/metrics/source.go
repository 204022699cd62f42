// Package metrics turns the run status logs into the window snapshots the
// adaptive batch providers react to, and into periodic collector reports.
package metrics

import (
	"context"
	"time"

	"github.com/MatweyL/Potok/internal/batch"
	"github.com/MatweyL/Potok/internal/domain"
)

// StatusQuerier is the status-log query surface the metric providers read.
// Both the postgres store and the in-memory store satisfy it.
type StatusQuerier interface {
	CountRunsWithStatus(ctx context.Context, statuses ...domain.TaskRunStatus) (int, error)
	WindowRunTotal(ctx context.Context, statuses []domain.TaskRunStatus, since time.Time) (int, error)
	AverageRunDurationInStatus(ctx context.Context, target domain.TaskRunStatus, since time.Time) (float64, error)
}

// RunMetrics derives batch.SystemMetrics from the status logs over a sliding
// window.
type RunMetrics struct {
	queries       StatusQuerier
	window        time.Duration
	queueCapacity int
	now           func() time.Time
}

// NewRunMetrics builds the metric source. queueCapacity is the configured
// broker queue capacity used for utilization.
func NewRunMetrics(queries StatusQuerier, window time.Duration, queueCapacity int) *RunMetrics {
	return &RunMetrics{
		queries:       queries,
		window:        window,
		queueCapacity: queueCapacity,
		now:           time.Now,
	}
}

func (r *RunMetrics) SystemMetrics(ctx context.Context) (batch.SystemMetrics, error) {
	since := r.now().Add(-r.window)

	succeeded, err := r.queries.WindowRunTotal(ctx, domain.CompletedRunStatuses, since)
	if err != nil {
		return batch.SystemMetrics{}, err
	}
	returned, err := r.queries.WindowRunTotal(ctx, domain.ReturnedRunStatuses, since)
	if err != nil {
		return batch.SystemMetrics{}, err
	}
	queued, err := r.queries.CountRunsWithStatus(ctx, domain.RunQueued)
	if err != nil {
		return batch.SystemMetrics{}, err
	}
	latency, err := r.queries.AverageRunDurationInStatus(ctx, domain.RunExecution, since)
	if err != nil {
		return batch.SystemMetrics{}, err
	}

	errorRate := 0.0
	if total := succeeded + returned; total > 0 {
		errorRate = float64(returned) / float64(total)
	}
	return batch.SystemMetrics{
		QueueDepth:    queued,
		QueueCapacity: r.queueCapacity,
		Throughput:    float64(succeeded) / r.window.Seconds(),
		ErrorRate:     errorRate,
		AvgLatency:    latency,
		SuccessCount:  succeeded,
		ErrorCount:    returned,
	}, nil
}
