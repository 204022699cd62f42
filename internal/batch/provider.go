// Package batch decides how many WAITING runs advance per dispatch tick.
// Providers are the backpressure mechanism of the scheduler: the adaptive
// variants shrink the batch when outcome signals degrade.
package batch

import (
	"context"

	"github.com/MatweyL/Potok/internal/domain"
)

// Provider returns the next batch of waiting runs, FIFO.
type Provider interface {
	NextBatch(ctx context.Context) ([]domain.TaskRun, error)
}

// WaitingLister fetches WAITING runs FIFO by status timestamp, then id.
type WaitingLister interface {
	ListWaitingRuns(ctx context.Context, limit int) ([]domain.TaskRun, error)
}

// SystemMetrics is the window snapshot the adaptive providers react to.
type SystemMetrics struct {
	QueueDepth    int     // runs currently queued on the broker
	QueueCapacity int     // configured queue capacity
	Throughput    float64 // completed runs per second over the window
	ErrorRate     float64 // returned share of window outcomes, [0,1]
	AvgLatency    float64 // average execution duration, seconds
	SuccessCount  int     // completed outcomes in the window
	ErrorCount    int     // returned outcomes in the window
}

// MetricSource supplies the current system metrics.
type MetricSource interface {
	SystemMetrics(ctx context.Context) (SystemMetrics, error)
}

// Constant always releases up to a fixed number of runs.
type Constant struct {
	runs WaitingLister
	size int
}

// NewConstant builds the constant-size provider.
func NewConstant(runs WaitingLister, size int) *Constant {
	return &Constant{runs: runs, size: size}
}

func (c *Constant) NextBatch(ctx context.Context) ([]domain.TaskRun, error) {
	return c.runs.ListWaitingRuns(ctx, c.size)
}
