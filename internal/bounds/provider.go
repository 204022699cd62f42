// Package bounds computes the work slices each task run must cover.
package bounds

import (
	"context"
	"time"

	"github.com/MatweyL/Potok/internal/domain"
)

// ProgressReader returns, per task, the progress row with the maximum right
// bound.
type ProgressReader interface {
	LatestProgress(ctx context.Context, taskIDs []int64) (map[int64]domain.TimeIntervalTaskProgress, error)
}

// TimeIntervalProvider slices TIME_INTERVAL tasks.
//
// A task with no recorded progress gets two slices, live monitoring first so
// its run is dispatched first under a batch limit: (now-firstInterval, now)
// and the backfill (defaultLeft, now-firstInterval). A task with progress
// gets one slice reopening from the latest right bound, regardless of
// whether that slice completed.
type TimeIntervalProvider struct {
	progress      ProgressReader
	now           func() time.Time
	defaultLeft   time.Time
	firstInterval time.Duration
}

// NewTimeIntervalProvider builds the provider. A nil clock defaults to
// time.Now.
func NewTimeIntervalProvider(progress ProgressReader, now func() time.Time, defaultLeft time.Time, firstInterval time.Duration) *TimeIntervalProvider {
	if now == nil {
		now = time.Now
	}
	return &TimeIntervalProvider{
		progress:      progress,
		now:           now,
		defaultLeft:   defaultLeft,
		firstInterval: firstInterval,
	}
}

// ProvideBatch returns the ordered bounds per task id. Tasks of unsupported
// types are absent from the result.
func (p *TimeIntervalProvider) ProvideBatch(ctx context.Context, tasks []domain.Task) (map[int64][]domain.ExecutionBounds, error) {
	var timeIntervalIDs []int64
	for _, task := range tasks {
		if task.Type == domain.TypeTimeInterval {
			timeIntervalIDs = append(timeIntervalIDs, task.ID)
		}
	}
	if len(timeIntervalIDs) == 0 {
		return nil, nil
	}

	progress, err := p.progress.LatestProgress(ctx, timeIntervalIDs)
	if err != nil {
		return nil, err
	}

	now := p.now()
	result := make(map[int64][]domain.ExecutionBounds, len(timeIntervalIDs))
	for _, id := range timeIntervalIDs {
		if latest, ok := progress[id]; ok {
			left := latest.RightBoundAt
			result[id] = []domain.ExecutionBounds{domain.TimeInterval(&left, now)}
			continue
		}
		liveLeft := now.Add(-p.firstInterval)
		backfillLeft := p.defaultLeft
		result[id] = []domain.ExecutionBounds{
			domain.TimeInterval(&liveLeft, now),
			domain.TimeInterval(&backfillLeft, liveLeft),
		}
	}
	return result, nil
}
