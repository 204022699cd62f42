package due

import (
	"context"
	"math/rand"
	"time"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/store/postgres"
)

// SingleTaskLister is the store query behind the single-run provider.
type SingleTaskLister interface {
	ListTasksWithSingleAlgorithm(ctx context.Context) ([]postgres.TaskWithAlgorithm, error)
}

// SingleProvider schedules tasks with SINGLE algorithms. A task runs
// len(timeouts)+1 times over its lifetime: execution intervals are laid out
// cumulatively from loaded_at, the last one open-ended, and the task is due
// when the current instant falls inside an interval the task has not yet
// succeeded in.
type SingleProvider struct {
	tasks SingleTaskLister
	now   func() time.Time
	noise func(limit float64) float64
}

// NewSingleProvider builds the provider. A nil clock defaults to time.Now; a
// nil noise source defaults to uniform(-limit, +limit).
func NewSingleProvider(tasks SingleTaskLister, now func() time.Time, noise func(limit float64) float64) *SingleProvider {
	if now == nil {
		now = time.Now
	}
	if noise == nil {
		noise = uniformNoise
	}
	return &SingleProvider{tasks: tasks, now: now, noise: noise}
}

func (p *SingleProvider) Name() string { return "single" }

func (p *SingleProvider) DueTasks(ctx context.Context) ([]domain.Task, error) {
	pairs, err := p.tasks.ListTasksWithSingleAlgorithm(ctx)
	if err != nil {
		return nil, err
	}
	now := p.now()
	var due []domain.Task
	for _, pair := range pairs {
		if taskDueAt(pair.Task, pair.Algorithm, now, p.noise) {
			due = append(due, pair.Task)
		}
	}
	return due, nil
}

// Interval is one execution window of a SINGLE algorithm. A nil Right means
// the interval never closes.
type Interval struct {
	Left  time.Time
	Right *time.Time
}

// Contains reports whether t falls in the interval: left-inclusive,
// right-exclusive.
func (i Interval) Contains(t time.Time) bool {
	if t.Before(i.Left) {
		return false
	}
	return i.Right == nil || t.Before(*i.Right)
}

// Intervals lays out the execution windows of a SINGLE algorithm starting at
// loadedAt. Empty timeouts produce a single open-ended window.
func Intervals(loadedAt time.Time, timeouts []float64, noise func(limit float64) float64, noiseLimit float64) []Interval {
	boundaries := make([]time.Time, 0, len(timeouts)+1)
	boundaries = append(boundaries, loadedAt)
	cursor := loadedAt
	for _, timeout := range timeouts {
		cursor = cursor.Add(seconds(timeout + noise(noiseLimit)))
		boundaries = append(boundaries, cursor)
	}

	intervals := make([]Interval, len(boundaries))
	for i := range boundaries {
		interval := Interval{Left: boundaries[i]}
		if i+1 < len(boundaries) {
			right := boundaries[i+1]
			interval.Right = &right
		}
		intervals[i] = interval
	}
	return intervals
}

func taskDueAt(task domain.Task, algorithm domain.MonitoringAlgorithm, now time.Time, noise func(limit float64) float64) bool {
	for _, interval := range Intervals(task.LoadedAt, algorithm.Timeouts, noise, algorithm.TimeoutNoise) {
		if !interval.Contains(now) {
			continue
		}
		switch task.Status {
		case domain.TaskNew:
			return true
		case domain.TaskSucceed:
			return task.StatusUpdatedAt.Before(interval.Left)
		}
		return false
	}
	return false
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func uniformNoise(limit float64) float64 {
	if limit == 0 {
		return 0
	}
	return (rand.Float64()*2 - 1) * limit
}
