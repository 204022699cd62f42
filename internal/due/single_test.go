package due

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/store/postgres"
)

var loaded = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func atSec(seconds int) time.Time {
	return loaded.Add(time.Duration(seconds) * time.Second)
}

func noNoise(float64) float64 { return 0 }

func TestIntervalsLayout(t *testing.T) {
	intervals := Intervals(loaded, []float64{100, 200}, noNoise, 0)
	require.Len(t, intervals, 3)

	assert.Equal(t, loaded, intervals[0].Left)
	assert.Equal(t, atSec(100), *intervals[0].Right)
	assert.Equal(t, atSec(100), intervals[1].Left)
	assert.Equal(t, atSec(300), *intervals[1].Right)
	assert.Equal(t, atSec(300), intervals[2].Left)
	assert.Nil(t, intervals[2].Right)
}

func TestIntervalsEmptyTimeouts(t *testing.T) {
	intervals := Intervals(loaded, nil, noNoise, 0)
	require.Len(t, intervals, 1)
	assert.Equal(t, loaded, intervals[0].Left)
	assert.Nil(t, intervals[0].Right)
}

func TestIntervalBoundsAreLeftInclusiveRightExclusive(t *testing.T) {
	intervals := Intervals(loaded, []float64{100}, noNoise, 0)
	assert.True(t, intervals[0].Contains(loaded))
	assert.False(t, intervals[0].Contains(atSec(100)))
	assert.True(t, intervals[1].Contains(atSec(100)))
}

func TestTaskDueAt(t *testing.T) {
	algorithm := domain.Single([]float64{100, 200}, 0)

	cases := []struct {
		name      string
		status    domain.TaskStatus
		updatedAt time.Time
		now       time.Time
		due       bool
	}{
		{"new in first interval", domain.TaskNew, loaded, atSec(50), true},
		{"succeeded before interval start", domain.TaskSucceed, atSec(60), atSec(150), true},
		{"succeeded inside interval", domain.TaskSucceed, atSec(120), atSec(150), false},
		{"succeeded exactly at interval start", domain.TaskSucceed, atSec(100), atSec(150), false},
		{"execution never due", domain.TaskExecution, atSec(50), atSec(150), false},
		{"new in open-ended interval", domain.TaskNew, loaded, atSec(1000), true},
		{"before loading", domain.TaskNew, loaded, loaded.Add(-time.Second), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			task := domain.Task{ID: 1, Status: c.status, StatusUpdatedAt: c.updatedAt, LoadedAt: loaded}
			assert.Equal(t, c.due, taskDueAt(task, algorithm, c.now, noNoise))
		})
	}
}

type fakeSingleLister struct {
	pairs []postgres.TaskWithAlgorithm
}

func (f fakeSingleLister) ListTasksWithSingleAlgorithm(context.Context) ([]postgres.TaskWithAlgorithm, error) {
	return f.pairs, nil
}

func TestSingleProviderFiltersDueTasks(t *testing.T) {
	algorithm := domain.Single([]float64{100}, 0)
	lister := fakeSingleLister{pairs: []postgres.TaskWithAlgorithm{
		{Task: domain.Task{ID: 1, Status: domain.TaskNew, LoadedAt: loaded}, Algorithm: algorithm},
		{Task: domain.Task{ID: 2, Status: domain.TaskSucceed, StatusUpdatedAt: atSec(10), LoadedAt: loaded}, Algorithm: algorithm},
		{Task: domain.Task{ID: 3, Status: domain.TaskError, LoadedAt: loaded}, Algorithm: algorithm},
	}}

	provider := NewSingleProvider(lister, func() time.Time { return atSec(50) }, noNoise)
	due, err := provider.DueTasks(context.Background())
	require.NoError(t, err)

	ids := make([]int64, 0, len(due))
	for _, task := range due {
		ids = append(ids, task.ID)
	}
	// task 2 succeeded inside the current interval, task 3 is terminal
	assert.Equal(t, []int64{1}, ids)
}

type fakeProvider struct {
	name  string
	tasks []domain.Task
	err   error
}

func (f fakeProvider) Name() string { return f.name }
func (f fakeProvider) DueTasks(context.Context) ([]domain.Task, error) {
	return f.tasks, f.err
}

func TestRegistryConcatenatesProviders(t *testing.T) {
	registry := NewRegistry(
		fakeProvider{name: "a", tasks: []domain.Task{{ID: 1}, {ID: 2}}},
		fakeProvider{name: "b", tasks: []domain.Task{{ID: 3}}},
	)

	tasks, err := registry.DueTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestRegistryPropagatesFailure(t *testing.T) {
	registry := NewRegistry(
		fakeProvider{name: "a", tasks: []domain.Task{{ID: 1}}},
		fakeProvider{name: "b", err: assert.AnError},
	)

	_, err := registry.DueTasks(context.Background())
	assert.Error(t, err)
}
