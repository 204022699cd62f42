package domain

import "time"

// BoundsType distinguishes execution-bounds variants.
type BoundsType string

const (
	BoundsTimeInterval BoundsType = "TIME_INTERVAL"
)

// ExecutionBounds is the work slice assigned to one run. Tagged variant:
// TIME_INTERVAL bounds carry a right edge and an optional left edge.
type ExecutionBounds struct {
	Type         BoundsType `json:"type"`
	RightBoundAt time.Time  `json:"right_bound_at"`
	LeftBoundAt  *time.Time `json:"left_bound_at,omitempty"`
}

// TimeInterval builds TIME_INTERVAL bounds. A nil left edge means unbounded
// on the left.
func TimeInterval(left *time.Time, right time.Time) ExecutionBounds {
	return ExecutionBounds{Type: BoundsTimeInterval, RightBoundAt: right, LeftBoundAt: left}
}

// TimeIntervalTaskProgress records how far a TIME_INTERVAL task has been
// collected. Primary key is (TaskID, RightBoundAt). Written by the response
// ingestor, read by the bounds provider to decide the next slice.
type TimeIntervalTaskProgress struct {
	TaskID              int64      `json:"task_id"`
	RightBoundAt        time.Time  `json:"right_bound_at"`
	LeftBoundAt         *time.Time `json:"left_bound_at,omitempty"`
	CollectedDataAmount *int64     `json:"collected_data_amount,omitempty"`
	SavedDataAmount     *int64     `json:"saved_data_amount,omitempty"`
}

// TimeIntervalExecutionResults is the result section a worker reports for a
// TIME_INTERVAL run.
type TimeIntervalExecutionResults struct {
	RightBoundAt        time.Time  `json:"right_bound_at"`
	LeftBoundAt         *time.Time `json:"left_bound_at,omitempty"`
	CollectedDataAmount *int64     `json:"collected_data_amount,omitempty"`
	SavedDataAmount     *int64     `json:"saved_data_amount,omitempty"`
}
