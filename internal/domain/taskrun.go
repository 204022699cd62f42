package domain

import "time"

// TaskRun is one concrete attempt to execute a task over one work slice.
// Payload and bounds are snapshotted at materialization so the outbound
// command is self-contained.
type TaskRun struct {
	ID                 int64             `json:"id"`
	TaskID             int64             `json:"task_id"`
	GroupName          string            `json:"group_name"`
	Priority           Priority          `json:"priority"`
	Type               TaskType          `json:"type"`
	Payload            *Payload          `json:"payload,omitempty"`
	ExecutionBounds    []ExecutionBounds `json:"execution_bounds,omitempty"`
	ExecutionArguments map[string]any    `json:"execution_arguments,omitempty"`
	Status             TaskRunStatus     `json:"status"`
	StatusUpdatedAt    time.Time         `json:"status_updated_at"`
	Description        string            `json:"description,omitempty"`
}

// TaskRunStatusLog is one append-only record of a run status transition.
// Primary key is (TaskRunID, StatusUpdatedAt).
type TaskRunStatusLog struct {
	TaskRunID       int64         `json:"task_run_id"`
	Status          TaskRunStatus `json:"status"`
	StatusUpdatedAt time.Time     `json:"status_updated_at"`
	Description     string        `json:"description,omitempty"`
}
