package domain

import "time"

// TaskConfiguration is the user-supplied part of a task, shared by every
// task created in one intake request.
type TaskConfiguration struct {
	GroupName             string         `json:"group_name"`
	Priority              Priority       `json:"priority"`
	Type                  TaskType       `json:"type"`
	MonitoringAlgorithmID int64          `json:"monitoring_algorithm_id"`
	ExecutionArguments    map[string]any `json:"execution_arguments,omitempty"`
}

// Task is a recurring monitoring specification. Mutated only by the run
// materializer after intake; never deleted.
type Task struct {
	ID                    int64          `json:"id"`
	GroupName             string         `json:"group_name"`
	Priority              Priority       `json:"priority"`
	Type                  TaskType       `json:"type"`
	MonitoringAlgorithmID int64          `json:"monitoring_algorithm_id"`
	ExecutionArguments    map[string]any `json:"execution_arguments,omitempty"`
	PayloadID             int64          `json:"payload_id"`
	Status                TaskStatus     `json:"status"`
	StatusUpdatedAt       time.Time      `json:"status_updated_at"`
	LoadedAt              time.Time      `json:"loaded_at"`
}

// TaskStatusLog is one append-only record of a task status transition.
// Primary key is (TaskID, StatusUpdatedAt).
type TaskStatusLog struct {
	TaskID          int64      `json:"task_id"`
	Status          TaskStatus `json:"status"`
	StatusUpdatedAt time.Time  `json:"status_updated_at"`
	Description     string     `json:"description,omitempty"`
}
