// Package domain holds the scheduler's core entities: tasks, task runs,
// payloads, monitoring algorithms, execution bounds, and the broker wire
// types. Everything else in the module depends on this package; it depends
// on nothing but the standard library.
package domain

import "time"

// Priority orders tasks within a group.
type Priority string

const (
	PriorityLowest  Priority = "LOWEST"
	PriorityLow     Priority = "LOW"
	PriorityMedium  Priority = "MEDIUM"
	PriorityHigh    Priority = "HIGH"
	PriorityHighest Priority = "HIGHEST"
)

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	TaskNew       TaskStatus = "NEW"
	TaskExecution TaskStatus = "EXECUTION"
	TaskSucceed   TaskStatus = "SUCCEED"
	TaskError     TaskStatus = "ERROR"
	TaskCancelled TaskStatus = "CANCELLED"
	TaskFinished  TaskStatus = "FINISHED"
)

// TaskRunStatus is the lifecycle status of a single run.
type TaskRunStatus string

const (
	RunWaiting     TaskRunStatus = "WAITING"
	RunQueued      TaskRunStatus = "QUEUED"
	RunExecution   TaskRunStatus = "EXECUTION"
	RunSucceed     TaskRunStatus = "SUCCEED"
	RunError       TaskRunStatus = "ERROR"
	RunCancelled   TaskRunStatus = "CANCELLED"
	RunTempError   TaskRunStatus = "TEMP_ERROR"
	RunInterrupted TaskRunStatus = "INTERRUPTED"
)

// Valid reports whether s is one of the known run statuses.
func (s TaskRunStatus) Valid() bool {
	switch s {
	case RunWaiting, RunQueued, RunExecution, RunSucceed, RunError,
		RunCancelled, RunTempError, RunInterrupted:
		return true
	}
	return false
}

// Terminal reports whether a run in status s will never be scheduled again.
func (s TaskRunStatus) Terminal() bool {
	switch s {
	case RunSucceed, RunError, RunCancelled:
		return true
	}
	return false
}

// CompletedRunStatuses are the statuses a run settles into when the worker
// answered definitively.
var CompletedRunStatuses = []TaskRunStatus{RunSucceed, RunError, RunCancelled}

// ReturnedRunStatuses are the statuses from which a run flows back to WAITING.
var ReturnedRunStatuses = []TaskRunStatus{RunInterrupted, RunTempError}

// TaskType selects the kind of work slice a task's runs cover.
type TaskType string

const (
	TypeUndefined    TaskType = "UNDEFINED"
	TypeTimeInterval TaskType = "TIME_INTERVAL"
	TypePagination   TaskType = "PAGINATION"
)

// CommandType distinguishes outbound worker commands.
type CommandType string

const (
	CommandExecute CommandType = "EXECUTE"
	CommandCancel  CommandType = "CANCEL"
)

// AlgorithmType distinguishes monitoring-algorithm variants.
type AlgorithmType string

const (
	AlgorithmPeriodic AlgorithmType = "PERIODIC"
	AlgorithmSingle   AlgorithmType = "SINGLE"
)

// StatusEntry pairs an entity with its current status and the moment the
// status was reached. Batch providers iterate these in FIFO order.
type StatusEntry struct {
	ID        int64
	Status    TaskRunStatus
	UpdatedAt time.Time
}
