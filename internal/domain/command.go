package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Command is the outbound message sent to workers.
type Command struct {
	Type    CommandType `json:"type"`
	TaskRun TaskRun     `json:"task_run"`
}

// ExecuteCommand wraps a run into an EXECUTE command.
func ExecuteCommand(run TaskRun) Command {
	return Command{Type: CommandExecute, TaskRun: run}
}

// EncodeCommand serializes a command for the broker. UTF-8 JSON.
func EncodeCommand(cmd Command) ([]byte, error) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return raw, nil
}

// CommandResponse is the worker's answer to a command: the echoed command,
// the resulting run status, and optionally the collected-progress result.
type CommandResponse struct {
	Command     Command                       `json:"command"`
	Status      TaskRunStatus                 `json:"status"`
	Description string                        `json:"description,omitempty"`
	Result      *TimeIntervalExecutionResults `json:"result,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
}

type commandResponseEnvelope struct {
	CommandResponse *CommandResponse `json:"command_response"`
}

// ParseCommandResponse decodes a worker response body. The body must carry
// the command_response envelope, a known status, and the run id it refers to.
func ParseCommandResponse(body []byte) (CommandResponse, error) {
	var envelope commandResponseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return CommandResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if envelope.CommandResponse == nil {
		return CommandResponse{}, fmt.Errorf("decode response: missing command_response envelope")
	}
	response := *envelope.CommandResponse
	if !response.Status.Valid() {
		return CommandResponse{}, fmt.Errorf("decode response: unknown status %q", response.Status)
	}
	if response.Command.TaskRun.ID == 0 {
		return CommandResponse{}, fmt.Errorf("decode response: missing task run id")
	}
	return response, nil
}
