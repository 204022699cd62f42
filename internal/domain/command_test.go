package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandResponse(t *testing.T) {
	body := []byte(`{
		"command_response": {
			"command": {"type": "EXECUTE", "task_run": {"id": 42, "task_id": 7, "group_name": "crawlers", "status": "QUEUED", "status_updated_at": "2025-06-01T10:00:00Z"}},
			"status": "SUCCEED",
			"result": {"right_bound_at": "2025-06-01T10:00:00Z", "left_bound_at": "2025-05-01T10:00:00Z", "collected_data_amount": 120, "saved_data_amount": 120},
			"created_at": "2025-06-01T10:05:00Z"
		}
	}`)

	response, err := ParseCommandResponse(body)
	require.NoError(t, err)

	assert.Equal(t, int64(42), response.Command.TaskRun.ID)
	assert.Equal(t, RunSucceed, response.Status)
	require.NotNil(t, response.Result)
	assert.Equal(t, int64(120), *response.Result.CollectedDataAmount)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC), response.CreatedAt)
}

func TestParseCommandResponseMalformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `worker crashed`},
		{"empty envelope", `{}`},
		{"unknown status", `{"command_response": {"command": {"type": "EXECUTE", "task_run": {"id": 1}}, "status": "EXPLODED", "created_at": "2025-06-01T10:00:00Z"}}`},
		{"missing run id", `{"command_response": {"command": {"type": "EXECUTE", "task_run": {}}, "status": "SUCCEED", "created_at": "2025-06-01T10:00:00Z"}}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseCommandResponse([]byte(c.body))
			assert.Error(t, err)
		})
	}
}

func TestEncodeCommandWire(t *testing.T) {
	left := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	run := TaskRun{
		ID:        9,
		TaskID:    3,
		GroupName: "crawlers",
		Priority:  PriorityHigh,
		Type:      TypeTimeInterval,
		Payload:   &Payload{ID: 5, Data: map[string]any{"url": "https://example.com"}, Checksum: "abc"},
		ExecutionBounds: []ExecutionBounds{
			TimeInterval(&left, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		},
		Status:          RunQueued,
		StatusUpdatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	raw, err := EncodeCommand(ExecuteCommand(run))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "EXECUTE", decoded["type"])

	taskRun := decoded["task_run"].(map[string]any)
	assert.Equal(t, float64(9), taskRun["id"])
	assert.Equal(t, "QUEUED", taskRun["status"])

	bounds := taskRun["execution_bounds"].([]any)[0].(map[string]any)
	assert.Equal(t, "TIME_INTERVAL", bounds["type"])
	assert.Equal(t, "2025-06-01T00:00:00Z", bounds["right_bound_at"])
	assert.Equal(t, "2025-05-01T00:00:00Z", bounds["left_bound_at"])
}
