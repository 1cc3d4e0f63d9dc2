package ghost

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskNudgeDue fires when an explicitly scheduled nudge reaches its due time.
const TaskNudgeDue = "ghost.nudge.due"

// NudgeDuePayload carries the nudge identity through the queue.
type NudgeDuePayload struct {
	NudgeID  string `json:"nudgeId"`
	TenantID string `json:"tenantId"`
}

// NewNudgeDueTask builds the asynq task for a due nudge.
func NewNudgeDueTask(payload NudgeDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNudgeDue, data), nil
}

// ParseNudgeDuePayload decodes the task payload.
func ParseNudgeDuePayload(task *asynq.Task) (NudgeDuePayload, error) {
	var payload NudgeDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NudgeDuePayload{}, err
	}
	return payload, nil
}
