package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSummaryRefresh = "conversations.summary.refresh"

type SummaryRefreshPayload struct {
	LeadID   string `json:"leadId"`
	TenantID string `json:"tenantId"`
}

func NewSummaryRefreshTask(payload SummaryRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryRefresh, data), nil
}

func ParseSummaryRefreshPayload(task *asynq.Task) (SummaryRefreshPayload, error) {
	var payload SummaryRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SummaryRefreshPayload{}, err
	}
	return payload, nil
}
