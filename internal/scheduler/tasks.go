package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskLeadExpirySweep = "leads.expiry.sweep"

// LeadExpirySweepPayload records who asked for the sweep. The sweep itself
// takes no parameters; the window lives in config.
type LeadExpirySweepPayload struct {
	RequestedBy string    `json:"requestedBy"`
	RequestedAt time.Time `json:"requestedAt"`
}

func NewLeadExpirySweepTask(payload LeadExpirySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadExpirySweep, data), nil
}

func ParseLeadExpirySweepPayload(task *asynq.Task) (LeadExpirySweepPayload, error) {
	var payload LeadExpirySweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadExpirySweepPayload{}, err
	}
	return payload, nil
}
