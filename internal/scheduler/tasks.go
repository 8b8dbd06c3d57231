// Package scheduler runs background tasks over asynq with Redis transport.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskDayPlanReoptimize recomputes a day plan route after a stop completes.
const TaskDayPlanReoptimize = "dayplans.reoptimize"

// DayPlanReoptimizePayload identifies the plan to re-optimize.
type DayPlanReoptimizePayload struct {
	DayPlanID string `json:"dayPlanId"`
	TenantID  string `json:"tenantId"`
}

// NewDayPlanReoptimizeTask builds the asynq task for a re-optimization run.
func NewDayPlanReoptimizeTask(payload DayPlanReoptimizePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDayPlanReoptimize, data), nil
}

// ParseDayPlanReoptimizePayload decodes the task payload.
func ParseDayPlanReoptimizePayload(task *asynq.Task) (DayPlanReoptimizePayload, error) {
	var payload DayPlanReoptimizePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DayPlanReoptimizePayload{}, err
	}
	return payload, nil
}
