package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type schedulerCfg struct {
	redisURL string
	queue    string
}

func (c schedulerCfg) GetRedisURL() string       { return c.redisURL }
func (c schedulerCfg) GetRedisTLSInsecure() bool { return false }
func (c schedulerCfg) GetAsynqQueueName() string { return c.queue }
func (c schedulerCfg) GetAsynqConcurrency() int  { return 1 }

func TestEnqueueReoptimize(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := schedulerCfg{redisURL: "redis://" + mr.Addr(), queue: "plans"}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	tenantID := uuid.New()
	dayPlanID := uuid.New()
	if err := client.EnqueueReoptimize(context.Background(), tenantID, dayPlanID); err != nil {
		t.Fatalf("EnqueueReoptimize returned error: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer func() {
		_ = inspector.Close()
	}()

	pending, err := inspector.ListPendingTasks("plans")
	if err != nil {
		t.Fatalf("ListPendingTasks returned error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending task, got %d", len(pending))
	}
	if pending[0].Type != TaskDayPlanReoptimize {
		t.Fatalf("expected task type %s, got %s", TaskDayPlanReoptimize, pending[0].Type)
	}

	var payload DayPlanReoptimizePayload
	if err := json.Unmarshal(pending[0].Payload, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.DayPlanID != dayPlanID.String() || payload.TenantID != tenantID.String() {
		t.Fatalf("payload mismatch: %+v", payload)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(schedulerCfg{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

func TestDayPlanReoptimizeTaskRoundTrip(t *testing.T) {
	in := DayPlanReoptimizePayload{DayPlanID: uuid.New().String(), TenantID: uuid.New().String()}
	task, err := NewDayPlanReoptimizeTask(in)
	if err != nil {
		t.Fatalf("NewDayPlanReoptimizeTask returned error: %v", err)
	}
	if task.Type() != TaskDayPlanReoptimize {
		t.Fatalf("unexpected task type %s", task.Type())
	}

	out, err := ParseDayPlanReoptimizePayload(task)
	if err != nil {
		t.Fatalf("ParseDayPlanReoptimizePayload returned error: %v", err)
	}
	if out != in {
		t.Fatalf("payload round trip mismatch: %+v != %+v", out, in)
	}
}
