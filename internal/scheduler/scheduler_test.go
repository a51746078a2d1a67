package scheduler

import (
	"context"
	"testing"
	"time"

	"arealead_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string      { return c.redisURL }
func (c testSchedulerConfig) GetAsynqQueueName() string { return "test" }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }
func (c testSchedulerConfig) GetSweepCronSpec() string  { return "@every 1h" }

type countingSweeper struct {
	calls    int
	released int
	err      error
}

func (s *countingSweeper) Sweep(context.Context) (int, error) {
	s.calls++
	return s.released, s.err
}

func newRedis(t *testing.T) (*miniredis.Miniredis, testSchedulerConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, testSchedulerConfig{redisURL: "redis://" + mr.Addr()}
}

func TestSweepTaskPayloadRoundTrip(t *testing.T) {
	requested := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	task, err := NewLeadExpirySweepTask(LeadExpirySweepPayload{
		RequestedBy: "cron",
		RequestedAt: requested,
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if task.Type() != TaskLeadExpirySweep {
		t.Fatalf("unexpected task type %q", task.Type())
	}

	payload, err := ParseLeadExpirySweepPayload(task)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.RequestedBy != "cron" || !payload.RequestedAt.Equal(requested) {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestEnqueueSweepDeduplicates(t *testing.T) {
	_, cfg := newRedis(t)

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	if err := client.EnqueueSweep(context.Background(), "startup"); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	// Duplicate while the first is still pending is silently absorbed.
	if err := client.EnqueueSweep(context.Background(), "startup"); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}

	opt, err := redisClientOpt(cfg.GetRedisURL())
	if err != nil {
		t.Fatalf("redis opt: %v", err)
	}
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	pending, err := inspector.ListPendingTasks("test")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending sweep, got %d", len(pending))
	}
	if pending[0].Type != TaskLeadExpirySweep {
		t.Fatalf("unexpected task type %q", pending[0].Type)
	}
}

func TestWorkerHandlerRunsSweep(t *testing.T) {
	_, cfg := newRedis(t)

	sweeper := &countingSweeper{released: 3}
	worker, err := NewWorker(cfg, sweeper, logger.New("development"))
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	task, err := NewLeadExpirySweepTask(LeadExpirySweepPayload{RequestedBy: "test"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	if err := worker.handleLeadExpirySweep(context.Background(), task); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep call, got %d", sweeper.calls)
	}
}
