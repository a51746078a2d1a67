package scheduler

import (
	"context"
	"fmt"

	"arealead_backend/platform/config"
	"arealead_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues the expiry sweep on the configured cron spec. It only
// enqueues; the worker does the releasing.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	spec := cfg.GetSweepCronSpec()
	if spec == "" {
		spec = "@every 1h"
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})

	task, err := NewLeadExpirySweepTask(LeadExpirySweepPayload{RequestedBy: "cron"})
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(spec, task, asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
