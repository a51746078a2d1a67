package scheduler

import (
	"context"
	"fmt"

	"arealead_backend/platform/config"
	"arealead_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Sweeper is the slice of the lead module the worker drives.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	sweeper Sweeper
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper Sweeper, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		sweeper: sweeper,
		log:     log,
	}

	mux.HandleFunc(TaskLeadExpirySweep, w.handleLeadExpirySweep)

	return w, nil
}

func (w *Worker) handleLeadExpirySweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadExpirySweepPayload(task)
	if err != nil {
		return err
	}

	released, err := w.sweeper.Sweep(ctx)
	if err != nil {
		// Retryable store failures come back through asynq's retry policy.
		return err
	}

	w.log.Info("scheduled expiry sweep done", "released", released, "requestedBy", payload.RequestedBy)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
