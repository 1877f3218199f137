package scheduler

import (
	"context"
	"errors"
	"fmt"

	"cashback_backend/platform/config"
	"cashback_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Sender performs the actual delivery of a queued message.
type Sender interface {
	Notify(ctx context.Context, identity string, text string) error
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	sender Sender
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sender Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	if sender == nil {
		return nil, fmt.Errorf("outbound sender not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		sender: sender,
		log:    log,
	}
	w.mux.HandleFunc(TaskSendChatMessage, w.handleSendChatMessage)

	return w, nil
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

func (w *Worker) handleSendChatMessage(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSendChatMessagePayload(task)
	if err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskSendChatMessage, err, asynq.SkipRetry)
	}
	if payload.Identity == "" || payload.Text == "" {
		return fmt.Errorf("empty %s payload: %w", TaskSendChatMessage, asynq.SkipRetry)
	}

	if err := w.sender.Notify(ctx, payload.Identity, payload.Text); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		w.log.Warn("chat message delivery failed", "identity", payload.Identity, "error", err)
		return err
	}
	return nil
}
