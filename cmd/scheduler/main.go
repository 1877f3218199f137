package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cashback_backend/internal/scheduler"
	"cashback_backend/internal/whatsapp"
	"cashback_backend/platform/config"
	"cashback_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := whatsapp.NewClient(cfg, log)
	if client == nil {
		log.Error("WHATSAPP_URL not configured; nothing to deliver to")
		panic("whatsapp gateway not configured")
	}

	worker, err := scheduler.NewWorker(cfg, client, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("scheduler stopped")
}
