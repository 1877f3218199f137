package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashback_backend/internal/adapters/storage"
	"cashback_backend/internal/claims"
	"cashback_backend/internal/claims/classifier"
	"cashback_backend/internal/claims/registry"
	"cashback_backend/internal/claims/repository"
	"cashback_backend/internal/conversation/debounce"
	"cashback_backend/internal/conversation/orchestrator"
	"cashback_backend/internal/conversation/quiettimer"
	"cashback_backend/internal/events"
	apphttp "cashback_backend/internal/http"
	"cashback_backend/internal/http/router"
	"cashback_backend/internal/notification"
	"cashback_backend/internal/scheduler"
	"cashback_backend/internal/whatsapp"
	"cashback_backend/platform/ai/moonshot"
	"cashback_backend/platform/config"
	"cashback_backend/platform/db"
	"cashback_backend/platform/kv"
	"cashback_backend/platform/logger"
	"cashback_backend/platform/validator"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var checks readiness

	claimRepo, pinger, closeDB := initClaimStore(ctx, cfg, log)
	defer closeDB()
	checks = checks.with(pinger)

	batchStore, pinger, closeRedis := initBatchStore(ctx, cfg, log)
	defer closeRedis()
	checks = checks.with(pinger)

	mediaStore := initMediaStore(ctx, cfg, log)

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	whatsappClient := whatsapp.NewClient(cfg, log)

	notifier, closeNotifier := initNotifier(cfg, whatsappClient, log)
	defer closeNotifier()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	claimRegistry := registry.New(claimRepo, eventBus, cfg, log)
	claimsModule := claims.NewModule(claimRegistry, val, log)

	prompts, err := notification.DefaultCatalog()
	if err != nil {
		log.Error("failed to load prompt catalog", "error", err)
		panic("failed to load prompt catalog: " + err.Error())
	}
	notificationModule := notification.New(notifier, claimRegistry, prompts, log)
	notificationModule.SetOperatorIdentity(cfg.GetWhatsAppOperatorIdentity())
	notificationModule.RegisterHandlers(eventBus)

	timers := quiettimer.New()
	buffer := debounce.New(batchStore, timers, debounce.Settings{
		QuietPeriod:        cfg.GetQuietPeriod(),
		ImmediateThreshold: cfg.GetImmediateThreshold(),
		AccumulationTTL:    cfg.GetAccumulationTTL(),
	}, log, debounce.WithBaseContext(ctx))

	conversation := orchestrator.New(
		claimRegistry,
		claimsModule.Resolver(),
		buffer,
		initClassifier(cfg, mediaStore, log),
		notificationModule,
		eventBus,
		log,
	)

	var mediaSource whatsapp.MediaSource
	if whatsappClient != nil {
		mediaSource = whatsappClient
	}
	receiver := whatsapp.NewReceiver(conversation, mediaSource, mediaStore, log)
	whatsappModule := whatsapp.NewModule(receiver, val, cfg.GetWhatsAppWebhookSecret())

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   checks,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			whatsappModule,
			claimsModule,
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		timers.Stop()
		if drainErr := conversation.Drain(shutdownCtx); drainErr != nil {
			log.Error("failed to drain conversation buffers", "error", drainErr)
		}
		eventBus.Wait()
		return err
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	log.Info("server stopped")
}

// initClaimStore connects to Postgres when configured. Without a database URL
// claims live in memory and are lost on restart.
func initClaimStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.Repository, apphttp.HealthChecker, func()) {
	if cfg.GetDatabaseURL() == "" {
		log.Warn("DATABASE_URL not configured; claims are kept in memory")
		return repository.NewMemory(), nil, func() {}
	}

	pool, err := connectWithRetry(ctx, log, "database connection", func() (*dbPool, error) {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &dbPool{p}, nil
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool.Pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	return repository.NewPostgres(pool.Pool), pool, pool.Close
}

// initBatchStore keeps debounce batches in Redis so they survive a restart.
func initBatchStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (kv.Store, apphttp.HealthChecker, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; message batches are kept in memory")
		return kv.NewMemoryStore(), nil, func() {}
	}

	rdb, err := connectWithRetry(ctx, log, "redis connection", func() (*redisClient, error) {
		c, err := kv.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &redisClient{c}, nil
	})
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	log.Info("redis connection established")

	return kv.NewRedisStore(rdb.Client, "cashback:"), rdb, func() { _ = rdb.Close() }
}

func initMediaStore(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.MediaStore {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; chat media is kept in memory")
		return storage.NewMemoryStore(cfg.GetMinIOMaxFileSize())
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	if err := withRetry(ctx, log, "ensure chat media bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinioBucketChatMedia())
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "chatMediaBucket", cfg.GetMinioBucketChatMedia())
	return storageSvc
}

func initClassifier(cfg *config.Config, media storage.MediaStore, log *logger.Logger) classifier.Classifier {
	if cfg.GetMoonshotAPIKey() == "" {
		log.Warn("MOONSHOT_API_KEY not configured; evidence is left for manual review")
		return classifier.ManualReview
	}

	llm := moonshot.NewModel(moonshot.Config{
		APIKey:  cfg.GetMoonshotAPIKey(),
		BaseURL: cfg.GetMoonshotBaseURL(),
		Model:   cfg.GetClassifierModel(),
		Timeout: cfg.GetClassifierTimeout(),
	})
	log.Info("evidence classifier initialized", "model", llm.Name())
	return classifier.NewLLM(llm, media, cfg.GetClassifierTimeout(), log)
}

// initNotifier queues outbound messages through asynq when Redis is available
// and falls back to sending inline.
func initNotifier(cfg *config.Config, client *whatsapp.Client, log *logger.Logger) (notification.Notifier, func()) {
	direct := notification.NotifierFunc(func(ctx context.Context, identity, text string) error {
		if client == nil {
			log.WithIdentity(identity).Info("whatsapp not configured; outbound message dropped", "length", len(text))
			return nil
		}
		return client.Notify(ctx, identity, text)
	})

	if cfg.GetRedisURL() == "" {
		return direct, func() {}
	}

	queue, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize outbound queue; sending inline", "error", err)
		return direct, func() {}
	}
	log.Info("outbound messages are queued", "queue", cfg.GetAsynqQueueName())
	return queue, func() { _ = queue.Close() }
}

// connectWithRetry runs connect under withRetry and returns its result.
func connectWithRetry[T any](ctx context.Context, log *logger.Logger, name string, connect func() (T, error)) (T, error) {
	var result T
	err := withRetry(ctx, log, name, 5, 2*time.Second, func() error {
		r, err := connect()
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
