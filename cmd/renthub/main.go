package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appoutbox "renthub/internal/app/outbox"
	"renthub/internal/app/policies"
	chatservice "renthub/internal/app/services/chat"
	"renthub/internal/infra/broker/kafka"
	"renthub/internal/infra/config"
	mongodb "renthub/internal/infra/db/mongo"
	"renthub/internal/infra/directory"
	ginserver "renthub/internal/infra/http/gin"
	"renthub/internal/infra/obs"
	outboxinfra "renthub/internal/infra/outbox"
	"renthub/internal/infra/storage/memory"
	"renthub/internal/infra/storage/scylla"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, cleanup, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		StorePing: app.ready,
	}, app.handlers)

	if app.worker != nil {
		go func() {
			if err := app.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	worker   *outboxinfra.Worker
	ready    func() error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	svc := &chatservice.Service{
		Encoder: appoutbox.JSONEventEncoder{},
		Logger:  logger,
	}
	app := application{ready: func() error { return nil }}

	switch cfg.StoreMode {
	case config.StoreMongo:
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("mongo connect: %w", err)
		}
		cleanups = append(cleanups, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(closeCtx); err != nil {
				logger.Warn("mongo disconnect failed", "error", err)
			}
		})
		store, err := mongodb.NewChatStore(client.DB)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("mongo chat store: %w", err)
		}
		idStore, err := mongodb.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("mongo idempotency store: %w", err)
		}
		outboxStore := outboxinfra.NewStore(client.DB)
		svc.Conversations = store
		svc.Messages = store
		svc.ReadState = store
		svc.Idempotency = idStore
		svc.Outbox = outboxStore
		app.ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		app.worker = newWorker(cfg, outboxStore, logger)

	case config.StoreScylla:
		session, err := scylla.NewSession(scylla.Options{
			Hosts:             cfg.ScyllaHosts,
			Keyspace:          cfg.ScyllaKeyspace,
			Username:          cfg.ScyllaUsername,
			Password:          cfg.ScyllaPassword,
			Consistency:       cfg.ScyllaConsistency,
			Timeout:           cfg.ScyllaTimeout,
			ReplicationFactor: cfg.ScyllaReplicationFactor,
		}, logger)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("scylla connect: %w", err)
		}
		cleanups = append(cleanups, session.Close)
		store := scylla.NewChatStore(session, logger)
		outboxQueue := memory.NewOutbox()
		svc.Conversations = store
		svc.Messages = store
		svc.ReadState = store
		svc.Idempotency = memory.NewIdempotencyStore()
		svc.Outbox = outboxQueue
		app.worker = newWorker(cfg, outboxQueue, logger)

	default:
		store := memory.NewChatStore()
		outboxQueue := memory.NewOutbox()
		svc.Conversations = store
		svc.Messages = store
		svc.ReadState = store
		svc.Idempotency = memory.NewIdempotencyStore()
		svc.Outbox = outboxQueue
		app.worker = newWorker(cfg, outboxQueue, logger)
	}

	dir, err := buildDirectory(cfg, logger)
	if err != nil {
		return application{}, cleanup, err
	}
	svc.Directory = dir

	app.handlers = ginserver.Handlers{
		Chat:               ginserver.ChatHandler{Service: svc, Logger: logger},
		IdentityMiddleware: ginserver.IdentityMiddleware{}.Handle,
	}

	if app.worker != nil {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("kafka producer: %w", err)
		}
		cleanups = append(cleanups, func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka close failed", "error", err)
			}
		})
		app.worker.Producer = producer
	}
	return app, cleanup, nil
}

// newWorker returns a drain worker when brokers are configured; without Kafka
// the outbox just accumulates and events stay local.
func newWorker(cfg config.Config, source outboxinfra.Source, logger *slog.Logger) *outboxinfra.Worker {
	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	return &outboxinfra.Worker{
		Source:      source,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
}

func buildDirectory(cfg config.Config, logger *slog.Logger) (policies.PropertyDirectory, error) {
	if cfg.DirectoryMode == config.DirectoryHTTP {
		return &directory.Client{
			HTTP:    &http.Client{Timeout: cfg.DirectoryTimeout},
			BaseURL: cfg.DirectoryURL,
		}, nil
	}
	dir := memory.NewPropertyDirectory()
	if cfg.PropertyFixtures != "" {
		count, err := loadPropertyFixtures(dir, cfg.PropertyFixtures)
		if err != nil {
			return nil, fmt.Errorf("property fixtures: %w", err)
		}
		logger.Info("property fixtures loaded", "path", cfg.PropertyFixtures, "count", count)
	}
	return dir, nil
}

func loadPropertyFixtures(dir *memory.PropertyDirectory, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var fixtures []struct {
		ID      string `json:"id"`
		OwnerID string `json:"owner_id"`
		Title   string `json:"title"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(raw, &fixtures); err != nil {
		return 0, err
	}
	for _, f := range fixtures {
		status := policies.PropertyStatus(f.Status)
		if status == "" {
			status = policies.PropertyAvailable
		}
		dir.Put(policies.Property{ID: f.ID, OwnerID: f.OwnerID, Title: f.Title, Status: status})
	}
	return len(fixtures), nil
}
