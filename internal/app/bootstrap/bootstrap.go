package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	accesscontrol "drydock/contexts/identity-access/access-control"
	eventsadapter "drydock/contexts/identity-access/access-control/adapters/events"
	"drydock/contexts/identity-access/access-control/adapters/memory"
	postgresadapter "drydock/contexts/identity-access/access-control/adapters/postgres"
	workerapp "drydock/contexts/identity-access/access-control/application/workers"
	"drydock/contexts/identity-access/access-control/ports"
	"drydock/internal/platform/config"
	"drydock/internal/platform/db"
	"drydock/internal/platform/httpserver"
	"drydock/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const policyChangedTopic = "access.policy_changed"

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	bus          *messaging.Kafka
	outboxRelay  workerapp.OutboxRelay
	consumer     workerapp.PolicyChangedConsumer
	relayEnabled bool
	consumeOn    bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := postgresadapter.Migrate(pg.DB); err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	visibility := memory.NewStore()
	module := accesscontrol.NewModule(accesscontrol.Dependencies{
		Repository:      repo,
		VisibilityCache: visibility,
		Clock:           postgresadapter.SystemClock{},
		IDGenerator:     postgresadapter.UUIDGenerator{},
		VisibilityTTL:   cfg.VisibilityCacheTTL,
		Logger:          logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := postgresadapter.Migrate(pg.DB); err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	visibility := memory.NewStore()

	// Without the consumer nothing subscribes to the bus topic, so the relay
	// falls back to the log-only publisher.
	var bus *messaging.Kafka
	var publisher ports.PolicyChangedPublisher = eventsadapter.NewPublisher(logger)
	if cfg.EnablePolicyConsumer {
		kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
		if err != nil {
			_ = pg.Close()
			return nil, err
		}
		bus = kafka
		publisher = eventsadapter.BusPublisher{
			Bus:   kafka,
			Topic: policyChangedTopic,
		}
	}

	return &WorkerApp{
		postgres: pg,
		bus:      bus,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: publisher,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		// The consumer invalidates this process's cache only; API processes
		// rely on the visibility TTL.
		consumer: workerapp.PolicyChangedConsumer{
			Dedup:           repo,
			VisibilityCache: visibility,
			Clock:           postgresadapter.SystemClock{},
			DedupTTL:        7 * 24 * time.Hour,
		},
		relayEnabled: cfg.EnableOutboxRelay,
		consumeOn:    cfg.EnablePolicyConsumer,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.consumeOn {
		err := w.bus.Subscribe(ctx, policyChangedTopic, "access-control-policy-cg", w.consumer.Handle)
		if err != nil {
			return err
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"relay_enabled", w.relayEnabled,
		"consumer_enabled", w.consumeOn,
	)

	for {
		if w.relayEnabled {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
