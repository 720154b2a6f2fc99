package main

import (
	"context"
	"io"
	"log"
	"time"

	"task-manager/api/server"
	"task-manager/config"
	"task-manager/events"
	"task-manager/logger"
	"task-manager/tasks/manager"
	"task-manager/tasks/persist"
	"task-manager/tasks/store"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Create logger
	lg := logger.New(cfg.LogLevel, nil)

	lg.Info("Starting task manager", map[string]any{
		"version":         cfg.Version,
		"port":            cfg.ServerPort,
		"log_level":       cfg.LogLevel,
		"storage_backend": cfg.StorageBackend,
		"persist_timeout": cfg.PersistTimeout.String(),
		"relay_enabled":   cfg.RelayEnabled(),
	})

	// Open the configured storage backend
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	storage, err := createStorageRegistry(cfg).Open(ctx, cfg.StorageBackend)
	cancel()
	if err != nil {
		log.Fatalf("storage unavailable: %v", err)
	}

	var closers []io.Closer
	bus := events.NewBus()

	// The relay subscribes before the manager exists so it sees the ready event
	if cfg.RelayEnabled() {
		queue, err := events.NewRedisQueue(cfg.RelayRedisURL, cfg.RelayQueue)
		if err != nil {
			log.Fatalf("event relay unavailable: %v", err)
		}
		relay := events.NewRelay(queue, lg)
		relay.Attach(bus)
		closers = append(closers, closerFunc(relay.Detach))
	}
	if c, ok := storage.(io.Closer); ok {
		closers = append(closers, c)
	}

	// Wire up business logic dependencies
	mgr := manager.New(storage, lg,
		manager.WithBus(bus),
		manager.WithDispatcher(persist.NewDispatcher(cfg.PersistTimeout, lg)),
	)

	// Create and start server
	srv := server.New(mgr, cfg, lg, closers...)
	if err := srv.Start(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// createStorageRegistry binds every backend name to a factory reading its
// settings from cfg. Only the selected backend is ever opened.
func createStorageRegistry(cfg *config.Config) *store.Registry {
	registry := store.NewRegistry()

	must := func(err error) {
		if err != nil {
			log.Fatalf("storage registry: %v", err)
		}
	}

	must(registry.Register(store.BackendMemory, func(context.Context) (store.Storage, error) {
		return store.NewMemoryStorage(), nil
	}))
	must(registry.Register(store.BackendRedis, func(context.Context) (store.Storage, error) {
		return store.NewRedisStorage(cfg.RedisURL, cfg.RedisKey)
	}))
	must(registry.Register(store.BackendSQLite, func(ctx context.Context) (store.Storage, error) {
		return store.OpenSQLite(ctx, cfg.SQLitePath)
	}))
	must(registry.Register(store.BackendMySQL, func(ctx context.Context) (store.Storage, error) {
		return store.OpenMySQL(ctx, cfg.MySQLDSN)
	}))
	must(registry.Register(store.BackendNeo4j, func(ctx context.Context) (store.Storage, error) {
		return store.OpenNeo4j(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	}))

	return registry
}
