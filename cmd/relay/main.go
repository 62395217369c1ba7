package main

import (
	"ai-live-chat/clock"
	"ai-live-chat/connection"
	"ai-live-chat/contract"
	"ai-live-chat/domain"
	"ai-live-chat/lifecycle"
	"ai-live-chat/logging"
	"ai-live-chat/relay"
	"ai-live-chat/runtime/workers"
	"ai-live-chat/store/badgerstore"
	"ai-live-chat/store/memory"
	"ai-live-chat/store/redisstore"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run keeps every deferred close on the way out, main only reports.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logging.New(config.LogLevel, config.LogFile)

	// 2. Store backend
	backend, closeStore, err := openStore(config, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing store...", "backend", config.Store)
		if err := closeStore(); err != nil {
			log.Warn("Store close failed", "error", err)
		}
	}()

	// 3. Relay
	metrics := relay.NewMetrics()
	opts := relay.DefaultOptions()
	opts.Limits.WritesPerSecond = config.WritesPerSecond
	opts.Limits.Burst = config.WriteBurst
	opts.TrustProxy = config.TrustProxy
	hub := relay.NewHub(backend, log, metrics, opts)
	defer hub.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           relay.NewRouter(hub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 4. Supervision
	sup := workers.NewSupervisor(log).WithRestartDelay(config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(log, server),
		workers.NewProcessMonitorWorker(log, config.MonitorInterval, metrics.ProcessRSS, metrics.ProcessCPU),
	)
	if config.SweepInterval > 0 {
		cfg := lifecycle.DefaultConfig()
		cfg.TTL = config.MessageTTL
		manager := lifecycle.NewManager(backend, clock.NewSystem(), connection.NewStatus(log), log, cfg)
		sup.Add(workers.NewSweeperWorker(log, manager, config.SweepInterval, func(n int) {
			metrics.Swept.Add(float64(n))
		}))
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Relay starting", "addr", server.Addr, "store", config.Store)
	sup.Run(ctx)
	log.Info("Relay stopped")
	return nil
}

// openStore returns the configured backend and the function releasing it.
func openStore(config Config, log *slog.Logger) (contract.Store, func() error, error) {
	switch config.Store {
	case "memory":
		return memory.New(), func() error { return nil }, nil
	case "badger":
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		// Expired messages vanish from badger even if no sweeper runs.
		s := badgerstore.New(db, log, map[string]time.Duration{
			domain.MessagesCollection: config.MessageTTL,
		})
		return s, func() error {
			_ = s.Close()
			return db.Close()
		}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis unreachable at %s: %w", config.RedisAddr, err)
		}
		return redisstore.New(client, config.RedisPrefix, log), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", config.Store)
	}
}
