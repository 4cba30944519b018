// Command syncd runs the status synchronization hub: it wires the mapper,
// priority queue, conflict detector/resolver, fan-out hub, adapter facade,
// orchestrator, and sync monitor together and serves the fan-out hub's
// WebSocket endpoint until terminated.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/syncengine/internal/adapter"
	syncengineconfig "github.com/vitaliisemenov/syncengine/internal/config"
	"github.com/vitaliisemenov/syncengine/internal/conflict"
	"github.com/vitaliisemenov/syncengine/internal/domain"
	"github.com/vitaliisemenov/syncengine/internal/mapper"
	"github.com/vitaliisemenov/syncengine/internal/monitor"
	"github.com/vitaliisemenov/syncengine/internal/orchestrator"
	"github.com/vitaliisemenov/syncengine/internal/platform/logging"
	"github.com/vitaliisemenov/syncengine/internal/queue"
	"github.com/vitaliisemenov/syncengine/internal/realtime"
)

const metricsNamespace = "syncengine"

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "syncd",
		Short: "syncd runs the CI/CD status synchronization hub",
		RunE:  run,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := syncengineconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSizeMB:  cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.closeAdapters()

	svc.monitor.Start(ctx)
	svc.orchestrator.Start(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Realtime.Host, cfg.Realtime.Port),
		Handler: svc.hub,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("fan-out hub listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("fan-out hub failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := svc.orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", "error", err)
	}
	svc.monitor.Stop()

	logger.Info("syncd exited")
	return nil
}

// service bundles every component main needs to hold onto past build time,
// for shutdown and for the monitor's queue depth sampling.
type service struct {
	queue        *queue.Queue
	hub          *realtime.Hub
	orchestrator *orchestrator.Orchestrator
	monitor      *monitor.Monitor
	dbPool       *pgxpool.Pool
}

func (s *service) closeAdapters() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
}

func build(ctx context.Context, cfg *syncengineconfig.Config, logger *slog.Logger) (*service, error) {
	mapperMetrics := mapper.NewMetrics(metricsNamespace)
	m := mapper.New(mapperModeFor(cfg.Mapper.StrictMapping), cfg.Mapper.CacheSize, mapperMetrics)
	applyCustomMappings(m, cfg.Mapper, logger)

	queueMetrics := queue.NewMetrics(metricsNamespace)
	q := queue.New(queue.Config{
		MaxSizePerPriority: cfg.Queue.MaxQueueSize,
		BatchSize:          cfg.Global.BatchSize,
		DedupWindow:        cfg.Queue.DeduplicationWindow,
		MaxRetries:         cfg.Global.MaxRetries,
		DrainInterval:      cfg.Global.SyncInterval,
		SweepInterval:      time.Minute,
		DLQCapacity:        1000,
		SortBatchByAge:     cfg.Queue.EnableOrdering,
		EnableBatching:     cfg.Queue.EnableBatching,
	}, logger, queueMetrics)

	conflictMetrics := conflict.NewMetrics(metricsNamespace)
	conflictCfg := conflict.Config{
		ConflictWindow:      cfg.Conflict.ConflictWindow,
		MaxConflictHistory:  1000,
		EscalationThreshold: cfg.Conflict.EscalationThreshold,
		DefaultStrategy:     cfg.Conflict.DefaultStrategy,
		AutoResolve:         cfg.Conflict.AutoResolve,
		StrictValidation:    cfg.Conflict.StrictValidation,
		SystemPriorities:    systemPriorities(cfg.Conflict.SystemPriorities),
	}
	detector := conflict.NewDetector(conflictCfg, domain.NoDependencyChecker{}, conflict.DefaultBusinessRules(), conflictMetrics)
	resolver := conflict.NewResolver(conflictCfg, conflictMetrics)

	realtimeMetrics := realtime.NewMetrics(metricsNamespace)
	auth := realtime.AllowAllAuthenticator
	if cfg.Realtime.EnableAuth {
		if len(cfg.Realtime.AuthTokens) == 0 {
			logger.Warn("realtime.enable_auth is true but realtime.auth_tokens is empty, every connection will be rejected")
		}
		auth = realtime.StaticTokenAuthenticator(cfg.Realtime.AuthTokens)
	}
	hub := realtime.New(realtime.Config{
		MaxConnections:     cfg.Realtime.MaxConnections,
		AuthTimeout:        cfg.Realtime.AuthTimeout,
		HeartbeatInterval:  cfg.Realtime.HeartbeatInterval,
		HeartbeatGrace:     10 * time.Second,
		RateLimitPerSecond: float64(cfg.Realtime.RateLimit.MaxRequests) / (float64(cfg.Realtime.RateLimit.WindowMs) / 1000),
		RateLimitBurst:     cfg.Realtime.RateLimit.MaxRequests,
		WriteQueueSize:     256,
		ReadBufferSize:     1024,
		WriteBufferSize:    1024,
	}, auth, nil, logger, realtimeMetrics)

	adapters, dbPool, err := buildAdapters(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		q.UseDistributedDedup(redisClient)
		hub.UseDistributedRateLimit(redisClient)
		logger.Info("distributed dedup and rate limiting enabled", "redis_addr", cfg.Redis.Addr)
	}

	monMetrics := monitor.NewMetrics(metricsNamespace)
	mon := monitor.New(monitor.Config{
		SampleInterval: cfg.Monitor.SampleInterval,
		Thresholds: monitor.Thresholds{
			FailureRate:    cfg.Monitor.AlertThresholds.SyncFailureRate,
			AvgSyncSeconds: cfg.Monitor.AlertThresholds.AvgSyncTime,
			QueueSize:      cfg.Monitor.AlertThresholds.QueueSize,
			ConflictRate:   cfg.Monitor.AlertThresholds.ConflictRate,
			MemoryUsagePct: cfg.Monitor.AlertThresholds.MemoryUsage,
			CPUUsagePct:    cfg.Monitor.AlertThresholds.CPUUsage,
		},
	}, monitor.DefaultResourceSampler, q.Depth, logger, monMetrics)

	orchMetrics := orchestrator.NewMetrics(metricsNamespace)
	orch := orchestrator.New(orchestrator.Config{
		SyncInterval:     cfg.Global.SyncInterval,
		BatchSize:        cfg.Global.BatchSize,
		DispatchTimeout:  10 * time.Second,
		ShutdownGrace:    30 * time.Second,
		AutoResolve:      cfg.Conflict.AutoResolve,
		ConflictStrategy: cfg.Conflict.DefaultStrategy,
	}, m, q, detector, resolver, hub, adapters, mon, logger, orchMetrics)

	return &service{queue: q, hub: hub, orchestrator: orch, monitor: mon, dbPool: dbPool}, nil
}

func mapperModeFor(strict bool) mapper.Mode {
	if strict {
		return mapper.ModeStrict
	}
	return mapper.ModeLenient
}

func applyCustomMappings(m *mapper.Mapper, cfg syncengineconfig.MapperConfig, logger *slog.Logger) {
	if !cfg.EnableCustomMappings {
		return
	}
	for system, table := range cfg.DefaultMappings {
		for canonical, native := range table {
			_ = m.AddCustomMapping(domain.System(system), domain.CanonicalStatus(canonical), native)
		}
	}
	if cfg.MappingsFile != "" {
		if err := m.LoadMappingsFromFile(cfg.MappingsFile); err != nil {
			logger.Warn("failed to load custom mappings file", "path", cfg.MappingsFile, "error", err)
		}
	}
}

func systemPriorities(cfg map[string]int) map[domain.System]int {
	out := make(map[domain.System]int, len(cfg))
	for system, priority := range cfg {
		out[domain.System(system)] = priority
	}
	return out
}

// buildAdapters wires the relational adapter to a real pgx pool and the
// remaining three target systems to in-memory test doubles, matching
// SPEC_FULL.md §6: the relational store's row update is the one real
// persisted operation in scope, and tracker/vcs/agent implementations are
// explicitly out of scope.
func buildAdapters(ctx context.Context, cfg *syncengineconfig.Config, logger *slog.Logger) (map[domain.System]domain.Adapter, *pgxpool.Pool, error) {
	adapters := map[domain.System]domain.Adapter{
		domain.SystemTracker: adapter.NewInMemory(domain.SystemTracker),
		domain.SystemVCS:     adapter.NewInMemory(domain.SystemVCS),
		domain.SystemAgent:   adapter.NewInMemory(domain.SystemAgent),
	}

	if cfg.Database.DSN == "" {
		logger.Warn("database.dsn unset, relational system backed by an in-memory adapter")
		adapters[domain.SystemRelational] = adapter.NewInMemory(domain.SystemRelational)
		return adapters, nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MinConns = int32(cfg.Database.MinConnections)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	adapters[domain.SystemRelational] = adapter.NewRelational(pool)
	return adapters, pool, nil
}
