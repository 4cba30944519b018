package orchestrator

import "time"

// Config configures an Orchestrator.
type Config struct {
	// SyncInterval is how often the queue's drain loop ticks, effectively the
	// periodic sweep cadence described in spec.md §4.6.
	SyncInterval time.Duration
	// BatchSize bounds how many events one drain tick processes.
	BatchSize int
	// DispatchTimeout bounds a single target adapter call.
	DispatchTimeout time.Duration
	// ShutdownGrace bounds how long Shutdown waits for in-flight
	// synchronize() calls to finish before returning anyway.
	ShutdownGrace time.Duration
	// AutoResolve mirrors conflict.Config.AutoResolve at the orchestrator
	// boundary: when false, any detected conflict fails the sync outright
	// instead of invoking the resolver.
	AutoResolve bool
	// ConflictStrategy names the resolver strategy to invoke; empty uses the
	// resolver's configured default.
	ConflictStrategy string
}

// DefaultConfig returns sane defaults for an Orchestrator.
func DefaultConfig() Config {
	return Config{
		SyncInterval:    100 * time.Millisecond,
		BatchSize:       50,
		DispatchTimeout: 10 * time.Second,
		ShutdownGrace:   5 * time.Second,
		AutoResolve:     true,
	}
}
