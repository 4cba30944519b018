// Package config loads and validates the syncd binary's configuration from
// defaults, a YAML file, and environment variables, in that increasing
// order of precedence, mirroring the teacher's viper-based
// internal/config.Config layout.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// Config is the root configuration for the syncd binary, covering every
// recognized option in spec.md §6.
type Config struct {
	Global   GlobalConfig   `mapstructure:"global"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Conflict ConflictConfig `mapstructure:"conflict"`
	Mapper   MapperConfig   `mapstructure:"mapper"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// GlobalConfig holds the options shared across the orchestrator and queue.
type GlobalConfig struct {
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

// QueueConfig holds C2's configuration.
type QueueConfig struct {
	MaxQueueSize        int           `mapstructure:"max_queue_size"`
	PriorityLevels      int           `mapstructure:"priority_levels"`
	DeduplicationWindow time.Duration `mapstructure:"deduplication_window"`
	EnableBatching      bool          `mapstructure:"enable_batching"`
	EnableOrdering      bool          `mapstructure:"enable_ordering"`
}

// ConflictConfig holds C3's configuration.
type ConflictConfig struct {
	DefaultStrategy     string         `mapstructure:"default_strategy"`
	AutoResolve         bool           `mapstructure:"auto_resolve"`
	EscalationThreshold int            `mapstructure:"escalation_threshold"`
	ConflictWindow      time.Duration  `mapstructure:"conflict_window"`
	SystemPriorities    map[string]int `mapstructure:"system_priorities"`
	StrictValidation    bool           `mapstructure:"strict_validation"`
}

// MapperConfig holds C1's configuration.
type MapperConfig struct {
	EnableBidirectionalMapping bool                         `mapstructure:"enable_bidirectional_mapping"`
	EnableCustomMappings       bool                         `mapstructure:"enable_custom_mappings"`
	StrictMapping              bool                         `mapstructure:"strict_mapping"`
	DefaultMappings            map[string]map[string]string `mapstructure:"default_mappings"`
	EntityTypeMappings         map[string]string            `mapstructure:"entity_type_mappings"`
	PriorityMappings           map[string]int               `mapstructure:"priority_mappings"`
	CacheSize                  int                           `mapstructure:"cache_size"`
	MappingsFile               string                        `mapstructure:"mappings_file"`
}

// RealtimeConfig holds C4's configuration.
type RealtimeConfig struct {
	Port              int           `mapstructure:"port"`
	Host              string        `mapstructure:"host"`
	MaxConnections    int           `mapstructure:"max_connections"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	EnableAuth        bool          `mapstructure:"enable_auth"`
	AuthTokens        []string      `mapstructure:"auth_tokens"`
	AuthTimeout       time.Duration `mapstructure:"auth_timeout"`
	RateLimit         RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig holds the fan-out hub's per-connection rate limit.
type RateLimitConfig struct {
	WindowMs    int `mapstructure:"window_ms"`
	MaxRequests int `mapstructure:"max_requests"`
}

// MonitorConfig holds C7's configuration.
type MonitorConfig struct {
	SampleInterval  time.Duration         `mapstructure:"sample_interval"`
	AlertThresholds AlertThresholdsConfig `mapstructure:"alert_thresholds"`
}

// AlertThresholdsConfig mirrors spec.md §6's alertThresholds.* options.
type AlertThresholdsConfig struct {
	SyncFailureRate float64 `mapstructure:"sync_failure_rate"`
	AvgSyncTime     float64 `mapstructure:"avg_sync_time"`
	QueueSize       int     `mapstructure:"queue_size"`
	ConflictRate    float64 `mapstructure:"conflict_rate"`
	MemoryUsage     float64 `mapstructure:"memory_usage"`
	CPUUsage        float64 `mapstructure:"cpu_usage"`
}

// DatabaseConfig configures the pgx-backed relational store adapter, the
// one explicitly-in-scope persisted operation (SPEC_FULL.md §6).
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// RedisConfig configures the optional distributed backing store for the
// queue's dedup window and the hub's rate-limit counters. Addr empty means
// both fall back to their in-memory implementations.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig configures the slog-based logging pipeline.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configuration from the defaults below, configPath (if
// non-empty and present), and environment variables (prefixed SYNCD_,
// nested keys joined with underscores), in increasing precedence, then
// validates the result.
func Load(configPath string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("syncd")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("global.sync_interval", "100ms")
	viper.SetDefault("global.batch_size", 50)
	viper.SetDefault("global.max_retries", 3)
	viper.SetDefault("global.retry_delay", "500ms")

	viper.SetDefault("queue.max_queue_size", 10000)
	viper.SetDefault("queue.priority_levels", 4)
	viper.SetDefault("queue.deduplication_window", "30s")
	viper.SetDefault("queue.enable_batching", true)
	viper.SetDefault("queue.enable_ordering", true)

	viper.SetDefault("conflict.default_strategy", "priority_based")
	viper.SetDefault("conflict.auto_resolve", true)
	viper.SetDefault("conflict.escalation_threshold", 5)
	viper.SetDefault("conflict.conflict_window", "30s")
	viper.SetDefault("conflict.system_priorities", map[string]int{
		string(domain.SystemRelational): 0,
		string(domain.SystemTracker):    1,
		string(domain.SystemVCS):        2,
		string(domain.SystemAgent):      3,
	})
	viper.SetDefault("conflict.strict_validation", false)

	viper.SetDefault("mapper.enable_bidirectional_mapping", true)
	viper.SetDefault("mapper.enable_custom_mappings", true)
	viper.SetDefault("mapper.strict_mapping", false)
	viper.SetDefault("mapper.cache_size", 4096)
	viper.SetDefault("mapper.mappings_file", "")

	viper.SetDefault("realtime.port", 8085)
	viper.SetDefault("realtime.host", "0.0.0.0")
	viper.SetDefault("realtime.max_connections", 10000)
	viper.SetDefault("realtime.connection_timeout", "30s")
	viper.SetDefault("realtime.heartbeat_interval", "30s")
	viper.SetDefault("realtime.max_message_size", 65536)
	viper.SetDefault("realtime.enable_auth", true)
	viper.SetDefault("realtime.auth_tokens", []string{})
	viper.SetDefault("realtime.auth_timeout", "5s")
	viper.SetDefault("realtime.rate_limit.window_ms", 1000)
	viper.SetDefault("realtime.rate_limit.max_requests", 20)

	viper.SetDefault("monitor.sample_interval", "10s")
	viper.SetDefault("monitor.alert_thresholds.sync_failure_rate", 0.1)
	viper.SetDefault("monitor.alert_thresholds.avg_sync_time", 2.0)
	viper.SetDefault("monitor.alert_thresholds.queue_size", 5000)
	viper.SetDefault("monitor.alert_thresholds.conflict_rate", 0.2)
	viper.SetDefault("monitor.alert_thresholds.memory_usage", 85.0)
	viper.SetDefault("monitor.alert_thresholds.cpu_usage", 85.0)

	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("database.min_connections", 1)
	viper.SetDefault("database.connect_timeout", "10s")
	viper.SetDefault("database.query_timeout", "5s")
	viper.SetDefault("database.max_conn_lifetime", "1h")

	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
}

// Validate checks cross-field invariants that mapstructure tags alone can't
// express.
func (c *Config) Validate() error {
	if c.Global.BatchSize <= 0 {
		return fmt.Errorf("global.batch_size must be positive")
	}
	if c.Global.MaxRetries < 0 {
		return fmt.Errorf("global.max_retries must not be negative")
	}
	if c.Queue.MaxQueueSize <= 0 {
		return fmt.Errorf("queue.max_queue_size must be positive")
	}
	if c.Queue.PriorityLevels <= 0 {
		return fmt.Errorf("queue.priority_levels must be positive")
	}
	if !validConflictStrategy(c.Conflict.DefaultStrategy) {
		return fmt.Errorf("conflict.default_strategy %q is not a recognized strategy", c.Conflict.DefaultStrategy)
	}
	if c.Conflict.EscalationThreshold <= 0 {
		return fmt.Errorf("conflict.escalation_threshold must be positive")
	}
	if c.Realtime.Port <= 0 || c.Realtime.Port > 65535 {
		return fmt.Errorf("realtime.port %d is out of range", c.Realtime.Port)
	}
	if c.Realtime.MaxConnections <= 0 {
		return fmt.Errorf("realtime.max_connections must be positive")
	}
	if c.Realtime.RateLimit.MaxRequests <= 0 || c.Realtime.RateLimit.WindowMs <= 0 {
		return fmt.Errorf("realtime.rate_limit.{window_ms,max_requests} must be positive")
	}
	if c.Monitor.AlertThresholds.QueueSize <= 0 {
		return fmt.Errorf("monitor.alert_thresholds.queue_size must be positive")
	}
	return nil
}

func validConflictStrategy(s string) bool {
	switch s {
	case "priority_based", "timestamp_based", "manual", "merge":
		return true
	default:
		return false
	}
}
