// Package config defines service configuration and its layered loading.
package config

import "time"

// EngineConfig configures the chess engine workers.
type EngineConfig struct {
	// Path is the explicit engine binary path. Empty means resolution falls
	// through to STOCKFISH_PATH and well-known install locations.
	Path string `koanf:"path"`

	// Depth is the search depth for move evaluation.
	Depth int `koanf:"depth"`

	// SkillLevel caps engine strength, 0-20. Lower levels reduce the
	// effective search depth so analysis strength is reproducible.
	SkillLevel int `koanf:"skill_level"`

	// MoveTimeMS is the per-move evaluation budget in milliseconds.
	MoveTimeMS int `koanf:"move_time_ms"`

	// Threads is the engine thread count per worker instance.
	Threads int `koanf:"threads"`

	// HashMB is the engine hash table size per worker instance.
	HashMB int `koanf:"hash_mb"`
}

// MoveTime returns the per-move budget as a duration.
func (e EngineConfig) MoveTime() time.Duration {
	return time.Duration(e.MoveTimeMS) * time.Millisecond
}

// SchedulerConfig configures the analysis job scheduler.
type SchedulerConfig struct {
	// Workers is the fixed worker pool size; each worker owns one engine.
	Workers int `koanf:"workers"`

	// BatchCap limits how many games a single batch request may target.
	BatchCap int `koanf:"batch_cap"`

	// EngineRetries bounds reconnect attempts when an engine is unavailable.
	EngineRetries int `koanf:"engine_retries"`

	// RetryBackoffMS is the initial backoff between engine retries; it
	// doubles per attempt.
	RetryBackoffMS int `koanf:"retry_backoff_ms"`
}

// RetryBackoff returns the initial retry backoff as a duration.
func (s SchedulerConfig) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffMS) * time.Millisecond
}

// CacheConfig configures the validated result cache.
type CacheConfig struct {
	// TTLSeconds is the default entry lifetime.
	TTLSeconds int `koanf:"ttl_seconds"`

	// MaxEntries bounds the cache; oldest entries are evicted first.
	MaxEntries int `koanf:"max_entries"`
}

// TTL returns the entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ProgressConfig configures the progress tracker.
type ProgressConfig struct {
	// GraceSeconds keeps completed entries visible to late pollers.
	GraceSeconds int `koanf:"grace_seconds"`
}

// Grace returns the retention grace period as a duration.
func (p ProgressConfig) Grace() time.Duration {
	return time.Duration(p.GraceSeconds) * time.Second
}

// ClassifyConfig holds the move-quality band thresholds (lower delta bound
// of each band, centipawns). Bands must be strictly ascending.
type ClassifyConfig struct {
	Good       int `koanf:"good"`
	Inaccuracy int `koanf:"inaccuracy"`
	Mistake    int `koanf:"mistake"`
	Blunder    int `koanf:"blunder"`
}

// StoreConfig selects and configures the game store backend.
type StoreConfig struct {
	// Backend is "postgres" or "memory".
	Backend string `koanf:"backend"`

	// DSN is the Postgres connection string when Backend is "postgres".
	DSN string `koanf:"dsn"`

	// ArchiveDir, when set, appends finished analyses to a zstd-compressed
	// JSON log in this directory.
	ArchiveDir string `koanf:"archive_dir"`
}

// Config contains process configuration.
type Config struct {
	LogLevel string `koanf:"log_level"`
	Addr     string `koanf:"addr"`

	Engine    EngineConfig    `koanf:"engine"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Cache     CacheConfig     `koanf:"cache"`
	Progress  ProgressConfig  `koanf:"progress"`
	Classify  ClassifyConfig  `koanf:"classify"`
	Store     StoreConfig     `koanf:"store"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Addr:     ":8019",
		Engine: EngineConfig{
			Depth:      16,
			SkillLevel: 20,
			MoveTimeMS: 4000,
			Threads:    2,
			HashMB:     128,
		},
		Scheduler: SchedulerConfig{
			Workers:        2,
			BatchCap:       50,
			EngineRetries:  3,
			RetryBackoffMS: 2000,
		},
		Cache: CacheConfig{
			TTLSeconds: 600,
			MaxEntries: 4096,
		},
		Progress: ProgressConfig{
			GraceSeconds: 300,
		},
		Classify: ClassifyConfig{
			Good:       20,
			Inaccuracy: 50,
			Mistake:    100,
			Blunder:    300,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
	}
}
