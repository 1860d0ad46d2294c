package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CHESSMIRROR_CONFIG is set
//  3. env (prefix CHESSMIRROR_, "__" nests: CHESSMIRROR_ENGINE__DEPTH)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("CHESSMIRROR_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	envProvider := env.Provider("CHESSMIRROR_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "chessmirror_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.Scheduler.Workers < 1 {
		return errors.New("scheduler.workers must be at least 1")
	}
	if c.Scheduler.BatchCap < 1 {
		return errors.New("scheduler.batch_cap must be at least 1")
	}
	if c.Engine.Depth < 1 {
		return errors.New("engine.depth must be at least 1")
	}
	if c.Engine.SkillLevel < 0 || c.Engine.SkillLevel > 20 {
		return errors.New("engine.skill_level must be within 0..20")
	}
	if c.Engine.MoveTimeMS < 1 {
		return errors.New("engine.move_time_ms must be positive")
	}
	b := c.Classify
	if !(0 < b.Good && b.Good < b.Inaccuracy && b.Inaccuracy < b.Mistake && b.Mistake < b.Blunder) {
		return errors.New("classify bands must be strictly ascending and positive")
	}
	switch c.Store.Backend {
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("store.dsn required for postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}
