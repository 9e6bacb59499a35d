// Package config loads lazytree settings from YAML.
//
// File format (.lazytree/config.yaml):
//
//	repository:
//	  kind: file          # memory | file | sqlite
//	  path: tree.yaml     # fixture file or database, relative to the config dir
//	  latency_min: 600ms
//	  latency_max: 1s
//	  watch: true         # reload file fixtures on change (long-lived processes)
//	ids:
//	  strategy: sequence  # sequence | ulid | uuid
//	  prefix: node-
//	  start: 100
//	levels: [A, B, C, D, E, F, G, H]
//	load:
//	  max_concurrent: 4
//	  depth: 2
//	log:
//	  level: info
//	  development: false
//
// Missing sections keep their defaults.
//
// The watch setting matters to programs that keep a repository open, such as
// a library caller serving a session. The show and run commands exit after
// one pass, usually before any reload could happen.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/lazytree/pkg/ids"
	"github.com/vanderheijden86/lazytree/pkg/model"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Repository kinds.
const (
	KindMemory = "memory"
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// Config is the full settings file.
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	IDs        IDsConfig        `yaml:"ids"`
	Levels     []model.Level    `yaml:"levels"`
	Load       LoadConfig       `yaml:"load"`
	Log        LogConfig        `yaml:"log"`

	// dir is the directory the file was read from; relative paths resolve
	// against it.
	dir string
}

// RepositoryConfig selects where children come from.
type RepositoryConfig struct {
	Kind       string        `yaml:"kind"`
	Path       string        `yaml:"path"`
	LatencyMin time.Duration `yaml:"latency_min"`
	LatencyMax time.Duration `yaml:"latency_max"`
	// Watch reloads a file repository when the fixture changes on disk.
	Watch      bool          `yaml:"watch"`
}

// IDsConfig selects the generator for locally added nodes.
type IDsConfig struct {
	Strategy string `yaml:"strategy"`
	Prefix   string `yaml:"prefix"`
	Start    uint64 `yaml:"start"`
}

// LoadConfig bounds eager loading.
type LoadConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	Depth         int `yaml:"depth"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in settings: the in-memory demo tree with
// simulated latency and sequential node-N ids.
func Default() Config {
	return Config{
		Repository: RepositoryConfig{
			Kind:       KindMemory,
			LatencyMin: 600 * time.Millisecond,
			LatencyMax: time.Second,
		},
		IDs: IDsConfig{
			Strategy: ids.StrategySequence,
			Prefix:   ids.DefaultPrefix,
			Start:    ids.DefaultStart,
		},
		Levels: append([]model.Level(nil), model.DefaultLevels...),
		Load: LoadConfig{
			MaxConcurrent: 4,
			Depth:         1,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Write saves cfg as YAML at path, creating parent directories.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	switch c.Repository.Kind {
	case KindMemory:
	case KindFile, KindSQLite:
		if c.Repository.Path == "" {
			return fmt.Errorf("%w: repository.path is required for kind %q", ErrInvalidConfig, c.Repository.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown repository.kind %q", ErrInvalidConfig, c.Repository.Kind)
	}
	if c.Repository.LatencyMin < 0 || c.Repository.LatencyMax < 0 {
		return fmt.Errorf("%w: latency must not be negative", ErrInvalidConfig)
	}
	if c.Repository.LatencyMax != 0 && c.Repository.LatencyMax < c.Repository.LatencyMin {
		return fmt.Errorf("%w: latency_max %s is below latency_min %s",
			ErrInvalidConfig, c.Repository.LatencyMax, c.Repository.LatencyMin)
	}

	switch c.IDs.Strategy {
	case "", ids.StrategySequence, ids.StrategyULID, ids.StrategyUUID:
	default:
		return fmt.Errorf("%w: unknown ids.strategy %q", ErrInvalidConfig, c.IDs.Strategy)
	}

	seen := make(map[model.Level]bool, len(c.Levels))
	for _, l := range c.Levels {
		if !l.IsValid() {
			return fmt.Errorf("%w: empty level tag", ErrInvalidConfig)
		}
		if seen[l] {
			return fmt.Errorf("%w: duplicate level tag %q", ErrInvalidConfig, l)
		}
		seen[l] = true
	}

	if c.Load.MaxConcurrent < 1 {
		return fmt.Errorf("%w: load.max_concurrent must be at least 1", ErrInvalidConfig)
	}
	if c.Load.Depth < 0 {
		return fmt.Errorf("%w: load.depth must not be negative", ErrInvalidConfig)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}

// Dir returns the directory the config was loaded from, or "" for
// defaults.
func (c Config) Dir() string {
	return c.dir
}

// ResolvedPath returns repository.path with ~ expanded and relative paths
// joined to the config directory.
func (c Config) ResolvedPath() string {
	p := expandHome(c.Repository.Path)
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
