package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/lazytree/pkg/ids"
	"github.com/vanderheijden86/lazytree/pkg/model"
	"github.com/vanderheijden86/lazytree/pkg/repository"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, KindMemory, cfg.Repository.Kind)
	assert.Equal(t, 600*time.Millisecond, cfg.Repository.LatencyMin)
	assert.Equal(t, model.DefaultLevels, cfg.Levels)
	assert.Equal(t, ids.StrategySequence, cfg.IDs.Strategy)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
repository:
  kind: file
  path: tree.yaml
  latency_min: 10ms
  latency_max: 50ms
  watch: true
ids:
  strategy: ulid
  prefix: "n-"
load:
  max_concurrent: 8
log:
  level: debug
  development: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, KindFile, cfg.Repository.Kind)
	assert.Equal(t, 10*time.Millisecond, cfg.Repository.LatencyMin)
	assert.Equal(t, 50*time.Millisecond, cfg.Repository.LatencyMax)
	assert.True(t, cfg.Repository.Watch)
	assert.Equal(t, "ulid", cfg.IDs.Strategy)
	assert.Equal(t, "n-", cfg.IDs.Prefix)
	assert.Equal(t, uint64(ids.DefaultStart), cfg.IDs.Start, "unset keys keep defaults")
	assert.Equal(t, 8, cfg.Load.MaxConcurrent)
	assert.Equal(t, 1, cfg.Load.Depth)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "tree.yaml"), cfg.ResolvedPath())
}

func TestWrite_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), DirName, FileName)
	want := Default()
	want.Repository.Kind = KindSQLite
	want.Repository.Path = "/data/tree.db"
	require.NoError(t, Write(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want.Repository, got.Repository)
	assert.Equal(t, want.IDs, got.IDs)
	assert.Equal(t, want.Levels, got.Levels)
	assert.Equal(t, want.Load, got.Load)
	assert.Equal(t, want.Log, got.Log)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeConfig(t, t.TempDir(), "repository: [not, a, map]\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"UnknownKind", func(c *Config) { c.Repository.Kind = "redis" }},
		{"FileWithoutPath", func(c *Config) { c.Repository.Kind = KindFile }},
		{"SQLiteWithoutPath", func(c *Config) { c.Repository.Kind = KindSQLite }},
		{"NegativeLatency", func(c *Config) { c.Repository.LatencyMin = -time.Second }},
		{"InvertedLatency", func(c *Config) { c.Repository.LatencyMin, c.Repository.LatencyMax = time.Second, time.Millisecond }},
		{"UnknownStrategy", func(c *Config) { c.IDs.Strategy = "snowflake" }},
		{"EmptyLevel", func(c *Config) { c.Levels = []model.Level{"A", ""} }},
		{"DuplicateLevel", func(c *Config) { c.Levels = []model.Level{"A", "B", "A"} }},
		{"NoConcurrency", func(c *Config) { c.Load.MaxConcurrent = 0 }},
		{"NegativeDepth", func(c *Config) { c.Load.Depth = -1 }},
		{"UnknownLogLevel", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestResolvedPath(t *testing.T) {
	cfg := Default()
	cfg.Repository.Path = "/abs/tree.db"
	assert.Equal(t, "/abs/tree.db", cfg.ResolvedPath())

	cfg.Repository.Path = "rel.db"
	assert.Equal(t, "rel.db", cfg.ResolvedPath(), "defaults have no directory to resolve against")
}

func TestNewStore_Memory(t *testing.T) {
	cfg := Default()
	cfg.Repository.LatencyMin, cfg.Repository.LatencyMax = 0, 0

	store, closeFn, err := cfg.NewStore(context.Background(), nil)
	require.NoError(t, err)
	defer closeFn()

	assert.Equal(t, "node-1", store.RootID())
	require.NoError(t, store.Load(context.Background(), "node-1"))
	_, id := store.AddChild("node-1", "Local")
	assert.Equal(t, "node-101", id)
}

func TestNewStore_File(t *testing.T) {
	dir := t.TempDir()
	fixture := `{"root": {"id": "r", "name": "Root"}, "children": {"r": [{"id": "a", "name": "A", "isLoaded": true}]}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tree.json"), []byte(fixture), 0o644))
	path := writeConfig(t, dir, "repository:\n  kind: file\n  path: ../tree.json\n  latency_min: 0s\n  latency_max: 0s\n  watch: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	store, closeFn, err := cfg.NewStore(context.Background(), nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closeFn()) }()

	require.NoError(t, store.Load(context.Background(), "r"))
	a, ok := store.Find("a")
	require.True(t, ok)
	assert.Equal(t, model.Level("B"), a.Level, "missing levels are filled from depth")
}

func TestNewStore_SQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tree.db")
	db, err := repository.OpenSQLite(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, db.ImportFixture(ctx, &repository.Fixture{Root: repository.DemoRoot(), Children: repository.DemoData()}))
	require.NoError(t, db.Close())

	cfg := Default()
	cfg.Repository.Kind = KindSQLite
	cfg.Repository.Path = dbPath
	cfg.IDs.Strategy = ids.StrategyUUID
	require.NoError(t, cfg.Validate())

	store, closeFn, err := cfg.NewStore(ctx, nil)
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, store.LoadSubtree(ctx, store.RootID(), 1))
	assert.Equal(t, 7, store.Snapshot().Root.Count())
}

func TestNewStore_BadStrategy(t *testing.T) {
	cfg := Default()
	cfg.IDs.Strategy = "nope"
	_, closeFn, err := cfg.NewStore(context.Background(), nil)
	assert.ErrorIs(t, err, ids.ErrUnknownStrategy)
	assert.NotNil(t, closeFn)
}
