package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/smallnest/agentgraph/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvOpenAIKey, EnvTavilyKey, EnvBraveKey, EnvLogLevel, EnvStoreDSN} {
		t.Setenv(key, "")
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "agentgraph.yaml", `
log_level: debug
store:
  backend: sqlite
  dsn: checkpoints.db
  table: lesson_checkpoints
model:
  name: gpt-4o
  temperature: 0.5
graph:
  recursion_limit: 40
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoreConfig{Backend: "sqlite", DSN: "checkpoints.db", Table: "lesson_checkpoints"}, cfg.Store)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.InDelta(t, 0.5, cfg.Model.Temperature, 1e-6)
	assert.Equal(t, 40, cfg.Graph.RecursionLimit)
	assert.Equal(t, 2, cfg.Search.MaxResults)
}

func TestLoadJSON(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "agentgraph.json", `{"store": {"backend": "redis", "dsn": "localhost:6379"}, "search": {"provider": "brave"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "brave", cfg.Search.Provider)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeFile(t, "config.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported config file extension")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	_, err = Load(writeFile(t, "bad.yaml", "store: [unclosed"))
	assert.ErrorContains(t, err, "parse yaml")

	_, err = Load(writeFile(t, "bad.json", "{"))
	assert.ErrorContains(t, err, "parse json")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "mongo" }, "Config.Store.Backend"},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }, "Config.Store.DSN"},
		{"bad table", func(c *Config) { c.Store.Table = "drop table;" }, "identifier"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "Config.LogLevel"},
		{"bad base url", func(c *Config) { c.Model.BaseURL = "not a url" }, "Config.Model.BaseURL"},
		{"zero recursion", func(c *Config) { c.Graph.RecursionLimit = 0 }, "Config.Graph.RecursionLimit"},
		{"too many results", func(c *Config) { c.Search.MaxResults = 50 }, "Config.Search.MaxResults"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvOpenAIKey: "sk-test",
		EnvTavilyKey: "tvly-test",
		EnvBraveKey:  "brave-test",
		EnvLogLevel:  "WARN",
		EnvStoreDSN:  "postgres://localhost/agentgraph",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "tvly-test", cfg.Search.TavilyAPIKey)
	assert.Equal(t, "brave-test", cfg.Search.BraveAPIKey)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "postgres://localhost/agentgraph", cfg.Store.DSN)
}

func TestLoadEnvFile(t *testing.T) {
	const key = "AGENTGRAPH_CONFIG_TEST_VALUE"
	path := writeFile(t, ".env", key+"=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv(key) })

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv(key))

	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "none"
	l, err := cfg.Logger()
	require.NoError(t, err)
	assert.NotNil(t, l)

	cfg.LogLevel = "loud"
	_, err = cfg.Logger()
	assert.Error(t, err)
}

func roundTrip(t *testing.T, s store.CheckpointStore) {
	t.Helper()
	ctx := context.Background()
	defer s.Close()

	id, err := s.Put(ctx, &store.Checkpoint{
		ThreadID: "t1",
		State:    json.RawMessage(`{"count":1}`),
		NextNode: "inc",
		Writer:   "START",
		Source:   store.SourceInput,
	})
	require.NoError(t, err)

	latest, err := s.Latest(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, "inc", latest.NextNode)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := OpenStore(ctx, StoreConfig{Backend: "memory"})
		require.NoError(t, err)
		roundTrip(t, s)
	})

	t.Run("file", func(t *testing.T) {
		s, err := OpenStore(ctx, StoreConfig{Backend: "file", DSN: t.TempDir()})
		require.NoError(t, err)
		roundTrip(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenStore(ctx, StoreConfig{Backend: "sqlite", DSN: filepath.Join(t.TempDir(), "cp.db"), Table: "lesson"})
		require.NoError(t, err)
		roundTrip(t, s)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, err := OpenStore(ctx, StoreConfig{Backend: "redis", DSN: "redis://" + mr.Addr() + "/0", Prefix: "test:", TTL: "1h"})
		require.NoError(t, err)
		roundTrip(t, s)
		assert.True(t, mr.Exists("test:thread:t1:seq"))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := OpenStore(ctx, StoreConfig{Backend: "mongo"})
		assert.ErrorContains(t, err, "unknown store backend")
	})

	t.Run("bad ttl", func(t *testing.T) {
		_, err := OpenStore(ctx, StoreConfig{Backend: "redis", DSN: "localhost:6379", TTL: "forever"})
		assert.ErrorContains(t, err, "parse redis ttl")
	})
}

func TestCollaborators(t *testing.T) {
	clearEnv(t)
	cfg := Default()

	_, err := cfg.ChatModel()
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
	cfg.Model.APIKey = "sk-test"
	m, err := cfg.ChatModel()
	require.NoError(t, err)
	assert.NotNil(t, m)

	_, err = cfg.Searcher()
	assert.ErrorContains(t, err, "TAVILY_API_KEY")
	cfg.Search.TavilyAPIKey = "tvly"
	s, err := cfg.Searcher()
	require.NoError(t, err)
	assert.Equal(t, "tavily_search_results_json", s.Name())

	cfg.Search = SearchConfig{Provider: "brave", BraveAPIKey: "b", MaxResults: 3}
	s, err = cfg.Searcher()
	require.NoError(t, err)
	assert.Equal(t, "Brave_Search", s.Name())
}
