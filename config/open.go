package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/store/file"
	"github.com/smallnest/agentgraph/store/memory"
	"github.com/smallnest/agentgraph/store/postgres"
	"github.com/smallnest/agentgraph/store/redis"
	"github.com/smallnest/agentgraph/store/sqlite"
	"github.com/smallnest/agentgraph/tool"
)

// OpenStore builds the configured checkpoint backend. The caller closes it.
func OpenStore(ctx context.Context, c StoreConfig) (store.CheckpointStore, error) {
	switch c.Backend {
	case "", "memory":
		return memory.NewMemoryCheckpointStore(), nil
	case "file":
		s, err := file.NewFileCheckpointStore(c.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.NewSqliteCheckpointStore(sqlite.SqliteOptions{Path: c.DSN, TableName: c.Table})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.NewPostgresCheckpointStore(ctx, postgres.PostgresOptions{ConnString: c.DSN, TableName: c.Table})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		opts, err := redisOptions(c)
		if err != nil {
			return nil, err
		}
		return redis.NewRedisCheckpointStore(opts), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Backend)
	}
}

func redisOptions(c StoreConfig) (redis.RedisOptions, error) {
	opts := redis.RedisOptions{Addr: c.DSN, Prefix: c.Prefix}
	if strings.HasPrefix(c.DSN, "redis://") || strings.HasPrefix(c.DSN, "rediss://") {
		u, err := goredis.ParseURL(c.DSN)
		if err != nil {
			return opts, fmt.Errorf("parse redis url: %w", err)
		}
		opts.Addr, opts.Password, opts.DB = u.Addr, u.Password, u.DB
	}
	if c.TTL != "" {
		ttl, err := time.ParseDuration(c.TTL)
		if err != nil {
			return opts, fmt.Errorf("parse redis ttl: %w", err)
		}
		opts.TTL = ttl
	}
	return opts, nil
}

// ChatModel builds the configured model.
func (c *Config) ChatModel() (llms.ChatModel, error) {
	switch c.Model.Provider {
	case "", "openai":
		opts := []llms.OpenAIOption{llms.WithTemperature(c.Model.Temperature)}
		if c.Model.APIKey != "" {
			opts = append(opts, llms.WithAPIKey(c.Model.APIKey))
		}
		if c.Model.BaseURL != "" {
			opts = append(opts, llms.WithBaseURL(c.Model.BaseURL))
		}
		if c.Model.Name != "" {
			opts = append(opts, llms.WithModel(c.Model.Name))
		}
		m, err := llms.NewOpenAIModel(opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
}

// Searcher builds the configured search tool.
func (c *Config) Searcher() (tool.SearchTool, error) {
	switch c.Search.Provider {
	case "", "tavily":
		var opts []tool.TavilyOption
		if c.Search.MaxResults > 0 {
			opts = append(opts, tool.WithTavilyMaxResults(c.Search.MaxResults))
		}
		t, err := tool.NewTavilySearch(c.Search.TavilyAPIKey, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "brave":
		var opts []tool.BraveOption
		if c.Search.MaxResults > 0 {
			opts = append(opts, tool.WithBraveCount(c.Search.MaxResults))
		}
		b, err := tool.NewBraveSearch(c.Search.BraveAPIKey, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", c.Search.Provider)
	}
}
