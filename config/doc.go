// Package config loads agentgraph settings from YAML or JSON files, .env files
// and the environment, and builds the configured collaborators.
//
//	_ = config.LoadEnv()
//	cfg, err := config.Load("agentgraph.yaml")
//	if err != nil {
//		return err
//	}
//	s, err := config.OpenStore(ctx, cfg.Store)
//
// A minimal file:
//
//	log_level: debug
//	store:
//	  backend: sqlite
//	  dsn: checkpoints.db
//	model:
//	  name: gpt-4o
//
// OPENAI_API_KEY, TAVILY_API_KEY, BRAVE_API_KEY, AGENTGRAPH_LOG_LEVEL and
// AGENTGRAPH_STORE_DSN override the file.
package config
