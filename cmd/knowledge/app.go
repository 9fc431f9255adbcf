package main

import (
	"fmt"
	"os"

	"claude-knowledge/internal/checkpoint"
	"claude-knowledge/internal/config"
	"claude-knowledge/internal/docs"
	"claude-knowledge/internal/embedding"
	"claude-knowledge/internal/graph"
	"claude-knowledge/internal/hooks"
	"claude-knowledge/internal/knowledge"
	"claude-knowledge/internal/logging"
	"claude-knowledge/internal/store"
)

// app wires every component over one Store handle for the lifetime of a
// single CLI invocation.
type app struct {
	cfg         *config.Config
	st          *store.Store
	embedder    embedding.Embedder
	knowledge   *knowledge.Store
	docs        *docs.Store
	graphQuery  *graph.GraphQuery
	graphStore  *graph.GraphStore
	checkpoints *checkpoint.Store
	hooks       *hooks.Hooks
}

// openApp loads config, opens the store, and wires every component. The
// caller must call a.close() when done.
func openApp() (*app, error) {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	wd, _ := os.Getwd()
	path := dbPath
	if path == "" {
		path = cfg.ResolveStorePath(wd)
	}

	_ = logging.Initialize(wd, logging.Settings{
		DebugMode:  cfg.Logging.DebugMode,
		Categories: cfg.Logging.Categories,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
	})

	st, err := store.Open(path, store.Options{
		BusyTimeoutMs:   cfg.Store.BusyTimeoutMs,
		RequireVecIndex: cfg.Store.RequireVecIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		TaskType:       cfg.Embedding.TaskType,
	})
	if err != nil {
		logging.CLIWarn("embedding engine unavailable, continuing without vector search: %v", err)
		embedder = nil
	}

	knowledgeStore := knowledge.New(st, embedder)
	docsStore := docs.New(st, embedder)
	graphQuery := graph.NewGraphQuery(st)
	graphStore := graph.NewGraphStore(st, embedder)
	checkpoints := checkpoint.New(st)
	h := hooks.New(checkpoints, knowledgeStore, docsStore, graphQuery, nil, cfg)

	return &app{
		cfg:         cfg,
		st:          st,
		embedder:    embedder,
		knowledge:   knowledgeStore,
		docs:        docsStore,
		graphQuery:  graphQuery,
		graphStore:  graphStore,
		checkpoints: checkpoints,
		hooks:       h,
	}, nil
}

func (a *app) close() {
	if a.st != nil {
		_ = a.st.Close()
	}
}
