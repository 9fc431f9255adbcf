// Package config holds the configuration for claude-knowledge: database
// location, embedding provider selection, retrieval thresholds, and the
// logging settings consumed by internal/logging. Loaded from YAML with
// environment-variable overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all claude-knowledge configuration.
type Config struct {
	// Store configures the SQLite database file.
	Store StoreConfig `yaml:"store"`

	// Embedding selects and configures the vector embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Retrieval tunes similarity search defaults.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Checkpoint tunes workflow/session bookkeeping.
	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	// Logging controls the internal/logging settings.
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the persistent database.
type StoreConfig struct {
	Path            string `yaml:"path"`
	BusyTimeoutMs   int    `yaml:"busy_timeout_ms"`
	RequireVecIndex bool   `yaml:"require_vec_index"`
}

// EmbeddingConfig configures the embedding backend, mirroring
// embedding.Config's provider switch (ollama/genai).
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "ollama" or "genai"
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	TaskType       string `yaml:"task_type"`
}

// RetrievalConfig tunes similarity search and graph query defaults.
type RetrievalConfig struct {
	DefaultLimit      int     `yaml:"default_limit"`
	DefaultThreshold  float64 `yaml:"default_threshold"`
	BlastRadiusDepth  int     `yaml:"blast_radius_depth"`
}

// CheckpointConfig tunes workflow bookkeeping.
type CheckpointConfig struct {
	StaleWorkflowHours    int    `yaml:"stale_workflow_hours"`
	SessionStalenessHours int    `yaml:"session_staleness_hours"`
	TranscriptDir         string `yaml:"transcript_dir"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns sensible defaults, overridden by a config file and
// then by environment variables.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:            ".claude/execution-state.db",
			BusyTimeoutMs:   5000,
			RequireVecIndex: false,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
		},
		Retrieval: RetrievalConfig{
			DefaultLimit:     10,
			DefaultThreshold: 0.0,
			BlastRadiusDepth: 5,
		},
		Checkpoint: CheckpointConfig{
			StaleWorkflowHours:    24,
			SessionStalenessHours: 24,
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads a YAML config file at path, falling back to defaults for any
// field the file omits, then applies environment overrides. A missing file
// is not an error — DefaultConfig() plus env overrides is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets CLAUDE_KNOWLEDGE_* environment variables take
// precedence over file and default values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLAUDE_KNOWLEDGE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CLAUDE_KNOWLEDGE_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("CLAUDE_KNOWLEDGE_GENAI_API_KEY"); v != "" {
		cfg.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("CLAUDE_KNOWLEDGE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("CLAUDE_KNOWLEDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

// ResolveStorePath returns an absolute database path, resolving a relative
// StoreConfig.Path against workDir.
func (c *Config) ResolveStorePath(workDir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(workDir, c.Store.Path)
}
