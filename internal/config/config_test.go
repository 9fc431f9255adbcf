package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Store.Path == "" {
		t.Fatalf("expected a default store path")
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Fatalf("expected default embedding provider ollama, got %s", cfg.Embedding.Provider)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != DefaultConfig().Store.Path {
		t.Fatalf("expected default store path when file is missing")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "store:\n  path: custom.db\nembedding:\n  provider: genai\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "custom.db" {
		t.Fatalf("expected custom.db, got %s", cfg.Store.Path)
	}
	if cfg.Embedding.Provider != "genai" {
		t.Fatalf("expected genai, got %s", cfg.Embedding.Provider)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CLAUDE_KNOWLEDGE_STORE_PATH", "/tmp/env.db")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/tmp/env.db" {
		t.Fatalf("expected env override, got %s", cfg.Store.Path)
	}
}

func TestResolveStorePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Path = "relative.db"
	resolved := cfg.ResolveStorePath("/work/dir")
	if resolved != filepath.Join("/work/dir", "relative.db") {
		t.Fatalf("unexpected resolved path: %s", resolved)
	}

	cfg.Store.Path = "/abs/path.db"
	if cfg.ResolveStorePath("/work/dir") != "/abs/path.db" {
		t.Fatalf("expected absolute path to pass through unchanged")
	}
}
