package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "/tmp/notes.db"
embedding:
  dimensions: 512
retrieval:
  top_k: 3
  min_score: 0.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Embedding.Dimensions != 512 {
		t.Errorf("dimensions = %d, want 512", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.TopK != 3 || cfg.Retrieval.MinScore != 0.5 {
		t.Errorf("unexpected retrieval config: %+v", cfg.Retrieval)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  host: localhost\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8384 {
		t.Errorf("default port = %d, want 8384", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("default dimensions = %d, want 384", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.MaxTokens != 256 {
		t.Errorf("default max_tokens = %d, want 256", cfg.Embedding.MaxTokens)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.MinScore != 0.2 {
		t.Errorf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.ChunkSize != 200 || cfg.Retrieval.ChunkOverlap != 40 {
		t.Errorf("unexpected chunking defaults: %+v", cfg.Retrieval)
	}
	if cfg.Prompt.DefaultTemplate != "default" {
		t.Errorf("default template = %q", cfg.Prompt.DefaultTemplate)
	}
	if cfg.Prompt.StrictTemplates {
		t.Error("strict templates should default off")
	}
	if cfg.Storage.DatabasePath == "" || cfg.Storage.SnapshotPath == "" {
		t.Error("storage paths should get defaults")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/notes.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(filepath.Dir(path), "data", "notes.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
}

func TestLoad_absolutePathUntouched(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "/var/lib/kiroku/notes.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DatabasePath != "/var/lib/kiroku/notes.db" {
		t.Errorf("absolute path was rewritten: %q", cfg.Storage.DatabasePath)
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	var w WatchConfig
	if !w.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
	f := false
	w.Recursive = &f
	if w.RecursiveOrDefault() {
		t.Error("explicit false must win")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{Debug: true}
	ApplyDefaults(cfg)
	cfg.Server.Port = 9999
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Debug || loaded.Server.Port != 9999 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
