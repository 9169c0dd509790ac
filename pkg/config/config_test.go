package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DBPath != "draftly.db" {
		t.Errorf("expected draftly.db, got %s", cfg.DBPath)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected 768 dimensions, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Cache.FullHitThreshold != 0.90 {
		t.Errorf("expected 0.90 full-hit threshold, got %v", cfg.Cache.FullHitThreshold)
	}
	if !cfg.Cache.Enabled {
		t.Error("expected cache enabled by default")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	content := `
db_path: "test.db"
embedding:
  url: https://embeddings.internal/v1/embeddings
  api_key: ${TEST_API_KEY}
  model: custom-embed-1
  dimensions: 384
  timeout: 10s
cache:
  enabled: true
  dry_run: true
  full_hit_threshold: 0.85
  max_entries: 200
events:
  enabled: true
  db_path: events.db
  retention_days: 14
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "test.db" {
		t.Errorf("expected test.db, got %s", cfg.DBPath)
	}
	if cfg.Embedding.APIKey != "sk-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("expected 384 dimensions, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.Embedding.Timeout)
	}
	if !cfg.Cache.DryRun {
		t.Error("expected dry_run enabled")
	}
	if cfg.Cache.FullHitThreshold != 0.85 {
		t.Errorf("expected 0.85 threshold, got %v", cfg.Cache.FullHitThreshold)
	}
	// Fields the file omits keep their defaults.
	if cfg.Cache.PartialHitThreshold != 0.75 {
		t.Errorf("expected default partial threshold, got %v", cfg.Cache.PartialHitThreshold)
	}
	if cfg.Events.RetentionDays != 14 {
		t.Errorf("expected 14 retention days, got %d", cfg.Events.RetentionDays)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DRAFTLY_DB_PATH", "/tmp/override.db")
	t.Setenv("DRAFTLY_CACHE_ENABLED", "false")
	t.Setenv("DRAFTLY_CACHE_DRY_RUN", "true")

	content := "db_path: file.db\ncache:\n  enabled: true\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "/tmp/override.db" {
		t.Errorf("expected env override, got %s", cfg.DBPath)
	}
	if cfg.Cache.Enabled {
		t.Error("expected DRAFTLY_CACHE_ENABLED=false to win over the file")
	}
	if !cfg.Cache.DryRun {
		t.Error("expected DRAFTLY_CACHE_DRY_RUN=true to apply")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
