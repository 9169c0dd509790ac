package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/draftly-ai/draftly/pkg/models"
)

// Config holds all Draftly configuration.
type Config struct {
	DBPath    string                `yaml:"db_path"`
	Embedding EmbeddingConfig       `yaml:"embedding"`
	Cache     CacheConfig           `yaml:"cache"`
	Events    models.EventLogConfig `yaml:"events"`
}

// EmbeddingConfig defines the embedding service endpoint.
type EmbeddingConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
}

// CacheConfig controls the document cache.
type CacheConfig struct {
	Enabled             bool    `yaml:"enabled"`
	DryRun              bool    `yaml:"dry_run"`
	FullHitThreshold    float64 `yaml:"full_hit_threshold"`
	PartialHitThreshold float64 `yaml:"partial_hit_threshold"`
	MaxEntries          int     `yaml:"max_entries"`
	EvictionBatch       int     `yaml:"eviction_batch"`
	MaxAgeDays          int     `yaml:"max_age_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath: "draftly.db",
		Embedding: EmbeddingConfig{
			URL:        "https://api.openai.com/v1/embeddings",
			Model:      "text-embedding-3-small",
			Dimensions: 768,
			Timeout:    5 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:             true,
			FullHitThreshold:    0.90,
			PartialHitThreshold: 0.75,
			MaxEntries:          500,
			EvictionBatch:       10,
			MaxAgeDays:          90,
		},
		Events: models.EventLogConfig{
			Enabled:       true,
			DBPath:        "draftly_events.db",
			RetentionDays: 30,
		},
	}
}

// Load reads a YAML config file, expands environment variables, and applies
// DRAFTLY_* environment overrides on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides config fields from DRAFTLY_* environment variables, so
// deployments can flip the cache on or off without editing the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DRAFTLY_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DRAFTLY_EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v, ok := envBool("DRAFTLY_CACHE_ENABLED"); ok {
		c.Cache.Enabled = v
	}
	if v, ok := envBool("DRAFTLY_CACHE_DRY_RUN"); ok {
		c.Cache.DryRun = v
	}
	if v, ok := envFloat("DRAFTLY_CACHE_FULL_HIT_THRESHOLD"); ok {
		c.Cache.FullHitThreshold = v
	}
	if v, ok := envFloat("DRAFTLY_CACHE_PARTIAL_HIT_THRESHOLD"); ok {
		c.Cache.PartialHitThreshold = v
	}
	if v, ok := envInt("DRAFTLY_CACHE_MAX_ENTRIES"); ok {
		c.Cache.MaxEntries = v
	}
	if v, ok := envInt("DRAFTLY_CACHE_EVICTION_BATCH"); ok {
		c.Cache.EvictionBatch = v
	}
	if v, ok := envInt("DRAFTLY_CACHE_MAX_AGE_DAYS"); ok {
		c.Cache.MaxAgeDays = v
	}
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
