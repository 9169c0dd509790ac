package semcache

import (
	"fmt"

	"github.com/draftly-ai/draftly/pkg/audit"
	cachesql "github.com/draftly-ai/draftly/pkg/cache/sqlite"
	"github.com/draftly-ai/draftly/pkg/config"
	"github.com/draftly-ai/draftly/pkg/embedding"
)

// Open assembles a Cache from configuration: the sqlite store, the embedding
// client, and the event log when enabled. The returned cleanup closes
// everything Open opened.
func Open(cfg *config.Config) (*Cache, func(), error) {
	store, err := cachesql.Open(cfg.DBPath, cachesql.Options{
		Dimensions:    cfg.Embedding.Dimensions,
		Capacity:      cfg.Cache.MaxEntries,
		EvictionBatch: cfg.Cache.EvictionBatch,
	})
	if err != nil {
		return nil, nil, err
	}

	var embOpts []embedding.Option
	if cfg.Embedding.Timeout > 0 {
		embOpts = append(embOpts, embedding.WithTimeout(cfg.Embedding.Timeout))
	}
	if cfg.Embedding.Dimensions > 0 {
		embOpts = append(embOpts, embedding.WithDimensions(cfg.Embedding.Dimensions))
	}
	embedder := embedding.New(cfg.Embedding.URL, cfg.Embedding.APIKey, cfg.Embedding.Model, embOpts...)

	var events *audit.Logger
	if cfg.Events.Enabled {
		events, err = audit.New(cfg.Events)
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("open event log: %w", err)
		}
	}

	cache := New(store, embedder, Options{
		Enabled:             cfg.Cache.Enabled,
		DryRun:              cfg.Cache.DryRun,
		FullHitThreshold:    cfg.Cache.FullHitThreshold,
		PartialHitThreshold: cfg.Cache.PartialHitThreshold,
	}, events)

	cleanup := func() {
		if events != nil {
			_ = events.Close()
		}
		_ = store.Close()
	}
	return cache, cleanup, nil
}
