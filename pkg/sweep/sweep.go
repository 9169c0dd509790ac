// Package sweep invalidates cache entries after a profile edit. Any entry
// whose content hash no longer matches the current profile was generated from
// stale data and must not be served again.
package sweep

import (
	"context"
	"log"
	"time"

	"github.com/draftly-ai/draftly/pkg/audit"
	cachesql "github.com/draftly-ai/draftly/pkg/cache/sqlite"
	"github.com/draftly-ai/draftly/pkg/fingerprint"
	"github.com/draftly-ai/draftly/pkg/models"
)

// Sweeper removes cache entries invalidated by profile changes.
type Sweeper struct {
	store  *cachesql.Store
	events *audit.Logger
}

// New creates a Sweeper. events may be nil to disable the event log.
func New(store *cachesql.Store, events *audit.Logger) *Sweeper {
	return &Sweeper{store: store, events: events}
}

// Sweep recomputes the content hash for the given profile and removes every
// entry stored under a different hash. It never returns an error: invalidation
// rides along profile-save requests and must not fail them. The number of
// removed entries is returned for reporting.
func (s *Sweeper) Sweep(ctx context.Context, personal models.PersonalInfo, items []models.ContentItem, templates models.PromptTemplates) (removed int64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("cache sweep: panic recovered: %v", r)
			removed = 0
		}
	}()

	if s == nil || s.store == nil {
		return 0
	}

	start := time.Now()
	hash := fingerprint.ContentHash(personal, items, templates)
	removed, err := s.store.RemoveStaleEntries(ctx, hash)
	if err != nil {
		log.Printf("cache sweep: invalidation failed: %v", err)
		return 0
	}
	if removed > 0 {
		log.Printf("cache sweep: removed %d stale entries", removed)
	}

	if s.events != nil {
		if err := s.events.Log(ctx, models.CacheEvent{
			Op:        models.EventInvalidate,
			Removed:   removed,
			LatencyMs: time.Since(start).Milliseconds(),
		}); err != nil {
			log.Printf("cache sweep: event log error: %v", err)
		}
	}
	return removed
}

// Prune removes entries created more than the given number of days ago and
// records the outcome in the event log. Unlike Sweep it returns storage
// errors: pruning is an operator action, not a request-path side effect.
func (s *Sweeper) Prune(ctx context.Context, days int) (int64, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}

	start := time.Now()
	removed, err := s.store.PruneOlderThan(ctx, days)
	if err != nil {
		return 0, err
	}

	if s.events != nil {
		if err := s.events.Log(ctx, models.CacheEvent{
			Op:        models.EventPrune,
			Removed:   removed,
			LatencyMs: time.Since(start).Milliseconds(),
		}); err != nil {
			log.Printf("cache prune: event log error: %v", err)
		}
	}
	return removed, nil
}

// Dispatch runs Sweep in the background so profile saves return immediately.
func (s *Sweeper) Dispatch(personal models.PersonalInfo, items []models.ContentItem, templates models.PromptTemplates) {
	go s.Sweep(context.Background(), personal, items, templates)
}
