package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/draftly-ai/draftly/pkg/models"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	cfg := models.EventLogConfig{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "events_test.db"),
	}
	l, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLogAndQuery(t *testing.T) {
	ctx := context.Background()
	l := newTestLogger(t)

	events := []models.CacheEvent{
		{Op: models.EventLookup, Tier: models.TierExact, DocType: models.DocTypeResume, Role: "frontend engineer", Company: "acme", LatencyMs: 3},
		{Op: models.EventLookup, Tier: models.TierMiss, DocType: models.DocTypeCoverLetter, LatencyMs: 120},
		{Op: models.EventStore, DocType: models.DocTypeResume, LatencyMs: 15},
	}
	for _, e := range events {
		if err := l.Log(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	all, err := l.Query(ctx, models.EventQueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	for _, e := range all {
		if e.EventID == "" {
			t.Error("event ID should be generated when missing")
		}
	}

	lookups, err := l.Query(ctx, models.EventQueryOpts{Op: models.EventLookup})
	if err != nil {
		t.Fatal(err)
	}
	if len(lookups) != 2 {
		t.Errorf("expected 2 lookup events, got %d", len(lookups))
	}

	resumes, err := l.Query(ctx, models.EventQueryOpts{DocType: string(models.DocTypeResume)})
	if err != nil {
		t.Fatal(err)
	}
	if len(resumes) != 2 {
		t.Errorf("expected 2 resume events, got %d", len(resumes))
	}
}

func TestQueryLimit(t *testing.T) {
	ctx := context.Background()
	l := newTestLogger(t)

	for i := 0; i < 5; i++ {
		if err := l.Log(ctx, models.CacheEvent{Op: models.EventLookup, Tier: models.TierMiss}); err != nil {
			t.Fatal(err)
		}
	}

	events, err := l.Query(ctx, models.EventQueryOpts{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events with limit, got %d", len(events))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	l := newTestLogger(t)

	_ = l.Log(ctx, models.CacheEvent{Op: models.EventLookup, Tier: models.TierExact})
	_ = l.Log(ctx, models.CacheEvent{Op: models.EventLookup, Tier: models.TierMiss})
	_ = l.Log(ctx, models.CacheEvent{Op: models.EventStore})

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 op groups, got %d", len(stats))
	}
	total := 0
	for _, s := range stats {
		total += s.Count
	}
	if total != 3 {
		t.Errorf("expected 3 events across groups, got %d", total)
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	l := newTestLogger(t)
	l.cfg.RetentionDays = 7

	old := models.CacheEvent{Op: models.EventLookup, CreatedAt: time.Now().AddDate(0, 0, -30)}
	recent := models.CacheEvent{Op: models.EventLookup}
	if err := l.Log(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := l.Log(ctx, recent); err != nil {
		t.Fatal(err)
	}

	removed, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
}

func TestCleanupWithoutRetention(t *testing.T) {
	ctx := context.Background()
	l := newTestLogger(t)

	old := models.CacheEvent{Op: models.EventLookup, CreatedAt: time.Now().AddDate(0, 0, -30)}
	if err := l.Log(ctx, old); err != nil {
		t.Fatal(err)
	}

	removed, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("cleanup without a retention period must delete nothing, got %d", removed)
	}

	events, err := l.Query(ctx, models.EventQueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("expected the event to survive, got %d events", len(events))
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	if err := l.Log(context.Background(), models.CacheEvent{Op: models.EventStore}); err != nil {
		t.Errorf("nil logger should be a no-op, got %v", err)
	}
}
