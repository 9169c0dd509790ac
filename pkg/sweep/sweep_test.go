package sweep

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/draftly-ai/draftly/pkg/audit"
	cachesql "github.com/draftly-ai/draftly/pkg/cache/sqlite"
	"github.com/draftly-ai/draftly/pkg/fingerprint"
	"github.com/draftly-ai/draftly/pkg/models"
)

const testDim = 4

func newTestStore(t *testing.T) *cachesql.Store {
	t.Helper()
	s, err := cachesql.Open(filepath.Join(t.TempDir(), "sweep_test.db"), cachesql.Options{Dimensions: testDim})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storeEntry(t *testing.T, s *cachesql.Store, contentHash, role string) {
	t.Helper()
	err := s.Store(context.Background(), models.StoreParams{
		JobFingerprint:  fingerprint.JobFingerprint(role, nil, contentHash, "acme"),
		RoleFingerprint: fingerprint.RoleFingerprint(role, nil, contentHash),
		DocType:         models.DocTypeResume,
		RoleNormalized:  role,
		Document:        []byte(`{"v":1}`),
		ContentHash:     contentHash,
		ModelVersion:    "gpt-test-1",
		Embedding:       []float32{1, 0, 0, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func testProfile() (models.PersonalInfo, []models.ContentItem, models.PromptTemplates) {
	return models.PersonalInfo{FirstName: "Ada"},
		[]models.ContentItem{{ID: 1, Title: "Acme", Role: "Engineer"}},
		models.PromptTemplates{Resume: "write a resume"}
}

func TestSweepRemovesStaleEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sw := New(store, nil)

	personal, items, templates := testProfile()
	current := fingerprint.ContentHash(personal, items, templates)

	storeEntry(t, store, current, "frontend engineer")
	storeEntry(t, store, "deadbeef", "backend engineer")
	storeEntry(t, store, "cafebabe", "mobile engineer")

	removed := sw.Sweep(ctx, personal, items, templates)
	if removed != 2 {
		t.Fatalf("expected 2 stale entries removed, got %d", removed)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 surviving entry, got %d", count)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sw := New(store, nil)

	personal, items, templates := testProfile()
	storeEntry(t, store, "stale", "frontend engineer")

	if removed := sw.Sweep(ctx, personal, items, templates); removed != 1 {
		t.Fatalf("expected 1 removed on first sweep, got %d", removed)
	}
	if removed := sw.Sweep(ctx, personal, items, templates); removed != 0 {
		t.Errorf("expected 0 removed on second sweep, got %d", removed)
	}
}

func TestSweepAfterProfileEdit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sw := New(store, nil)

	personal, items, templates := testProfile()
	original := fingerprint.ContentHash(personal, items, templates)
	storeEntry(t, store, original, "frontend engineer")

	// Editing a content item changes the hash and invalidates the entry.
	items[0].Description = "shipped the widget"
	removed := sw.Sweep(ctx, personal, items, templates)
	if removed != 1 {
		t.Fatalf("expected edited profile to invalidate the entry, got %d removed", removed)
	}
}

func newTestEvents(t *testing.T) *audit.Logger {
	t.Helper()
	l, err := audit.New(models.EventLogConfig{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "events_test.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestPruneLogsEvent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	events := newTestEvents(t)
	sw := New(store, events)

	storeEntry(t, store, "hash-a", "frontend engineer")
	storeEntry(t, store, "hash-b", "backend engineer")

	removed, err := sw.Prune(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 entries pruned, got %d", removed)
	}

	logged, err := events.Query(ctx, models.EventQueryOpts{Op: models.EventPrune})
	if err != nil {
		t.Fatal(err)
	}
	if len(logged) != 1 {
		t.Fatalf("expected 1 prune event, got %d", len(logged))
	}
	if logged[0].Removed != 2 {
		t.Errorf("expected prune event to record 2 removed, got %d", logged[0].Removed)
	}
}

func TestSweepLogsEvent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	events := newTestEvents(t)
	sw := New(store, events)

	personal, items, templates := testProfile()
	storeEntry(t, store, "stale", "frontend engineer")

	if removed := sw.Sweep(ctx, personal, items, templates); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	logged, err := events.Query(ctx, models.EventQueryOpts{Op: models.EventInvalidate})
	if err != nil {
		t.Fatal(err)
	}
	if len(logged) != 1 {
		t.Fatalf("expected 1 invalidate event, got %d", len(logged))
	}
	if logged[0].Removed != 1 {
		t.Errorf("expected invalidate event to record 1 removed, got %d", logged[0].Removed)
	}
}

func TestSweepOnNilStoreIsNoop(t *testing.T) {
	var sw *Sweeper
	personal, items, templates := testProfile()
	if removed := sw.Sweep(context.Background(), personal, items, templates); removed != 0 {
		t.Errorf("nil sweeper should remove nothing, got %d", removed)
	}
}
