// Package audit records cache operations in a dedicated SQLite event log for
// diagnostics: which tier served each lookup, what was stored, and how many
// rows invalidation and pruning removed.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/draftly-ai/draftly/pkg/models"
)

// Logger writes and queries cache events in a dedicated SQLite database.
type Logger struct {
	db   *sql.DB
	cfg  models.EventLogConfig
	done chan struct{}
	wg   sync.WaitGroup
}

// New opens the event log database and creates the schema.
func New(cfg models.EventLogConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open event log db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate event log db: %w", err)
	}

	l := &Logger{
		db:   db,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	if cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache_events (
		event_id   TEXT PRIMARY KEY,
		op         TEXT NOT NULL,
		tier       TEXT,
		doc_type   TEXT,
		role       TEXT,
		company    TEXT,
		similarity REAL,
		removed    INTEGER,
		latency_ms INTEGER,
		created_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_op ON cache_events(op)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_created ON cache_events(created_at)`)
	return err
}

// Log inserts a cache event. A missing event ID or timestamp is filled in.
func (l *Logger) Log(ctx context.Context, event models.CacheEvent) error {
	if l == nil || l.db == nil {
		return nil
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO cache_events
		(event_id, op, tier, doc_type, role, company, similarity, removed, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, event.Op, string(event.Tier), string(event.DocType),
		event.Role, event.Company, event.Similarity, event.Removed,
		event.LatencyMs, event.CreatedAt,
	)
	return err
}

// Query returns cache events matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.EventQueryOpts) ([]models.CacheEvent, error) {
	q := `SELECT event_id, op, tier, doc_type, role, company, similarity, removed, latency_ms, created_at
		FROM cache_events WHERE 1=1`
	var args []any

	if opts.Op != "" {
		q += " AND op = ?"
		args = append(args, opts.Op)
	}
	if opts.DocType != "" {
		q += " AND doc_type = ?"
		args = append(args, opts.DocType)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since)
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.CacheEvent
	for rows.Next() {
		var e models.CacheEvent
		var tier, docType, role, company sql.NullString
		var similarity sql.NullFloat64
		var removed sql.NullInt64
		if err := rows.Scan(
			&e.EventID, &e.Op, &tier, &docType, &role, &company,
			&similarity, &removed, &e.LatencyMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Tier = models.LookupTier(tier.String)
		e.DocType = models.DocumentType(docType.String)
		e.Role = role.String
		e.Company = company.String
		e.Similarity = similarity.Float64
		e.Removed = removed.Int64
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats returns aggregate counts grouped by op and day.
func (l *Logger) Stats(ctx context.Context) ([]models.EventStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT op, date(created_at) as day, count(*) as cnt
		 FROM cache_events GROUP BY op, day ORDER BY day DESC, op`)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	defer rows.Close()

	var stats []models.EventStat
	for rows.Next() {
		var s models.EventStat
		var day sql.NullString
		if err := rows.Scan(&s.Op, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan event stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes events older than the configured retention period. With no
// retention period configured nothing is deleted.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM cache_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("event log cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
