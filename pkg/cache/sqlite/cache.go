// Package sqlite implements the document cache storage layer: cache rows plus
// their embedding vectors in one SQLite database, with LRU eviction bounded by
// a fixed capacity and bulk invalidation tied to profile content hashes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/draftly-ai/draftly/pkg/models"
	"github.com/draftly-ai/draftly/pkg/vector"
)

// Defaults for the entry capacity and eviction batch size.
const (
	DefaultCapacity      = 500
	DefaultEvictionBatch = 10
)

// ErrVectorUnavailable is returned by Store when the vector index could not be
// attached; lookups degrade to misses instead of returning it.
var ErrVectorUnavailable = errors.New("vector index unavailable")

// Options configures a cache Store.
type Options struct {
	// Dimensions is the embedding dimensionality of the vector index.
	Dimensions int
	// Capacity is the maximum number of live cache rows.
	Capacity int
	// EvictionBatch is how many rows are evicted when capacity is reached.
	EvictionBatch int
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.EvictionBatch <= 0 {
		o.EvictionBatch = DefaultEvictionBatch
	}
	return o
}

// Store persists cache entries and their embeddings.
type Store struct {
	db      *sql.DB
	idx     *vector.Index
	ownedDB bool
	opts    Options
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	embedding_rowid INTEGER NOT NULL,
	job_fingerprint TEXT NOT NULL,
	role_fingerprint TEXT NOT NULL,
	archetype_fingerprint TEXT,
	doc_type TEXT NOT NULL,
	role_normalized TEXT NOT NULL,
	tech_stack_json TEXT,
	document_json BLOB NOT NULL,
	job_description TEXT NOT NULL,
	company TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	model_version TEXT NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 0,
	last_hit_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cache_job_key ON cache_entries(job_fingerprint, content_hash, doc_type);
CREATE INDEX IF NOT EXISTS idx_cache_role ON cache_entries(role_fingerprint, content_hash, doc_type);
CREATE INDEX IF NOT EXISTS idx_cache_archetype ON cache_entries(archetype_fingerprint, content_hash, doc_type);
CREATE INDEX IF NOT EXISTS idx_cache_content_hash ON cache_entries(content_hash);
CREATE INDEX IF NOT EXISTS idx_cache_lru ON cache_entries(last_hit_at, hit_count);
`

// New creates a Store on an existing database handle. The vector index is
// probed once here: if it cannot be attached the Store still serves row
// operations but Available reports false, similarity search returns nothing
// and writes are refused.
func New(db *sql.DB, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	if _, err := db.Exec(createCacheTable); err != nil {
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	idx, err := vector.Attach(context.Background(), db, opts.Dimensions)
	if err != nil {
		log.Printf("document cache: vector index unavailable: %v", err)
		idx = nil
	}

	return &Store{db: db, idx: idx, opts: opts}, nil
}

// Open opens (or creates) the cache database at dbPath and returns a Store
// that owns the connection.
func Open(dbPath string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	s, err := New(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownedDB = true
	return s, nil
}

// Available reports whether the vector index is usable.
func (s *Store) Available() bool {
	return s.idx != nil
}

const entryColumns = `id, embedding_rowid, job_fingerprint, role_fingerprint, archetype_fingerprint,
	doc_type, role_normalized, tech_stack_json, document_json, job_description,
	company, content_hash, model_version, hit_count, last_hit_at, created_at`

func scanEntry(row interface{ Scan(...any) error }) (*models.CacheEntry, error) {
	var e models.CacheEntry
	var archetype, techStack sql.NullString
	var docType string
	if err := row.Scan(
		&e.ID, &e.EmbeddingRowID, &e.JobFingerprint, &e.RoleFingerprint, &archetype,
		&docType, &e.RoleNormalized, &techStack, &e.Document, &e.JobDescription,
		&e.Company, &e.ContentHash, &e.ModelVersion, &e.HitCount, &e.LastHitAt, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.DocType = models.DocumentType(docType)
	e.ArchetypeFingerprint = archetype.String
	if techStack.Valid && techStack.String != "" {
		if err := json.Unmarshal([]byte(techStack.String), &e.TechStack); err != nil {
			// A corrupt tech stack only disables Jaccard blending for this entry.
			e.TechStack = nil
		}
	}
	return &e, nil
}

func (s *Store) findByKey(ctx context.Context, keyColumn, key, contentHash string, docType models.DocumentType) (*models.CacheEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM cache_entries
		WHERE ` + keyColumn + ` = ? AND content_hash = ? AND doc_type = ? LIMIT 1`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, key, contentHash, string(docType)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cache entry: %w", err)
	}
	return entry, nil
}

// FindExact returns the entry matching the job fingerprint, or nil on miss.
// Hit metadata is not touched; recording a hit is the caller's decision.
func (s *Store) FindExact(ctx context.Context, jobFingerprint, contentHash string, docType models.DocumentType) (*models.CacheEntry, error) {
	return s.findByKey(ctx, "job_fingerprint", jobFingerprint, contentHash, docType)
}

// FindByRoleFingerprint returns any entry matching the company-independent
// role fingerprint. When several companies share a role fingerprint, which
// row is returned is unspecified.
func (s *Store) FindByRoleFingerprint(ctx context.Context, roleFingerprint, contentHash string, docType models.DocumentType) (*models.CacheEntry, error) {
	return s.findByKey(ctx, "role_fingerprint", roleFingerprint, contentHash, docType)
}

// FindByArchetypeFingerprint returns any entry matching the coarse role-family
// fingerprint.
func (s *Store) FindByArchetypeFingerprint(ctx context.Context, archetypeFingerprint, contentHash string, docType models.DocumentType) (*models.CacheEntry, error) {
	if archetypeFingerprint == "" {
		return nil, nil
	}
	return s.findByKey(ctx, "archetype_fingerprint", archetypeFingerprint, contentHash, docType)
}

// FindSimilar returns up to k entries nearest to embedding, filtered by content
// hash and document type, ordered by similarity descending. The vector index is
// over-queried at 3k because it knows nothing about the filters; the join
// against cache rows does the filtering. Similarity is derived from L2 distance
// under the assumption that embeddings are unit-normalized.
func (s *Store) FindSimilar(ctx context.Context, embedding []float32, contentHash string, docType models.DocumentType, k int) ([]models.SimilarEntry, error) {
	if s.idx == nil || k <= 0 {
		return nil, nil
	}

	neighbors, err := s.idx.Search(ctx, s.db, embedding, 3*k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	similarity := make(map[int64]float64, len(neighbors))
	placeholders := make([]string, 0, len(neighbors))
	args := make([]any, 0, len(neighbors)+2)
	for _, n := range neighbors {
		// For unit vectors, cosine similarity = 1 - d^2/2.
		similarity[n.RowID] = 1 - n.Distance*n.Distance/2
		placeholders = append(placeholders, "?")
		args = append(args, n.RowID)
	}
	args = append(args, contentHash, string(docType))

	query := `SELECT ` + entryColumns + ` FROM cache_entries
		WHERE embedding_rowid IN (` + strings.Join(placeholders, ",") + `)
		AND content_hash = ? AND doc_type = ?`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("join similar entries: %w", err)
	}
	defer rows.Close()

	var results []models.SimilarEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan similar entry: %w", err)
		}
		results = append(results, models.SimilarEntry{
			Entry:      *entry,
			Similarity: similarity[entry.EmbeddingRowID],
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("join similar entries: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Store persists a new cache entry inside one transaction: an existing row
// with the same (job fingerprint, content hash, doc type) is replaced, the
// LRU batch is evicted if the cache is at capacity, then the embedding and
// row are inserted.
func (s *Store) Store(ctx context.Context, params models.StoreParams) error {
	if s.idx == nil {
		return ErrVectorUnavailable
	}
	if len(params.Embedding) != s.idx.Dim() {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(params.Embedding), s.idx.Dim())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin store tx: %w", err)
	}
	defer tx.Rollback()

	// Replace an existing entry for the same key rather than duplicating.
	if err := s.deleteWhere(ctx, tx,
		`job_fingerprint = ? AND content_hash = ? AND doc_type = ?`,
		params.JobFingerprint, params.ContentHash, string(params.DocType)); err != nil {
		return err
	}

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return fmt.Errorf("count cache entries: %w", err)
	}
	if count >= int64(s.opts.Capacity) {
		if err := s.evictLRU(ctx, tx); err != nil {
			return err
		}
	}

	rowid, err := s.idx.Insert(ctx, tx, params.Embedding)
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}

	var techStackJSON sql.NullString
	if len(params.TechStack) > 0 {
		data, err := json.Marshal(params.TechStack)
		if err != nil {
			return fmt.Errorf("marshal tech stack: %w", err)
		}
		techStackJSON = sql.NullString{String: string(data), Valid: true}
	}
	var archetype sql.NullString
	if params.ArchetypeFingerprint != "" {
		archetype = sql.NullString{String: params.ArchetypeFingerprint, Valid: true}
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO cache_entries
		(embedding_rowid, job_fingerprint, role_fingerprint, archetype_fingerprint,
		 doc_type, role_normalized, tech_stack_json, document_json, job_description,
		 company, content_hash, model_version, hit_count, last_hit_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		rowid, params.JobFingerprint, params.RoleFingerprint, archetype,
		string(params.DocType), params.RoleNormalized, techStackJSON, params.Document,
		params.JobDescription, params.Company, params.ContentHash, params.ModelVersion,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit store tx: %w", err)
	}
	return nil
}

// evictLRU removes the eviction batch ordered by oldest hit first, then lowest
// hit count, biasing retention toward frequently reused entries.
func (s *Store) evictLRU(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, embedding_rowid FROM cache_entries
		 ORDER BY last_hit_at ASC, hit_count ASC LIMIT ?`, s.opts.EvictionBatch)
	if err != nil {
		return fmt.Errorf("select eviction batch: %w", err)
	}
	ids, rowids, err := collectIDs(rows)
	if err != nil {
		return fmt.Errorf("scan eviction batch: %w", err)
	}
	return s.deleteByIDs(ctx, tx, ids, rowids)
}

// RecordHit increments the entry's hit count and refreshes its last-hit time.
// Called only when a lookup result is actually consumed.
func (s *Store) RecordHit(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1, last_hit_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("record hit: %w", err)
	}
	return nil
}

// RemoveStaleEntries deletes every entry whose content hash differs from the
// profile's current hash and returns the number removed.
func (s *Store) RemoveStaleEntries(ctx context.Context, currentContentHash string) (int64, error) {
	return s.deleteWhereTx(ctx, `content_hash != ?`, currentContentHash)
}

// InvalidateByContentHash deletes entries for a specific (hash, type) pair.
func (s *Store) InvalidateByContentHash(ctx context.Context, contentHash string, docType models.DocumentType) (int64, error) {
	return s.deleteWhereTx(ctx, `content_hash = ? AND doc_type = ?`, contentHash, string(docType))
}

// PruneOlderThan deletes entries created more than the given number of days
// ago, independent of LRU eviction.
func (s *Store) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return s.deleteWhereTx(ctx, `created_at < ?`, cutoff)
}

// Clear deletes all entries and their embeddings.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.deleteWhereTx(ctx, `1=1`)
}

// deleteWhereTx runs a filtered delete in its own transaction and reports how
// many entries were removed.
func (s *Store) deleteWhereTx(ctx context.Context, where string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, embedding_rowid FROM cache_entries WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("select entries to delete: %w", err)
	}
	ids, rowids, err := collectIDs(rows)
	if err != nil {
		return 0, fmt.Errorf("scan entries to delete: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.deleteByIDs(ctx, tx, ids, rowids); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete tx: %w", err)
	}
	return int64(len(ids)), nil
}

// deleteWhere is the same filtered delete for callers already inside a
// transaction.
func (s *Store) deleteWhere(ctx context.Context, tx *sql.Tx, where string, args ...any) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, embedding_rowid FROM cache_entries WHERE `+where, args...)
	if err != nil {
		return fmt.Errorf("select entries to delete: %w", err)
	}
	ids, rowids, err := collectIDs(rows)
	if err != nil {
		return fmt.Errorf("scan entries to delete: %w", err)
	}
	return s.deleteByIDs(ctx, tx, ids, rowids)
}

func (s *Store) deleteByIDs(ctx context.Context, tx *sql.Tx, ids, rowids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete cache entries: %w", err)
	}
	if s.idx != nil {
		if err := s.idx.Delete(ctx, tx, rowids...); err != nil {
			return err
		}
	}
	return nil
}

func collectIDs(rows *sql.Rows) (ids, rowids []int64, err error) {
	defer rows.Close()
	for rows.Next() {
		var id, rowid int64
		if err := rows.Scan(&id, &rowid); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		rowids = append(rowids, rowid)
	}
	return ids, rowids, rows.Err()
}

// Count returns the number of live cache entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}

// Stats returns overall and per-document-type cache counters.
func (s *Store) Stats(ctx context.Context) (models.CacheStats, error) {
	var stats models.CacheStats
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_type, COUNT(*), COALESCE(SUM(hit_count), 0)
		 FROM cache_entries GROUP BY doc_type ORDER BY doc_type`)
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dt models.DocTypeStats
		var docType string
		if err := rows.Scan(&docType, &dt.Entries, &dt.Hits); err != nil {
			return stats, fmt.Errorf("scan cache stats: %w", err)
		}
		dt.DocType = models.DocumentType(docType)
		stats.ByDocType = append(stats.ByDocType, dt)
		stats.Entries += dt.Entries
		stats.TotalHits += dt.Hits
	}
	return stats, rows.Err()
}

// Close releases the database connection if this Store opened it.
func (s *Store) Close() error {
	if s.ownedDB {
		return s.db.Close()
	}
	return nil
}
