// Package vector provides a SQLite-backed embedding index: vectors are stored
// as little-endian float32 BLOBs and k-nearest-neighbour search runs as an
// in-process L2 scan. The index shares the caller's database so inserts and
// deletes can participate in the caller's transactions.
package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Neighbor is one KNN search result.
type Neighbor struct {
	RowID    int64
	Distance float64
}

// Index is an embedding index of fixed dimensionality.
type Index struct {
	dim int
}

const createEmbeddingsTable = `
CREATE TABLE IF NOT EXISTS embeddings (
	rowid INTEGER PRIMARY KEY AUTOINCREMENT,
	vector BLOB NOT NULL
);
`

// Attach creates the embeddings table on db and returns an Index of the given
// dimensionality. An error means the vector capability is unavailable.
func Attach(ctx context.Context, db *sql.DB, dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	if _, err := db.ExecContext(ctx, createEmbeddingsTable); err != nil {
		return nil, fmt.Errorf("create embeddings table: %w", err)
	}
	return &Index{dim: dim}, nil
}

// Dim returns the index dimensionality.
func (i *Index) Dim() int { return i.dim }

// Insert stores a vector and returns its rowid.
func (i *Index) Insert(ctx context.Context, q DBTX, vec []float32) (int64, error) {
	if len(vec) != i.dim {
		return 0, fmt.Errorf("vector has %d dimensions, index expects %d", len(vec), i.dim)
	}
	res, err := q.ExecContext(ctx, `INSERT INTO embeddings (vector) VALUES (?)`, Encode(vec))
	if err != nil {
		return 0, fmt.Errorf("insert vector: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("vector rowid: %w", err)
	}
	return id, nil
}

// Search returns the k nearest neighbours of query by L2 distance, closest
// first. The scan is brute-force over all stored vectors.
func (i *Index) Search(ctx context.Context, q DBTX, query []float32, k int) ([]Neighbor, error) {
	if len(query) != i.dim {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d", len(query), i.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := q.QueryContext(ctx, `SELECT rowid, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	defer rows.Close()

	var neighbors []Neighbor
	for rows.Next() {
		var rowid int64
		var blob []byte
		if err := rows.Scan(&rowid, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		vec, err := Decode(blob)
		if err != nil || len(vec) != i.dim {
			// Skip malformed rows rather than failing the whole search.
			continue
		}
		neighbors = append(neighbors, Neighbor{RowID: rowid, Distance: l2Distance(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}

	sort.Slice(neighbors, func(a, b int) bool {
		return neighbors[a].Distance < neighbors[b].Distance
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Delete removes vectors by rowid.
func (i *Index) Delete(ctx context.Context, q DBTX, rowids ...int64) error {
	if len(rowids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(rowids)), ",")
	args := make([]any, len(rowids))
	for n, id := range rowids {
		args[n] = id
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM embeddings WHERE rowid IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}

// Encode serializes a vector as little-endian float32 bytes.
func Encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for n, v := range vec {
		binary.LittleEndian.PutUint32(buf[n*4:], math.Float32bits(v))
	}
	return buf
}

// Decode deserializes a little-endian float32 BLOB.
func Decode(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for n := range vec {
		vec[n] = math.Float32frombits(binary.LittleEndian.Uint32(blob[n*4:]))
	}
	return vec, nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for n := range a {
		d := float64(a[n]) - float64(b[n])
		sum += d * d
	}
	return math.Sqrt(sum)
}
