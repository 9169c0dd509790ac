package models

import "time"

// CacheEntry is one cached generated document.
type CacheEntry struct {
	ID                   int64        `json:"id"`
	EmbeddingRowID       int64        `json:"embedding_rowid"`
	JobFingerprint       string       `json:"job_fingerprint"`
	RoleFingerprint      string       `json:"role_fingerprint"`
	ArchetypeFingerprint string       `json:"archetype_fingerprint,omitempty"`
	DocType              DocumentType `json:"doc_type"`
	RoleNormalized       string       `json:"role_normalized"`
	TechStack            []string     `json:"tech_stack,omitempty"`
	Document             []byte       `json:"document"`
	JobDescription       string       `json:"job_description"`
	Company              string       `json:"company"`
	ContentHash          string       `json:"content_hash"`
	ModelVersion         string       `json:"model_version"`
	HitCount             int64        `json:"hit_count"`
	LastHitAt            time.Time    `json:"last_hit_at"`
	CreatedAt            time.Time    `json:"created_at"`
}

// StoreParams carries everything needed to persist a new cache entry.
type StoreParams struct {
	JobFingerprint       string
	RoleFingerprint      string
	ArchetypeFingerprint string
	DocType              DocumentType
	RoleNormalized       string
	TechStack            []string
	Document             []byte
	JobDescription       string
	Company              string
	ContentHash          string
	ModelVersion         string
	Embedding            []float32
}

// SimilarEntry pairs a cache entry with its similarity to a query embedding.
type SimilarEntry struct {
	Entry      CacheEntry
	Similarity float64
}

// DocTypeStats holds per-document-type cache counters.
type DocTypeStats struct {
	DocType DocumentType `json:"doc_type"`
	Entries int64        `json:"entries"`
	Hits    int64        `json:"hits"`
}

// CacheStats reports overall cache state.
type CacheStats struct {
	Entries   int64          `json:"entries"`
	TotalHits int64          `json:"total_hits"`
	ByDocType []DocTypeStats `json:"by_doc_type"`
}
