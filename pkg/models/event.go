package models

import "time"

// Cache event operations.
const (
	EventLookup     = "lookup"
	EventStore      = "store"
	EventInvalidate = "invalidate"
	EventPrune      = "prune"
)

// CacheEvent records one cache operation for diagnostics.
type CacheEvent struct {
	EventID    string       `json:"event_id"`
	Op         string       `json:"op"`
	Tier       LookupTier   `json:"tier,omitempty"`
	DocType    DocumentType `json:"doc_type,omitempty"`
	Role       string       `json:"role,omitempty"`
	Company    string       `json:"company,omitempty"`
	Similarity float64      `json:"similarity,omitempty"`
	Removed    int64        `json:"removed,omitempty"`
	LatencyMs  int64        `json:"latency_ms"`
	CreatedAt  time.Time    `json:"created_at"`
}

// EventLogConfig controls the cache event log subsystem.
type EventLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// EventQueryOpts specifies filters for querying cache events.
type EventQueryOpts struct {
	Op      string
	DocType string
	Since   time.Time
	Limit   int
}

// EventStat holds aggregate event counts for an op/day combination.
type EventStat struct {
	Op    string
	Day   string
	Count int
}
