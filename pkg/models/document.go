package models

// DocumentType identifies the kind of generated artifact stored in the cache.
type DocumentType string

const (
	DocTypeResume          DocumentType = "resume"
	DocTypeCoverLetter     DocumentType = "cover_letter"
	DocTypeCoverLetterBody DocumentType = "cover_letter_body"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeResume, DocTypeCoverLetter, DocTypeCoverLetterBody:
		return true
	}
	return false
}

// LookupTier identifies which cache tier produced a lookup result.
type LookupTier string

const (
	// TierExact is a job-fingerprint match: same role, company, tech stack and profile.
	TierExact LookupTier = "exact"
	// TierRole is a role-fingerprint match: same role/tech/profile, different company.
	TierRole LookupTier = "role"
	// TierArchetype is a coarse role-family match sharing the same profile.
	TierArchetype LookupTier = "archetype"
	// TierSemanticFull is an embedding match at or above the full-hit threshold.
	TierSemanticFull LookupTier = "semantic_full"
	// TierSemanticPartial is an embedding match between the partial and full thresholds.
	// Partial results are advisory: the caller may use them as a drafting aid.
	TierSemanticPartial LookupTier = "semantic_partial"
	TierMiss            LookupTier = "miss"
)

// Hit reports whether the tier represents any kind of cache match.
func (t LookupTier) Hit() bool {
	return t != TierMiss && t != ""
}

// Usable reports whether the result can be returned to the user verbatim.
// Semantic-partial matches are a weaker signal and are excluded.
func (t LookupTier) Usable() bool {
	return t.Hit() && t != TierSemanticPartial
}

// LookupResult is the outcome of a cache lookup.
type LookupResult struct {
	Tier       LookupTier `json:"tier"`
	Document   []byte     `json:"document,omitempty"`
	Similarity float64    `json:"similarity,omitempty"`
	CacheID    int64      `json:"cache_id,omitempty"`
	// Embedding carries the query embedding computed during lookup so a
	// subsequent Store can reuse it instead of calling the embedding service again.
	Embedding []float32 `json:"-"`
}

// CoverLetterBody is a cached set of cover-letter body paragraphs.
type CoverLetterBody struct {
	Paragraphs []string `json:"paragraphs"`
	CacheID    int64    `json:"cache_id"`
}
