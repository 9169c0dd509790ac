// Package semcache implements the tiered document cache lookup/store protocol:
// exact fingerprint match, cross-company role match, then semantic similarity
// over job-description embeddings. Every failure path degrades to a miss —
// the cache is a pure optimization and must never block document generation.
package semcache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/draftly-ai/draftly/pkg/audit"
	cachesql "github.com/draftly-ai/draftly/pkg/cache/sqlite"
	"github.com/draftly-ai/draftly/pkg/fingerprint"
	"github.com/draftly-ai/draftly/pkg/models"
)

// Default similarity thresholds.
const (
	DefaultFullHitThreshold    = 0.90
	DefaultPartialHitThreshold = 0.75
)

// similarK is how many candidates tier 3 retrieves after filtering.
const similarK = 3

// Blend weights for entries that carry a stored tech stack.
const (
	embeddingWeight = 0.7
	jaccardWeight   = 0.3
)

// Embedder produces an embedding vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options controls cache behavior.
type Options struct {
	// Enabled gates the whole cache; when false every lookup is a miss and
	// stores are dropped.
	Enabled bool
	// DryRun exercises the full lookup waterfall and logs outcomes but always
	// reports a miss, so the caller keeps generating live documents while the
	// cache self-validates.
	DryRun bool
	// FullHitThreshold is the minimum similarity for a usable semantic hit.
	FullHitThreshold float64
	// PartialHitThreshold is the minimum similarity for an advisory result.
	PartialHitThreshold float64
}

func (o Options) withDefaults() Options {
	if o.FullHitThreshold <= 0 {
		o.FullHitThreshold = DefaultFullHitThreshold
	}
	if o.PartialHitThreshold <= 0 {
		o.PartialHitThreshold = DefaultPartialHitThreshold
	}
	return o
}

// Cache orchestrates tiered lookups over the storage layer and embedding
// service.
type Cache struct {
	store    *cachesql.Store
	embedder Embedder
	events   *audit.Logger
	opts     Options
}

// New creates a Cache. events may be nil to disable the event log.
func New(store *cachesql.Store, embedder Embedder, opts Options, events *audit.Logger) *Cache {
	return &Cache{
		store:    store,
		embedder: embedder,
		events:   events,
		opts:     opts.withDefaults(),
	}
}

// keys holds the fingerprints computed once per request.
type keys struct {
	contentHash    string
	roleNormalized string
	jobFP          string
	roleFP         string
	archetypeFP    string
}

func computeKeys(req models.JobContext) keys {
	contentHash := fingerprint.ContentHash(req.PersonalInfo, req.ContentItems, req.PromptTemplates)
	roleNorm := fingerprint.NormalizeRole(req.Role)
	return keys{
		contentHash:    contentHash,
		roleNormalized: roleNorm,
		jobFP:          fingerprint.JobFingerprint(roleNorm, req.TechStack, contentHash, req.Company),
		roleFP:         fingerprint.RoleFingerprint(roleNorm, req.TechStack, contentHash),
		archetypeFP:    fingerprint.ArchetypeFingerprint(roleNorm, contentHash),
	}
}

// Lookup walks the cache tiers for req and returns the first usable result.
// It never returns an error: any internal failure is logged and converted to
// a miss. On a miss the computed embedding (if any) is returned so the
// caller's subsequent Store avoids a second embedding call.
func (c *Cache) Lookup(ctx context.Context, req models.JobContext) models.LookupResult {
	start := time.Now()
	result := c.lookup(ctx, req)
	c.logEvent(ctx, models.CacheEvent{
		Op:         models.EventLookup,
		Tier:       result.Tier,
		DocType:    req.DocType,
		Role:       req.Role,
		Company:    req.Company,
		Similarity: result.Similarity,
		LatencyMs:  time.Since(start).Milliseconds(),
	})
	return result
}

func (c *Cache) lookup(ctx context.Context, req models.JobContext) models.LookupResult {
	miss := models.LookupResult{Tier: models.TierMiss}
	if !c.opts.Enabled || c.store == nil || !c.store.Available() {
		return miss
	}
	if !req.DocType.Valid() {
		log.Printf("document cache: unknown doc type %q", req.DocType)
		return miss
	}

	k := computeKeys(req)

	// Tier 1: exact job fingerprint.
	if result, ok := c.tryFingerprint(ctx, models.TierExact, k.jobFP, k, req.DocType); ok {
		return result
	}

	// Tiers 2a/2b apply to resumes only: cover letters are company-specific
	// by design and must not be reused across companies.
	if req.DocType == models.DocTypeResume {
		if result, ok := c.tryFingerprintKey(ctx, models.TierRole, k.roleFP, k, req.DocType, c.store.FindByRoleFingerprint); ok {
			return result
		}
		if result, ok := c.tryFingerprintKey(ctx, models.TierArchetype, k.archetypeFP, k, req.DocType, c.store.FindByArchetypeFingerprint); ok {
			return result
		}
	}

	// Tier 3: semantic similarity over the job description.
	return c.lookupSemantic(ctx, req, k)
}

func (c *Cache) tryFingerprint(ctx context.Context, tier models.LookupTier, fp string, k keys, docType models.DocumentType) (models.LookupResult, bool) {
	return c.tryFingerprintKey(ctx, tier, fp, k, docType, c.store.FindExact)
}

type finder func(ctx context.Context, key, contentHash string, docType models.DocumentType) (*models.CacheEntry, error)

func (c *Cache) tryFingerprintKey(ctx context.Context, tier models.LookupTier, fp string, k keys, docType models.DocumentType, find finder) (models.LookupResult, bool) {
	entry, err := find(ctx, fp, k.contentHash, docType)
	if err != nil {
		log.Printf("document cache: %s lookup failed: %v", tier, err)
		return models.LookupResult{}, false
	}
	if entry == nil {
		return models.LookupResult{}, false
	}
	if !json.Valid(entry.Document) {
		// Corrupt payload: treat this tier as a miss and keep going.
		log.Printf("document cache: corrupt payload in entry %d, skipping %s tier", entry.ID, tier)
		return models.LookupResult{}, false
	}

	if c.opts.DryRun {
		// Self-validate: log the would-be hit and keep walking the tiers.
		log.Printf("document cache: dry-run would have hit tier=%s entry=%d", tier, entry.ID)
		return models.LookupResult{}, false
	}

	c.recordHit(ctx, entry.ID)
	return models.LookupResult{
		Tier:     tier,
		Document: entry.Document,
		CacheID:  entry.ID,
	}, true
}

func (c *Cache) lookupSemantic(ctx context.Context, req models.JobContext, k keys) models.LookupResult {
	miss := models.LookupResult{Tier: models.TierMiss}
	if req.JobDescription == "" {
		return miss
	}

	emb, err := c.embedder.Embed(ctx, req.JobDescription)
	if err != nil {
		log.Printf("document cache: embedding failed: %v", err)
		return miss
	}
	miss.Embedding = emb

	results, err := c.store.FindSimilar(ctx, emb, k.contentHash, req.DocType, similarK)
	if err != nil {
		log.Printf("document cache: similarity search failed: %v", err)
		return miss
	}
	if len(results) == 0 {
		return miss
	}

	// Blend in tech-stack overlap for entries that stored one; entries
	// without a stored tech stack keep their pure embedding similarity.
	for i := range results {
		if len(results[i].Entry.TechStack) > 0 {
			jaccard := fingerprint.TechStackJaccard(req.TechStack, results[i].Entry.TechStack)
			results[i].Similarity = results[i].Similarity*embeddingWeight + jaccard*jaccardWeight
		}
	}
	sortBySimilarity(results)

	for _, r := range results {
		if r.Similarity < c.opts.PartialHitThreshold {
			break
		}
		if !json.Valid(r.Entry.Document) {
			log.Printf("document cache: corrupt payload in entry %d, trying next candidate", r.Entry.ID)
			continue
		}
		if c.opts.DryRun {
			log.Printf("document cache: dry-run would have hit semantic entry=%d similarity=%.3f", r.Entry.ID, r.Similarity)
			return miss
		}
		if r.Similarity >= c.opts.FullHitThreshold {
			c.recordHit(ctx, r.Entry.ID)
			return models.LookupResult{
				Tier:       models.TierSemanticFull,
				Document:   r.Entry.Document,
				Similarity: r.Similarity,
				CacheID:    r.Entry.ID,
				Embedding:  emb,
			}
		}
		// Partial hits are advisory and do not count as consumption.
		return models.LookupResult{
			Tier:       models.TierSemanticPartial,
			Document:   r.Entry.Document,
			Similarity: r.Similarity,
			CacheID:    r.Entry.ID,
			Embedding:  emb,
		}
	}
	return miss
}

func sortBySimilarity(results []models.SimilarEntry) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Similarity > results[j-1].Similarity; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func (c *Cache) recordHit(ctx context.Context, id int64) {
	if err := c.store.RecordHit(ctx, id); err != nil {
		log.Printf("document cache: record hit failed: %v", err)
	}
}

// Store persists a generated document. Best-effort: every failure is logged
// and swallowed so caching can never fail the generation pipeline. A
// precomputed embedding (from a prior Lookup miss) avoids a second embedding
// call.
func (c *Cache) Store(ctx context.Context, req models.JobContext, document []byte, modelVersion string, precomputed []float32) {
	if !req.DocType.Valid() {
		log.Printf("document cache: unknown doc type %q, skipping store", req.DocType)
		return
	}
	k := computeKeys(req)
	c.persist(ctx, req, k, k.jobFP, document, modelVersion, precomputed)
}

// persist writes a document under the given dedup key.
func (c *Cache) persist(ctx context.Context, req models.JobContext, k keys, jobKey string, document []byte, modelVersion string, precomputed []float32) {
	start := time.Now()
	if !c.opts.Enabled || c.store == nil {
		return
	}
	if !c.store.Available() {
		log.Printf("document cache: vector index unavailable, skipping store")
		return
	}
	if !json.Valid(document) {
		log.Printf("document cache: refusing to store non-JSON document")
		return
	}

	emb := precomputed
	if emb == nil {
		var err error
		emb, err = c.embedder.Embed(ctx, req.JobDescription)
		if err != nil {
			log.Printf("document cache: embedding failed, skipping store: %v", err)
			return
		}
	}

	err := c.store.Store(ctx, models.StoreParams{
		JobFingerprint:       jobKey,
		RoleFingerprint:      k.roleFP,
		ArchetypeFingerprint: k.archetypeFP,
		DocType:              req.DocType,
		RoleNormalized:       k.roleNormalized,
		TechStack:            fingerprint.NormalizeTechStack(req.TechStack),
		Document:             document,
		JobDescription:       req.JobDescription,
		Company:              req.Company,
		ContentHash:          k.contentHash,
		ModelVersion:         modelVersion,
		Embedding:            emb,
	})
	if err != nil {
		log.Printf("document cache: store failed: %v", err)
		return
	}
	c.logEvent(ctx, models.CacheEvent{
		Op:        models.EventStore,
		DocType:   req.DocType,
		Role:      req.Role,
		Company:   req.Company,
		LatencyMs: time.Since(start).Milliseconds(),
	})
}

// LookupCoverLetterBody returns cached cover-letter body paragraphs for the
// request's role, or nil. Bodies are role-keyed rather than company-keyed:
// the role fingerprint doubles as the dedup key so the same body is not
// duplicated per company.
func (c *Cache) LookupCoverLetterBody(ctx context.Context, req models.JobContext) *models.CoverLetterBody {
	if !c.opts.Enabled || c.store == nil || !c.store.Available() {
		return nil
	}

	k := computeKeys(req)
	entry, err := c.store.FindExact(ctx, k.roleFP, k.contentHash, models.DocTypeCoverLetterBody)
	if err != nil {
		log.Printf("document cache: cover letter body lookup failed: %v", err)
		return nil
	}
	if entry == nil {
		return nil
	}

	var paragraphs []string
	if err := json.Unmarshal(entry.Document, &paragraphs); err != nil {
		log.Printf("document cache: corrupt cover letter body in entry %d", entry.ID)
		return nil
	}

	if c.opts.DryRun {
		log.Printf("document cache: dry-run would have hit cover letter body entry %d", entry.ID)
		return nil
	}

	c.recordHit(ctx, entry.ID)
	return &models.CoverLetterBody{Paragraphs: paragraphs, CacheID: entry.ID}
}

// StoreCoverLetterBody persists cover-letter body paragraphs keyed by role.
// Best-effort, like Store.
func (c *Cache) StoreCoverLetterBody(ctx context.Context, req models.JobContext, paragraphs []string, modelVersion string, precomputed []float32) {
	if len(paragraphs) == 0 {
		return
	}
	document, err := json.Marshal(paragraphs)
	if err != nil {
		log.Printf("document cache: marshal cover letter body: %v", err)
		return
	}

	body := req
	body.DocType = models.DocTypeCoverLetterBody
	k := computeKeys(body)
	// Role-keyed: the role fingerprint doubles as the dedup key so the same
	// body dedups across companies.
	c.persist(ctx, body, k, k.roleFP, document, modelVersion, precomputed)
}

func (c *Cache) logEvent(ctx context.Context, event models.CacheEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.Log(ctx, event); err != nil {
		log.Printf("document cache: event log error: %v", err)
	}
}
