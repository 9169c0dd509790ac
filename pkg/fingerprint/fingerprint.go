// Package fingerprint computes the deterministic content and job fingerprints
// that key the document cache. All functions are pure: no state, no I/O.
package fingerprint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/draftly-ai/draftly/pkg/models"
)

var seniorityPrefix = regexp.MustCompile(`^(senior|junior|lead|staff|principal|sr\.?|jr\.?)\s+`)

// NormalizeRole lowercases and trims a job title and strips a leading seniority
// token, so "Senior Frontend Engineer" and "Frontend Engineer" collapse to one
// cache identity.
func NormalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	return strings.TrimSpace(seniorityPrefix.ReplaceAllString(r, ""))
}

// archetypeKeywords maps role keywords to coarse role families, checked in order.
var archetypeKeywords = []struct {
	keyword   string
	archetype string
}{
	{"fullstack", "fullstack"},
	{"full stack", "fullstack"},
	{"full-stack", "fullstack"},
	{"frontend", "frontend"},
	{"front end", "frontend"},
	{"front-end", "frontend"},
	{"backend", "backend"},
	{"back end", "backend"},
	{"back-end", "backend"},
	{"mobile", "mobile"},
	{"ios", "mobile"},
	{"android", "mobile"},
	{"data scien", "data"},
	{"data engineer", "data"},
	{"machine learning", "data"},
	{"ml engineer", "data"},
	{"devops", "devops"},
	{"site reliability", "devops"},
	{"platform engineer", "devops"},
	{"security", "security"},
	{"qa", "qa"},
	{"quality assurance", "qa"},
	{"test engineer", "qa"},
	{"designer", "design"},
	{"product manager", "product"},
}

// RoleArchetype maps a normalized role to a coarse role family. Roles outside
// the known families fall back to the normalized role itself, which makes the
// archetype fingerprint no broader than the role fingerprint for them.
func RoleArchetype(roleNormalized string) string {
	for _, m := range archetypeKeywords {
		if strings.Contains(roleNormalized, m.keyword) {
			return m.archetype
		}
	}
	return roleNormalized
}

// NormalizeTechStack lowercases, trims, deduplicates and sorts a tech stack so
// equivalent stacks produce identical fingerprints regardless of input order.
func NormalizeTechStack(stack []string) []string {
	seen := make(map[string]bool, len(stack))
	out := make([]string, 0, len(stack))
	for _, s := range stack {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// canonicalItem is the reduced, prompt-relevant view of a content item used
// for content hashing. Fields that do not influence generated output are
// deliberately excluded.
type canonicalItem struct {
	ParentID    int64    `json:"parent_id"`
	Order       int      `json:"order"`
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Role        string   `json:"role"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Location    string   `json:"location"`
	Website     string   `json:"website"`
	AIContext   string   `json:"ai_context"`
}

type canonicalProfile struct {
	Personal  []string        `json:"personal"`
	Items     []canonicalItem `json:"items"`
	Templates []string        `json:"templates"`
}

// ContentHash computes a single hash over everything in the profile that
// influences generated output. It is order-independent with respect to the
// content-item array: items are sorted by (parent, order, id) internally.
// Two profiles with equal hash produce the same document for the same job.
func ContentHash(personal models.PersonalInfo, items []models.ContentItem, templates models.PromptTemplates) string {
	canon := canonicalProfile{
		Personal: []string{
			strings.TrimSpace(personal.FirstName),
			strings.TrimSpace(personal.LastName),
			strings.TrimSpace(personal.Email),
			strings.TrimSpace(personal.Phone),
			strings.TrimSpace(personal.Location),
			strings.TrimSpace(personal.Website),
			strings.TrimSpace(personal.Headline),
			strings.TrimSpace(personal.Summary),
		},
		Items:     make([]canonicalItem, 0, len(items)),
		Templates: []string{templates.Resume, templates.CoverLetter, templates.CoverLetterBody},
	}

	for _, it := range items {
		skills := make([]string, 0, len(it.Skills))
		for _, s := range it.Skills {
			skills = append(skills, strings.ToLower(strings.TrimSpace(s)))
		}
		sort.Strings(skills)
		canon.Items = append(canon.Items, canonicalItem{
			ParentID:    it.ParentID,
			Order:       it.Order,
			ID:          it.ID,
			Title:       it.Title,
			Role:        it.Role,
			Description: it.Description,
			Skills:      skills,
			StartDate:   it.StartDate,
			EndDate:     it.EndDate,
			Location:    it.Location,
			Website:     it.Website,
			AIContext:   it.AIContext,
		})
	}

	sort.Slice(canon.Items, func(i, j int) bool {
		a, b := canon.Items[i], canon.Items[j]
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})

	return hashJSON(canon)
}

// JobFingerprint identifies a (role, company, tech stack, profile) combination.
// Company is always included, even with an empty tech stack, to avoid
// cross-company collisions.
func JobFingerprint(roleNormalized string, techStack []string, contentHash, company string) string {
	return hashJSON([]any{
		roleNormalized,
		strings.ToLower(strings.TrimSpace(company)),
		NormalizeTechStack(techStack),
		contentHash,
	})
}

// RoleFingerprint is JobFingerprint without the company: intentionally broader,
// letting a resume generated for one company be reused for another with the
// same role, tech stack and profile.
func RoleFingerprint(roleNormalized string, techStack []string, contentHash string) string {
	return hashJSON([]any{
		roleNormalized,
		NormalizeTechStack(techStack),
		contentHash,
	})
}

// ArchetypeFingerprint groups by coarse role family and profile.
func ArchetypeFingerprint(roleNormalized, contentHash string) string {
	return hashJSON([]any{
		RoleArchetype(roleNormalized),
		contentHash,
	})
}

// TechStackJaccard computes case-insensitive |A∩B| / |A∪B|. Returns 0 if
// either stack is empty.
func TechStackJaccard(a, b []string) float64 {
	setA := NormalizeTechStack(a)
	setB := NormalizeTechStack(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inA := make(map[string]bool, len(setA))
	for _, s := range setA {
		inA[s] = true
	}

	intersection := 0
	for _, s := range setB {
		if inA[s] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func hashJSON(v any) string {
	data, _ := json.Marshal(v)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h)
}
