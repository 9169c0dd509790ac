package fingerprint

import (
	"testing"

	"github.com/draftly-ai/draftly/pkg/models"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Senior Frontend Engineer", "frontend engineer"},
		{"Frontend Engineer", "frontend engineer"},
		{"  Junior Backend Developer ", "backend developer"},
		{"Sr. Software Engineer", "software engineer"},
		{"Jr Data Analyst", "data analyst"},
		{"Lead DevOps Engineer", "devops engineer"},
		{"Staff Engineer", "engineer"},
		{"Principal Architect", "architect"},
		{"Engineer", "engineer"},
		// Seniority token only stripped at the start.
		{"Engineering Lead", "engineering lead"},
	}
	for _, tt := range tests {
		if got := NormalizeRole(tt.in); got != tt.want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoleArchetype(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"frontend engineer", "frontend"},
		{"full-stack developer", "fullstack"},
		{"ios developer", "mobile"},
		{"machine learning engineer", "data"},
		{"site reliability engineer", "devops"},
		{"underwater basket weaver", "underwater basket weaver"},
	}
	for _, tt := range tests {
		if got := RoleArchetype(tt.in); got != tt.want {
			t.Errorf("RoleArchetype(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func testProfile() (models.PersonalInfo, []models.ContentItem, models.PromptTemplates) {
	personal := models.PersonalInfo{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Headline:  "Software Engineer",
	}
	items := []models.ContentItem{
		{ID: 1, ParentID: 0, Order: 0, Title: "Acme Corp", Role: "Engineer", Skills: []string{"Go", "SQL"}},
		{ID: 2, ParentID: 1, Order: 0, Description: "Built the billing system"},
		{ID: 3, ParentID: 1, Order: 1, Description: "Led the cache rewrite"},
	}
	templates := models.PromptTemplates{Resume: "write a resume", CoverLetter: "write a letter"}
	return personal, items, templates
}

func TestContentHashDeterministic(t *testing.T) {
	personal, items, templates := testProfile()
	h1 := ContentHash(personal, items, templates)
	h2 := ContentHash(personal, items, templates)
	if h1 != h2 {
		t.Error("same profile should produce same hash")
	}
	if len(h1) != 64 {
		t.Errorf("expected sha256 hex hash, got %q", h1)
	}
}

func TestContentHashOrderIndependent(t *testing.T) {
	personal, items, templates := testProfile()
	h1 := ContentHash(personal, items, templates)

	reversed := make([]models.ContentItem, len(items))
	for i, it := range items {
		reversed[len(items)-1-i] = it
	}
	h2 := ContentHash(personal, reversed, templates)

	if h1 != h2 {
		t.Error("content hash should not depend on item array order")
	}
}

func TestContentHashSensitivity(t *testing.T) {
	personal, items, templates := testProfile()
	base := ContentHash(personal, items, templates)

	t.Run("personal field", func(t *testing.T) {
		p := personal
		p.Headline = "Staff Engineer"
		if ContentHash(p, items, templates) == base {
			t.Error("personal info edit should change hash")
		}
	})

	t.Run("item description", func(t *testing.T) {
		edited := append([]models.ContentItem(nil), items...)
		edited[1].Description = "Built the payments system"
		if ContentHash(personal, edited, templates) == base {
			t.Error("item edit should change hash")
		}
	})

	t.Run("item ordering field", func(t *testing.T) {
		edited := append([]models.ContentItem(nil), items...)
		edited[1].Order, edited[2].Order = edited[2].Order, edited[1].Order
		if ContentHash(personal, edited, templates) == base {
			t.Error("changing item order values should change hash")
		}
	})

	t.Run("prompt template", func(t *testing.T) {
		tpl := templates
		tpl.Resume = "write a better resume"
		if ContentHash(personal, items, tpl) == base {
			t.Error("template edit should change hash")
		}
	})
}

func TestJobFingerprint(t *testing.T) {
	hash := "abc123"

	f1 := JobFingerprint("frontend engineer", []string{"React", "TypeScript"}, hash, "Acme")
	f2 := JobFingerprint("frontend engineer", []string{"typescript", "react"}, hash, "ACME ")
	if f1 != f2 {
		t.Error("fingerprint should be case-insensitive on company and order-independent on tech stack")
	}

	if f1 == JobFingerprint("backend engineer", []string{"react", "typescript"}, hash, "acme") {
		t.Error("different role should change fingerprint")
	}
	if f1 == JobFingerprint("frontend engineer", []string{"react"}, hash, "acme") {
		t.Error("different tech stack should change fingerprint")
	}
	if f1 == JobFingerprint("frontend engineer", []string{"react", "typescript"}, "other", "acme") {
		t.Error("different content hash should change fingerprint")
	}
	if f1 == JobFingerprint("frontend engineer", []string{"react", "typescript"}, hash, "globex") {
		t.Error("different company should change fingerprint")
	}

	// Company still matters with an empty tech stack.
	e1 := JobFingerprint("frontend engineer", nil, hash, "acme")
	e2 := JobFingerprint("frontend engineer", nil, hash, "globex")
	if e1 == e2 {
		t.Error("company must be included even when tech stack is empty")
	}
}

func TestRoleFingerprintIgnoresCompany(t *testing.T) {
	hash := "abc123"
	f1 := RoleFingerprint("frontend engineer", []string{"react"}, hash)
	f2 := RoleFingerprint("frontend engineer", []string{"react"}, hash)
	if f1 != f2 {
		t.Error("role fingerprint should be deterministic")
	}
	j1 := JobFingerprint("frontend engineer", []string{"react"}, hash, "acme")
	j2 := JobFingerprint("frontend engineer", []string{"react"}, hash, "globex")
	if j1 == j2 {
		t.Error("job fingerprints for different companies should differ")
	}
	// Same role fingerprint regardless of which company's job produced it.
	if RoleFingerprint("frontend engineer", []string{"react"}, hash) != f1 {
		t.Error("role fingerprint must not depend on company")
	}
}

func TestTechStackJaccard(t *testing.T) {
	a := []string{"Go", "SQL", "Redis"}
	b := []string{"go", "sql", "kafka"}

	if got, want := TechStackJaccard(a, b), 0.5; got != want {
		t.Errorf("jaccard = %v, want %v", got, want)
	}
	if TechStackJaccard(a, b) != TechStackJaccard(b, a) {
		t.Error("jaccard should be symmetric")
	}
	if TechStackJaccard(a, a) != 1 {
		t.Error("jaccard of a non-empty set with itself should be 1")
	}
	if TechStackJaccard(nil, b) != 0 {
		t.Error("jaccard with an empty set should be 0")
	}
	if TechStackJaccard(a, nil) != 0 {
		t.Error("jaccard with an empty set should be 0")
	}
}

func TestNormalizeTechStack(t *testing.T) {
	got := NormalizeTechStack([]string{" Go ", "go", "SQL", "", "redis"})
	want := []string{"go", "redis", "sql"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
