package models

// PersonalInfo holds the profile fields that influence generated documents.
type PersonalInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Location  string `json:"location"`
	Website   string `json:"website"`
	Headline  string `json:"headline"`
	Summary   string `json:"summary"`
}

// ContentItem is one entry of the user's profile content tree (a job, project,
// education entry, or a bullet under one of those).
type ContentItem struct {
	ID          int64    `json:"id"`
	ParentID    int64    `json:"parent_id"`
	Order       int      `json:"order"`
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

// PromptTemplates holds the user-editable prompt wording per document type.
// Any edit changes the content hash and invalidates cached documents.
type PromptTemplates struct {
	Resume          string `json:"resume"`
	CoverLetter     string `json:"cover_letter"`
	CoverLetterBody string `json:"cover_letter_body"`
}

// JobContext is everything the cache needs to identify a document request:
// the current profile snapshot plus the job posting being applied to.
type JobContext struct {
	PersonalInfo    PersonalInfo    `json:"personal_info"`
	ContentItems    []ContentItem   `json:"content_items"`
	PromptTemplates PromptTemplates `json:"prompt_templates"`
	DocType         DocumentType    `json:"doc_type"`
	Role            string          `json:"role"`
	Company         string          `json:"company"`
	JobDescription  string          `json:"job_description"`
	// TechStack is the technology list extracted by job matching.
	TechStack []string `json:"tech_stack"`
}
