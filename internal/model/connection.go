package model

import "time"

// Connection represents a person record being enriched.
//
// Every enrichment-derived field is either unset or was set by exactly one
// successful merge: the merge engine fills gaps and never overwrites a
// populated field.
type Connection struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	ProfileURL  string `json:"profile_url"`

	Headline        string     `json:"headline,omitempty"`
	CurrentCompany  string     `json:"current_company,omitempty"`
	Location        string     `json:"location,omitempty"`
	ProfileImageURL string     `json:"profile_image_url,omitempty"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`

	// Industries is nil when never checked and an empty slice when the
	// provider was consulted and had none. Downstream consumers rely on
	// that distinction.
	Industries []string `json:"industries,omitempty"`

	Skills            []string         `json:"skills,omitempty"`
	Education         []Education      `json:"education,omitempty"`
	Certifications    []Certification  `json:"certifications,omitempty"`
	PreviousCompanies []string         `json:"previous_companies,omitempty"`
	Volunteering      []map[string]any `json:"volunteering,omitempty"`
	Publications      []map[string]any `json:"publications,omitempty"`
	Awards            []map[string]any `json:"awards,omitempty"`

	// IsEnriching marks an in-flight enrichment cycle. It is committed
	// before the external fetch so observers can see stuck records after a
	// crash.
	IsEnriching bool `json:"is_enriching"`

	LatestEnrichment *EnrichmentSummary `json:"latest_enrichment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enriched reports whether the record has a completed enrichment version.
// Records for which this is false form the orchestrator's backlog.
func (c *Connection) Enriched() bool {
	return c.LatestEnrichment != nil && c.LatestEnrichment.Version > 0
}

// Education is one schooling entry remapped from provider data.
// FieldOfStudy is not supplied by the identity provider and stays nil.
type Education struct {
	School       string  `json:"school_name"`
	FieldOfStudy *string `json:"field_of_study"`
	Degree       string  `json:"degree"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	Activities   string  `json:"activities"`
}

// Certification is one certification entry remapped from provider data.
type Certification struct {
	Title  string `json:"title"`
	Issuer string `json:"company_name"`
	Date   string `json:"date"`
}

// EnrichmentSummary is the denormalized latest_enrichment blob stored on the
// connection. It intentionally carries only a small digest, not the bulk
// structural data.
type EnrichmentSummary struct {
	Version   int              `json:"version"`
	Source    string           `json:"source"`
	Timestamp time.Time        `json:"timestamp"`
	Digest    EnrichmentDigest `json:"enrichment_summary"`
}

// EnrichmentDigest holds the headline fields and collection counts copied
// into the summary blob.
type EnrichmentDigest struct {
	Headline               string `json:"headline"`
	CurrentCompany         string `json:"current_company"`
	Location               string `json:"location"`
	SkillsCount            int    `json:"skills_count"`
	EducationCount         int    `json:"education_count"`
	PreviousCompaniesCount int    `json:"previous_companies_count"`
}

// Enrichment is one immutable history row recording a successful merge
// cycle. Versions are strictly increasing per connection, starting at 1.
// Rows are never updated or deleted.
type Enrichment struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	Version      int       `json:"version"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
}

// Candidate is an ephemeral disambiguation result. A candidate whose
// Summary is empty carries no usable signal and is dropped before ranking.
type Candidate struct {
	Summary string  `json:"summary"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}
