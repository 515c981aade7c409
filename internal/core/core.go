package core

import "time"

// IntentType classifies the search intent a brief targets.
type IntentType string

const (
	IntentInformation IntentType = "information"
	IntentComparison  IntentType = "comparison"
	IntentTransaction IntentType = "transaction"
)

// ParseIntent maps a free-form model label onto a known intent.
// Unknown labels fall back to IntentInformation so intent estimation
// can never fail a run.
func ParseIntent(label string) (IntentType, bool) {
	switch IntentType(normalizeLabel(label)) {
	case IntentInformation:
		return IntentInformation, true
	case IntentComparison:
		return IntentComparison, true
	case IntentTransaction:
		return IntentTransaction, true
	}
	return IntentInformation, false
}

func normalizeLabel(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range label {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r >= 'a' && r <= 'z':
			out = append(out, r)
		}
	}
	return string(out)
}

// ArticleType describes the editorial shape of the article.
type ArticleType string

const (
	ArticleInformation ArticleType = "information"
	ArticleComparison  ArticleType = "comparison"
	ArticleRanking     ArticleType = "ranking"
	ArticleClosing     ArticleType = "closing"
)

// HeadingMode selects between model-generated and caller-supplied outlines.
type HeadingMode string

const (
	HeadingAuto   HeadingMode = "auto"
	HeadingManual HeadingMode = "manual"
)

// OutputFormat is the requested delivery format for the draft body.
type OutputFormat string

const (
	FormatDocs OutputFormat = "docs"
	FormatHTML OutputFormat = "html"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ReaderPersona describes the audience the article is written for.
type ReaderPersona struct {
	JobRole               string   `json:"job_role"`
	ExperienceYears       string   `json:"experience_years,omitempty"`
	Needs                 []string `json:"needs,omitempty"`
	Goals                 []string `json:"goals,omitempty"`
	PainPoints            []string `json:"pain_points,omitempty"`
	Tone                  string   `json:"tone,omitempty"`
	ProhibitedExpressions []string `json:"prohibited_expressions,omitempty"`
}

// WriterPersona describes the authorial voice the draft should carry.
type WriterPersona struct {
	Name      string   `json:"name"`
	Role      string   `json:"role,omitempty"`
	Expertise string   `json:"expertise,omitempty"`
	Voice     string   `json:"voice,omitempty"`
	Qualities []string `json:"qualities,omitempty"`
	Mission   string   `json:"mission,omitempty"`
}

// HeadingDirective controls outline generation. In manual mode the
// headings are used verbatim and no model call is made.
type HeadingDirective struct {
	Mode     HeadingMode `json:"mode"`
	Headings []string    `json:"headings,omitempty"`
}

// WordCountRange is the target length band for the full article body.
type WordCountRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ModelSelection pins a run to one provider/model pair.
type ModelSelection struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Brief is the immutable input describing the article to generate.
// It is created once per generation request and never mutated.
type Brief struct {
	JobID              string           `json:"job_id"`
	PrimaryKeyword     string           `json:"primary_keyword"`
	SupportingKeywords []string         `json:"supporting_keywords,omitempty"`
	Intent             IntentType       `json:"intent,omitempty"`
	ArticleType        ArticleType      `json:"article_type"`
	WordCountRange     WordCountRange   `json:"word_count_range"`
	OutputFormat       OutputFormat     `json:"output_format"`
	QualityRubric      string           `json:"quality_rubric,omitempty"`
	ProhibitedClaims   []string         `json:"prohibited_claims,omitempty"`
	ReaderPersona      ReaderPersona    `json:"reader_persona"`
	WriterPersona      WriterPersona    `json:"writer_persona"`
	HeadingDirective   HeadingDirective `json:"heading_directive"`
	ReferenceURLs      []string         `json:"reference_urls,omitempty"`
	PreferredSources   []string         `json:"preferred_sources,omitempty"`
	IntendedCTA        string           `json:"intended_cta,omitempty"`
	Model              ModelSelection   `json:"model"`
	Seed               int64            `json:"seed,omitempty"`
}

// Heading is one entry of the generated or supplied outline.
type Heading struct {
	Text           string `json:"text"`
	Summary        string `json:"summary,omitempty"`
	EstimatedWords int    `json:"estimated_words,omitempty"`
}

// Section is a drafted body section for one outline heading.
// Placeholder marks a section whose generation exhausted retries;
// the run continues and a warning is attached to the bundle.
type Section struct {
	Heading   string   `json:"heading"`
	Text      string   `json:"text"`
	Citations []string `json:"citations,omitempty"`
	// RawText keeps the marker-bearing model output so the citation
	// audit can locate markers by position. Not part of the bundle.
	RawText     string `json:"-"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// FAQEntry is one question/answer pair in the FAQ block.
type FAQEntry struct {
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Citations []string `json:"citations,omitempty"`
}

// OpenGraph holds social preview fields for the meta block.
type OpenGraph struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Meta carries title and description candidates for the article.
type Meta struct {
	TitleOptions       []string  `json:"title_options"`
	DescriptionOptions []string  `json:"description_options"`
	OG                 OpenGraph `json:"og"`
}

// InternalLinkCandidate is a ranked internal-link proposal against the
// published-article corpus.
type InternalLinkCandidate struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Anchor  string  `json:"anchor"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// QualityReport is the output of the quality engine. Computed fresh per
// run and never mutated after creation.
type QualityReport struct {
	DuplicationScore     float64           `json:"duplication_score"`
	ExcessiveClaims      []string          `json:"excessive_claims"`
	AbstractClaims       []string          `json:"abstract_claims"`
	CitationCount        int               `json:"citation_count"`
	NumericFactCount     int               `json:"numeric_fact_count"`
	CitationsMissing     []string          `json:"citations_missing"`
	IsYMYL               bool              `json:"is_ymyl"`
	RequiresExpertReview bool              `json:"requires_expert_review"`
	RubricScores         map[string]string `json:"rubric_scores"`
	RubricSummary        string            `json:"rubric_summary,omitempty"`
	StructureWarnings    []string          `json:"structure_warnings,omitempty"`
	Degraded             bool              `json:"degraded,omitempty"`
}

// Warning records a non-fatal stage degradation carried into the bundle.
type Warning struct {
	Stage   string `json:"stage"`
	Heading string `json:"heading,omitempty"`
	Message string `json:"message"`
}

// PipelineRun is the mutable aggregate tracking stage outputs as they
// complete. It is owned by exactly one pipeline execution; each stage
// output slot is written at most once per run.
type PipelineRun struct {
	RunID     string                  `json:"run_id"`
	JobID     string                  `json:"job_id"`
	Intent    IntentType              `json:"intent"`
	Outline   []Heading               `json:"outline"`
	Sections  []Section               `json:"sections"`
	FAQ       []FAQEntry              `json:"faq"`
	Meta      Meta                    `json:"meta"`
	Links     []InternalLinkCandidate `json:"links"`
	Quality   QualityReport           `json:"quality"`
	Warnings  []Warning               `json:"warnings"`
	StartedAt time.Time               `json:"started_at"`
}

// Bundle is the finalized artifact set from one pipeline run.
type Bundle struct {
	DraftID  string                  `json:"draft_id"`
	Status   RunStatus               `json:"status"`
	Intent   IntentType              `json:"intent"`
	Outline  []Heading               `json:"outline"`
	Sections []Section               `json:"sections"`
	FAQ      []FAQEntry              `json:"faq"`
	Meta     Meta                    `json:"meta"`
	Links    []InternalLinkCandidate `json:"links"`
	Quality  QualityReport           `json:"quality"`
	Warnings []Warning               `json:"warnings"`
	Metadata map[string]string       `json:"metadata"`
}

// Body joins the drafted sections into a single markdown document in
// outline order. Placeholder sections render their notice text so the
// quality report reflects the true degraded content.
func (b *Bundle) Body() string {
	return JoinSections(b.Sections)
}

// JoinSections renders sections as markdown with H2 headings.
func JoinSections(sections []Section) string {
	var out []byte
	for i, s := range sections {
		if i > 0 {
			out = append(out, '\n', '\n')
		}
		out = append(out, "## "...)
		out = append(out, s.Heading...)
		out = append(out, '\n', '\n')
		out = append(out, s.Text...)
	}
	return string(out)
}

// ArticleRecord is a corpus entry for internal-link retrieval. The
// corpus is external collaborator state shared across runs; entries are
// keyed by ID and upserts overwrite the prior embedding for that id.
type ArticleRecord struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet,omitempty"`
	Published bool      `json:"published"`
	Embedding []float64 `json:"embedding,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
