package quality

import (
	"fmt"
	"strings"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
)

// Named rubrics. The eeat variant adds an expertise criterion on top of
// the standard set.
const (
	RubricStandard    = "standard"
	RubricEEATFocused = "eeat-focused"
)

// Qualitative buckets per criterion.
const (
	ScoreGood = "good"
	ScoreFair = "fair"
	ScorePoor = "poor"
)

// Thresholds maps raw signals into qualitative buckets.
type Thresholds struct {
	// Duplication score at or below these marks is good / fair.
	DuplicationGood float64
	DuplicationFair float64
	// Fraction of numeric facts carrying a citation at or above these
	// marks is good / fair.
	CitationGoodRatio float64
	CitationFairRatio float64
	// Total phrase hits at or below this mark is fair; zero is good.
	PhraseFairMax int
	// Minimum citations for a YMYL draft to avoid a poor expertise score.
	ExpertCitationMin int
}

// DefaultThresholds returns the bucket boundaries used when the caller
// does not override them.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DuplicationGood:   0.10,
		DuplicationFair:   0.30,
		CitationGoodRatio: 0.80,
		CitationFairRatio: 0.50,
		PhraseFairMax:     2,
		ExpertCitationMin: 3,
	}
}

// rubricCriteria fixes criterion order per rubric so summaries are
// byte-identical across runs.
func rubricCriteria(rubric string) []string {
	switch rubric {
	case RubricEEATFocused:
		return []string{"citation_coverage", "originality", "style", "expertise"}
	default:
		return []string{"citation_coverage", "originality", "style"}
	}
}

// scoreRubric maps raw report signals into per-criterion buckets and a
// one-line summary.
func scoreRubric(rubric string, t Thresholds, report core.QualityReport) (map[string]string, string) {
	criteria := rubricCriteria(rubric)
	scores := make(map[string]string, len(criteria))

	var parts []string
	for _, c := range criteria {
		var score string
		switch c {
		case "citation_coverage":
			score = scoreCitationCoverage(t, report)
		case "originality":
			score = scoreOriginality(t, report.DuplicationScore)
		case "style":
			score = scoreStyle(t, report)
		case "expertise":
			score = scoreExpertise(t, report)
		}
		scores[c] = score
		parts = append(parts, c+"="+score)
	}

	summary := fmt.Sprintf("rubric=%s %s", rubric, strings.Join(parts, " "))
	return scores, summary
}

func scoreCitationCoverage(t Thresholds, report core.QualityReport) string {
	if report.NumericFactCount == 0 {
		return ScoreGood
	}
	covered := report.NumericFactCount - len(report.CitationsMissing)
	ratio := float64(covered) / float64(report.NumericFactCount)
	switch {
	case ratio >= t.CitationGoodRatio:
		return ScoreGood
	case ratio >= t.CitationFairRatio:
		return ScoreFair
	default:
		return ScorePoor
	}
}

func scoreOriginality(t Thresholds, duplication float64) string {
	switch {
	case duplication <= t.DuplicationGood:
		return ScoreGood
	case duplication <= t.DuplicationFair:
		return ScoreFair
	default:
		return ScorePoor
	}
}

func scoreStyle(t Thresholds, report core.QualityReport) string {
	hits := len(report.ExcessiveClaims) + len(report.AbstractClaims) + len(report.StructureWarnings)
	switch {
	case hits == 0:
		return ScoreGood
	case hits <= t.PhraseFairMax:
		return ScoreFair
	default:
		return ScorePoor
	}
}

func scoreExpertise(t Thresholds, report core.QualityReport) string {
	if !report.IsYMYL {
		return ScoreGood
	}
	// Sensitive topics need sourcing before a human expert signs off.
	if report.CitationCount >= t.ExpertCitationMin {
		return ScoreFair
	}
	return ScorePoor
}
