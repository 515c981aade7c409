package quality

import (
	"regexp"
	"strings"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
)

// Config controls quality evaluation. All knobs are plain data so the
// engine stays a pure function over (input, config).
type Config struct {
	ExcessivePhrases []string
	AbstractPhrases  []string
	YMYLMarkers      []string
	Rubric           string
	Thresholds       Thresholds
	// ProximityWindow is how many following sentences may carry the
	// citation for a numeric claim.
	ProximityWindow int
	// ShingleSize is the rune n-gram width for duplication scoring.
	ShingleSize int
	// MaxSentenceLength bounds sentence length for structure checks.
	MaxSentenceLength int
}

// DefaultConfig returns the evaluation settings used when the caller
// does not override them.
func DefaultConfig() Config {
	return Config{
		ExcessivePhrases:  DefaultExcessivePhrases,
		AbstractPhrases:   DefaultAbstractPhrases,
		YMYLMarkers:       DefaultYMYLMarkers,
		Rubric:            RubricStandard,
		Thresholds:        DefaultThresholds(),
		ProximityWindow:   1,
		ShingleSize:       5,
		MaxSentenceLength: 80,
	}
}

// Input is the material under evaluation.
type Input struct {
	PrimaryKeyword string
	Body           string
	// NegativeCorpus holds previously published text the draft must not
	// duplicate. Usually empty.
	NegativeCorpus []string
}

var (
	citationMarkerPattern = regexp.MustCompile(`(?i)\[(?:Source|出典|参考):?\s*[^\]]+\]`)
	numericFactPattern    = regexp.MustCompile(`\d+(?:[.,]\d+)?\s*(?:%|％|円|ドル|人|件|社|年|ヶ月|か月|倍|割|万|億|兆|時間|分|秒|km|kg|GB|MB|TB|pt|ポイント)`)
	sentenceSplitPattern  = regexp.MustCompile(`[。！？\n]`)
)

// Evaluate produces a quality report for a draft. It is deterministic,
// performs no I/O, and never fails: malformed or empty input yields a
// zero-signal report with the Degraded flag set so callers always have
// something to display.
func Evaluate(in Input, cfg Config) core.QualityReport {
	if cfg.ShingleSize <= 0 {
		cfg.ShingleSize = 5
	}
	if cfg.ProximityWindow < 0 {
		cfg.ProximityWindow = 0
	}
	if cfg.MaxSentenceLength <= 0 {
		cfg.MaxSentenceLength = 80
	}
	if cfg.Rubric == "" {
		cfg.Rubric = RubricStandard
	}

	body := strings.TrimSpace(in.Body)
	report := core.QualityReport{
		IsYMYL: matchesAnyFold(in.PrimaryKeyword, cfg.YMYLMarkers) ||
			matchesAnyFold(body, cfg.YMYLMarkers),
	}

	if body == "" {
		// Zero-signal path. The YMYL flag from the keyword still stands
		// because expert review is about the topic, not the text.
		report.Degraded = true
		report.RequiresExpertReview = report.IsYMYL
		report.RubricScores = map[string]string{}
		return report
	}

	report.DuplicationScore = duplicationScore(body, in.NegativeCorpus, cfg.ShingleSize)
	report.ExcessiveClaims = detectPhrases(body, cfg.ExcessivePhrases)
	report.AbstractClaims = detectPhrases(body, cfg.AbstractPhrases)
	report.CitationCount = len(citationMarkerPattern.FindAllString(body, -1))

	numericFacts, missing := auditCitations(body, cfg.ProximityWindow)
	report.NumericFactCount = numericFacts
	report.CitationsMissing = missing

	report.StructureWarnings = ValidateStructure(body, cfg.MaxSentenceLength)

	report.RubricScores, report.RubricSummary = scoreRubric(cfg.Rubric, cfg.Thresholds, report)
	// Expert review is tied to topic sensitivity, not score quality;
	// weak scores surface through the rubric itself.
	report.RequiresExpertReview = report.IsYMYL
	return report
}

// duplicationScore is the fraction of the draft's rune shingles that
// also occur in the negative corpus. An empty corpus or a draft shorter
// than one shingle scores 0.
func duplicationScore(body string, corpus []string, shingleSize int) float64 {
	if len(corpus) == 0 {
		return 0
	}
	draftShingles := shingles(body, shingleSize)
	if len(draftShingles) == 0 {
		return 0
	}

	corpusSet := make(map[string]bool)
	for _, doc := range corpus {
		for _, s := range shingles(doc, shingleSize) {
			corpusSet[s] = true
		}
	}
	if len(corpusSet) == 0 {
		return 0
	}

	seen := make(map[string]bool, len(draftShingles))
	overlap := 0
	for _, s := range draftShingles {
		if seen[s] {
			continue
		}
		seen[s] = true
		if corpusSet[s] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(seen))
}

// shingles returns overlapping rune n-grams of normalized text.
// Whitespace is collapsed so formatting differences do not mask reuse.
func shingles(text string, size int) []string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) < size {
		return nil
	}
	out := make([]string, 0, len(runes)-size+1)
	for i := 0; i+size <= len(runes); i++ {
		out = append(out, string(runes[i:i+size]))
	}
	return out
}

// auditCitations counts numeric-fact sentences and lists the ones with
// no citation marker in the same sentence or within the proximity
// window of following sentences.
func auditCitations(body string, window int) (numericFacts int, missing []string) {
	sentences := sentenceSplitPattern.Split(body, -1)
	cited := make([]bool, len(sentences))
	for i, s := range sentences {
		if !citationMarkerPattern.MatchString(s) {
			continue
		}
		cited[i] = true
		// A marker written after the sentence terminator splits into its
		// own fragment; it cites the sentence it follows.
		if i > 0 && strings.TrimSpace(citationMarkerPattern.ReplaceAllString(s, "")) == "" {
			cited[i-1] = true
		}
	}

	for i, s := range sentences {
		if !numericFactPattern.MatchString(s) {
			continue
		}
		numericFacts++

		covered := false
		for j := i; j <= i+window && j < len(sentences); j++ {
			if cited[j] {
				covered = true
				break
			}
		}
		if !covered {
			missing = append(missing, identifyingSnippet(s))
		}
	}
	return numericFacts, missing
}

// identifyingSnippet returns a short stable handle for a sentence so
// reports stay readable.
func identifyingSnippet(sentence string) string {
	cleaned := strings.TrimSpace(citationMarkerPattern.ReplaceAllString(sentence, ""))
	runes := []rune(cleaned)
	if len(runes) <= 50 {
		return cleaned
	}
	return string(runes[:50]) + "…"
}

// matchesAnyFold reports whether text contains any marker,
// case-insensitively for ASCII markers.
func matchesAnyFold(text string, markers []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
