package quality

import "strings"

// DefaultExcessivePhrases lists hyperbolic, unverifiable superlatives
// that should not appear in a factual draft.
var DefaultExcessivePhrases = []string{
	"計り知れ",
	"魔法のよう",
	"姿が見えるでしょうか",
	"比類ない",
	"驚異的",
	"劇的に改善",
}

// DefaultAbstractPhrases lists vague causal assertions that lack
// specifics.
var DefaultAbstractPhrases = []string{
	"設定した条件",
	"自動で料金を調整",
	"競争力を維持",
	"最適化されていきます",
	"すべてを改善",
	"高い効果が期待できます",
}

// DefaultYMYLMarkers lists sensitive topic markers. A keyword or body
// match forces requires_expert_review regardless of other signals.
var DefaultYMYLMarkers = []string{
	"医療", "健康", "病気", "治療", "薬",
	"投資", "保険", "ローン", "税金", "年金",
	"法律", "訴訟", "弁護士",
	"安全", "災害",
	"medical", "health", "finance", "investment", "legal", "safety",
}

// detectPhrases scans text for literal, case-sensitive phrase matches.
// Each phrase is recorded once regardless of occurrence count; output
// order follows the configured list so reports stay deterministic.
func detectPhrases(text string, phrases []string) []string {
	var found []string
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if strings.Contains(text, p) {
			found = append(found, p)
		}
	}
	return found
}
