// Package terminology normalizes marketing jargon in generated drafts
// so readers meet each abbreviation with its Japanese expansion first.
package terminology

import "regexp"

type expansion struct {
	pattern     *regexp.Regexp
	replacement string
}

// Application order is fixed so repeated runs produce identical text.
var abbreviationExpansions = []expansion{
	{regexp.MustCompile(`\bMMM\b`), "マーケティングミックスモデリング（MMM）"},
	{regexp.MustCompile(`\bCMP\b`), "同意管理プラットフォーム（CMP）"},
	{regexp.MustCompile(`\bKPI\b`), "重要業績評価指標（KPI）"},
	{regexp.MustCompile(`\bKGI\b`), "重要目標達成指標（KGI）"},
	{regexp.MustCompile(`\bLTV\b`), "顧客生涯価値（LTV）"},
	{regexp.MustCompile(`\bCRM\b`), "顧客関係管理（CRM）"},
}

var slashExpressions = []expansion{
	{regexp.MustCompile(`アトリビューション/リフト/MMM`), "アトリビューション分析やリフト計測、MMM（マーケティングミックスモデリング）など"},
	{regexp.MustCompile(`Owned/Earned/Paid`), "自社メディアや獲得メディア、有料広告など（Owned/Earned/Paidメディア）"},
	{regexp.MustCompile(`CMP/Consent Mode v2/拡張コンバージョン`), "CMPやConsent Mode v2、拡張コンバージョンなど"},
}

// ExpandAbbreviations replaces the first occurrence of each known
// abbreviation with its spelled-out form. Later occurrences keep the
// short form, matching how human editors introduce terms.
func ExpandAbbreviations(text string) string {
	for _, e := range abbreviationExpansions {
		replaced := false
		text = e.pattern.ReplaceAllStringFunc(text, func(match string) string {
			if replaced {
				return match
			}
			replaced = true
			return e.replacement
		})
	}
	return text
}

// NormalizeSlashExpressions rewrites slash-delimited jargon runs into
// readable Japanese phrasing. All occurrences are replaced.
func NormalizeSlashExpressions(text string) string {
	for _, e := range slashExpressions {
		text = e.pattern.ReplaceAllString(text, e.replacement)
	}
	return text
}

// Normalize applies slash normalization first so abbreviation expansion
// sees the rewritten text.
func Normalize(text string) string {
	return ExpandAbbreviations(NormalizeSlashExpressions(text))
}
