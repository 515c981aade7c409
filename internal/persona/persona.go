// Package persona derives reader-facing Japanese labels from structured
// persona data so drafts open with a natural audience statement.
package persona

import (
	"strings"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
)

var experienceLabels = map[string]string{
	"beginner":     "1年目くらい",
	"intermediate": "2〜3年目くらい",
	"expert":       "5年以上の経験を持つ",
}

var roleLabels = map[string]string{
	"marketing_manager":    "マーケティング担当",
	"marketing_specialist": "マーケティング担当",
	"growth_lead":          "グロース担当",
	"business_owner":       "経営者・事業責任者",
	"founder":              "創業者・事業責任者",
	"engineer":             "エンジニア",
	"product_manager":      "プロダクトマネージャー",
	"data_analyst":         "データ分析担当",
	"sales_manager":        "営業マネージャー",
}

// InferLabel builds a Japanese audience label from the reader persona,
// e.g. "マーケティング担当になって2〜3年目くらいの方". Unknown roles fall
// back to the literal job role when it reads like a role description, or
// to 担当者 otherwise.
func InferLabel(reader core.ReaderPersona) string {
	yearsLabel := experienceLabels[strings.ToLower(strings.TrimSpace(reader.ExperienceYears))]

	role := strings.TrimSpace(reader.JobRole)
	roleLabel := roleLabels[strings.ToLower(role)]
	if roleLabel == "" && role != "" && runeLen(role) <= 12 && !looksLikePersonName(role) {
		roleLabel = role
	}
	if roleLabel == "" {
		roleLabel = "担当者"
	}

	if yearsLabel != "" {
		return roleLabel + "になって" + yearsLabel + "の方"
	}
	return roleLabel + "の方"
}

// IntroClause renders the standard opening line naming the audience.
func IntroClause(label string) string {
	normalized := strings.TrimSpace(label)
	if normalized == "" {
		normalized = "担当者の方"
	}
	return "この記事は、" + normalized + "に向けて書かれています。"
}

// looksLikePersonName filters out values that read like a personal name
// rather than a role, to avoid awkward intro sentences.
func looksLikePersonName(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r >= 'ァ' && r <= 'ヶ' {
			return true
		}
	}
	if strings.ContainsAny(value, " 　") {
		return true
	}
	return runeLen(value) <= 4
}

func runeLen(s string) int { return len([]rune(s)) }
