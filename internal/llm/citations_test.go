package llm

import (
	"strings"
	"testing"
)

func TestExtractCitations(t *testing.T) {
	text := "シェアは32%です。[出典: https://example.com/a] 比較は公式を参照。[Source: https://example.com/b] " +
		"再掲します。[出典: https://example.com/a] 社内資料より。[参考: internal-memo]"
	got := ExtractCitations(text)

	if len(got) != 2 {
		t.Fatalf("expected 2 deduplicated URL citations, got %+v", got)
	}
	if got[0].URI != "https://example.com/a" || got[1].URI != "https://example.com/b" {
		t.Fatalf("unexpected citations %+v", got)
	}
}

func TestExtractCitationsNone(t *testing.T) {
	if got := ExtractCitations("マーカーのない本文です。"); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	// Non-URL payloads are dropped entirely.
	if got := ExtractCitations("[出典: 社内ヒアリング]"); got != nil {
		t.Fatalf("expected nil for non-URL citation, got %+v", got)
	}
}

func TestStripCitationMarkers(t *testing.T) {
	text := "シェアは32%です。 [出典: https://example.com/a] 続きの文です。"
	got := StripCitationMarkers(text)

	if strings.Contains(got, "出典") || strings.Contains(got, "example.com") {
		t.Fatalf("markers should be removed, got %q", got)
	}
	if strings.Contains(got, "  ") {
		t.Fatalf("leftover double spaces should collapse, got %q", got)
	}
	if !strings.Contains(got, "シェアは32%です。") || !strings.Contains(got, "続きの文です。") {
		t.Fatalf("prose must survive stripping, got %q", got)
	}
}

func TestStripCitationMarkersKeepsUnrelatedSpacing(t *testing.T) {
	text := "- 比較表\n  - 月額は  1,980円です。[出典: https://example.com/price]\n補足です。"
	got := StripCitationMarkers(text)

	if strings.Contains(got, "出典") {
		t.Fatalf("marker should be removed, got %q", got)
	}
	if !strings.Contains(got, "  - 月額は  1,980円です。") {
		t.Fatalf("indentation and spacing away from the marker must survive, got %q", got)
	}
}
