package llm

import (
	"regexp"
	"strings"
)

// citationPattern matches URL-bearing bracketed references in the
// formats the grounding directive asks for: [Source: URL], [出典: URL],
// [参考: URL].
var citationPattern = regexp.MustCompile(`(?i)\[(?:Source|出典|参考):?\s*([^\]]+)\]`)

// citationStripPattern also consumes spacing immediately before a
// marker so removal leaves no double spaces behind.
var citationStripPattern = regexp.MustCompile(`(?i)[ \t]*\[(?:Source|出典|参考):?\s*[^\]]+\]`)

// ExtractCitations pulls citation URIs out of generated text. Only
// matches whose payload looks like an absolute URL are kept. The input
// text is never modified.
func ExtractCitations(text string) []Citation {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	citations := make([]Citation, 0, len(matches))
	for _, m := range matches {
		uri := strings.TrimSpace(m[1])
		if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
			continue
		}
		if seen[uri] {
			continue
		}
		seen[uri] = true
		citations = append(citations, Citation{URI: uri, Title: uri})
	}
	if len(citations) == 0 {
		return nil
	}
	return citations
}

// StripCitationMarkers removes citation markers while keeping the
// surrounding prose readable. Spacing away from the marker sites is
// left untouched.
func StripCitationMarkers(text string) string {
	return strings.TrimSpace(citationStripPattern.ReplaceAllString(text, ""))
}
