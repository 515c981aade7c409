package quality

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	h2Pattern      = regexp.MustCompile(`^##\s+(.+)$`)
	h3Pattern      = regexp.MustCompile(`^###\s+(.+)$`)
	markupStripper = regexp.MustCompile("[#>*_`\\[\\]()]")

	politeDrift = []*regexp.Regexp{
		regexp.MustCompile(`[^。！？\s]{2,}である。`),
		regexp.MustCompile(`[^。！？\s]{2,}にある。`),
	}
)

// ValidateStructure detects structural issues that make a draft feel
// machine-generated: repeated H2 headings, H3 headings reused under
// multiple H2 sections, overlong sentences, and formal-register drift
// inside otherwise polite copy. Warnings are ordered deterministically.
func ValidateStructure(markdown string, maxSentenceLength int) []string {
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	var warnings []string
	warnings = append(warnings, validateHeadings(markdown)...)
	warnings = append(warnings, validateSentenceLength(markdown, maxSentenceLength)...)
	warnings = append(warnings, checkStyleConsistency(markdown)...)
	return warnings
}

func validateHeadings(markdown string) []string {
	var warnings []string

	var h2Order []string
	h2Counts := make(map[string]int)
	h3Parents := make(map[string]map[string]bool)
	var h3Order []string

	currentH2 := "__root__"
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimRight(line, " \t")
		if m := h2Pattern.FindStringSubmatch(line); m != nil {
			heading := strings.TrimSpace(m[1])
			if heading == "" {
				continue
			}
			if h2Counts[heading] == 0 {
				h2Order = append(h2Order, heading)
			}
			h2Counts[heading]++
			currentH2 = heading
			continue
		}
		if m := h3Pattern.FindStringSubmatch(line); m != nil {
			heading := strings.TrimSpace(m[1])
			if heading == "" {
				continue
			}
			if h3Parents[heading] == nil {
				h3Parents[heading] = make(map[string]bool)
				h3Order = append(h3Order, heading)
			}
			h3Parents[heading][currentH2] = true
		}
	}

	for _, heading := range h2Order {
		if count := h2Counts[heading]; count > 1 {
			warnings = append(warnings, fmt.Sprintf("H2が重複しています: 「%s」が%d回出現", heading, count))
		}
	}
	for _, heading := range h3Order {
		parents := h3Parents[heading]
		if len(parents) > 1 {
			names := make([]string, 0, len(parents))
			for p := range parents {
				names = append(names, p)
			}
			sort.Strings(names)
			warnings = append(warnings, fmt.Sprintf("H3「%s」が複数のH2配下で使われています: %s", heading, strings.Join(names, ", ")))
		}
	}
	return warnings
}

func validateSentenceLength(markdown string, maxLength int) []string {
	var warnings []string
	for idx, sentence := range sentenceSplitPattern.Split(markdown, -1) {
		cleaned := strings.TrimSpace(markupStripper.ReplaceAllString(sentence, ""))
		runes := []rune(cleaned)
		if len(runes) <= maxLength {
			continue
		}
		snippet := cleaned
		if len(runes) > 50 {
			snippet = string(runes[:50]) + "…"
		}
		warnings = append(warnings, fmt.Sprintf("文%dが%d文字です（推奨: %d文字以内）: %s", idx+1, len(runes), maxLength, snippet))
	}
	return warnings
}

func checkStyleConsistency(markdown string) []string {
	var warnings []string
	for _, pattern := range politeDrift {
		matches := pattern.FindAllString(markdown, -1)
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 3 {
			matches = matches[:3]
		}
		warnings = append(warnings, fmt.Sprintf("「である調」が検出されました: %s", strings.Join(matches, ", ")))
	}
	return warnings
}
