package quality

import (
	"strings"
	"testing"
)

func TestValidateStructureDuplicateH2(t *testing.T) {
	markdown := "## 料金比較\n本文です。\n## 選び方\n本文です。\n## 料金比較\n再掲です。"
	warnings := ValidateStructure(markdown, 80)

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "H2が重複しています") && strings.Contains(w, "料金比較") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected duplicate H2 warning, got %v", warnings)
	}
}

func TestValidateStructureH3UnderMultipleH2(t *testing.T) {
	markdown := "## 料金\n### 注意点\n本文。\n## 機能\n### 注意点\n本文。"
	warnings := ValidateStructure(markdown, 80)

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "H3「注意点」が複数のH2配下で使われています") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected reused H3 warning, got %v", warnings)
	}
}

func TestValidateStructureSentenceLength(t *testing.T) {
	long := strings.Repeat("あ", 90) + "。"
	warnings := ValidateStructure(long, 80)
	if len(warnings) != 1 {
		t.Fatalf("expected one overlong-sentence warning, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "90文字") {
		t.Fatalf("warning should report the measured length, got %q", warnings[0])
	}

	if got := ValidateStructure(strings.Repeat("あ", 80)+"。", 80); len(got) != 0 {
		t.Fatalf("sentence at the limit should pass, got %v", got)
	}
}

func TestValidateStructureStyleDrift(t *testing.T) {
	markdown := "丁寧に説明します。これが中核である。"
	warnings := ValidateStructure(markdown, 80)

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "である調") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected register drift warning, got %v", warnings)
	}
}

func TestValidateStructureEmpty(t *testing.T) {
	if got := ValidateStructure("   \n", 80); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}
