package persona

import (
	"testing"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
)

func TestInferLabelKnownRole(t *testing.T) {
	reader := core.ReaderPersona{JobRole: "marketing_manager", ExperienceYears: "intermediate"}
	got := InferLabel(reader)
	want := "マーケティング担当になって2〜3年目くらいの方"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestInferLabelUnknownRoleFallsBack(t *testing.T) {
	got := InferLabel(core.ReaderPersona{})
	if got != "担当者の方" {
		t.Fatalf("got %q, want 担当者の方", got)
	}
}

func TestInferLabelLiteralRole(t *testing.T) {
	reader := core.ReaderPersona{JobRole: "経理財務担当", ExperienceYears: "beginner"}
	got := InferLabel(reader)
	want := "経理財務担当になって1年目くらいの方"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestInferLabelRejectsPersonName(t *testing.T) {
	got := InferLabel(core.ReaderPersona{JobRole: "山田 太郎"})
	if got != "担当者の方" {
		t.Fatalf("person names should not become audience labels, got %q", got)
	}
}

func TestIntroClause(t *testing.T) {
	got := IntroClause("マーケティング担当の方")
	want := "この記事は、マーケティング担当の方に向けて書かれています。"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if got := IntroClause("  "); got != "この記事は、担当者の方に向けて書かれています。" {
		t.Fatalf("blank label should fall back, got %q", got)
	}
}
