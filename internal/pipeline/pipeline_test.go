package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
	"github.com/pon-1234/seo-drafter-gcp/internal/links"
	"github.com/pon-1234/seo-drafter-gcp/internal/llm"
	"github.com/pon-1234/seo-drafter-gcp/internal/quality"
)

type mockGateway struct {
	mu            sync.Mutex
	generateCalls []llm.Request
	groundedCalls []llm.Request

	generateFn    func(req llm.Request) (*llm.Response, error)
	groundedFn    func(req llm.Request) (*llm.Response, error)
	groundedCtxFn func(ctx context.Context, req llm.Request) (*llm.Response, error)
}

func (m *mockGateway) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.generateCalls = append(m.generateCalls, req)
	m.mu.Unlock()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if m.generateFn != nil {
		return m.generateFn(req)
	}
	return &llm.Response{Text: "生成されたテキストです。"}, nil
}

func (m *mockGateway) GenerateWithGrounding(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.groundedCalls = append(m.groundedCalls, req)
	m.mu.Unlock()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if m.groundedCtxFn != nil {
		return m.groundedCtxFn(ctx, req)
	}
	if m.groundedFn != nil {
		return m.groundedFn(req)
	}
	return &llm.Response{
		Text:      "セクション本文です。",
		Citations: []llm.Citation{{URI: "https://example.com/source"}},
	}, nil
}

func (m *mockGateway) generateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.generateCalls)
}

func (m *mockGateway) groundedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.groundedCalls)
}

type mockLinker struct {
	candidates []core.InternalLinkCandidate
	gotQuery   links.Query
}

func (m *mockLinker) Resolve(_ context.Context, q links.Query) []core.InternalLinkCandidate {
	m.gotQuery = q
	return m.candidates
}

// userContent extracts the user layer from a recorded request.
func userContent(req llm.Request) string {
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleUser {
			return msg.Content
		}
	}
	return ""
}

func manualBrief(headings ...string) core.Brief {
	return core.Brief{
		JobID:          "job-1",
		PrimaryKeyword: "クラウド会計ソフト おすすめ",
		Intent:         core.IntentComparison,
		ArticleType:    core.ArticleComparison,
		HeadingDirective: core.HeadingDirective{
			Mode:     core.HeadingManual,
			Headings: headings,
		},
		Model: core.ModelSelection{Provider: "gemini", Model: "gemini-2.0-flash"},
	}
}

func TestRunManualHeadingsSkipOutlineCall(t *testing.T) {
	gw := &mockGateway{}
	p := NewPipeline(gw, nil, nil)

	headings := []string{"料金比較", "主要機能", "導入手順"}
	bundle, err := p.Run(context.Background(), manualBrief(headings...))
	if err != nil {
		t.Fatal(err)
	}

	if len(bundle.Outline) != len(headings) {
		t.Fatalf("expected %d outline entries, got %d", len(headings), len(bundle.Outline))
	}
	for i, h := range headings {
		if bundle.Outline[i].Text != h {
			t.Fatalf("outline[%d] = %q, want verbatim %q", i, bundle.Outline[i].Text, h)
		}
	}

	// Intent is preset and the outline is manual, so the only plain
	// generation call is FAQ/meta.
	if got := gw.generateCount(); got != 1 {
		t.Fatalf("expected exactly 1 plain generation call (faq/meta), got %d", got)
	}
	if got := gw.groundedCount(); got != len(headings) {
		t.Fatalf("expected %d grounded section calls, got %d", len(headings), got)
	}
}

func TestRunSectionOrderPreservedUnderConcurrency(t *testing.T) {
	gw := &mockGateway{
		groundedFn: func(req llm.Request) (*llm.Response, error) {
			user := userContent(req)
			// Later headings finish first to shuffle completion order.
			if strings.Contains(user, "料金比較") {
				time.Sleep(30 * time.Millisecond)
			}
			for _, h := range []string{"料金比較", "主要機能", "導入手順", "よくある失敗", "まとめ"} {
				if strings.Contains(user, h) {
					return &llm.Response{Text: h + "の本文です。"}, nil
				}
			}
			return &llm.Response{Text: "本文です。"}, nil
		},
	}
	p := NewPipeline(gw, nil, nil)

	headings := []string{"料金比較", "主要機能", "導入手順", "よくある失敗", "まとめ"}
	bundle, err := p.Run(context.Background(), manualBrief(headings...))
	if err != nil {
		t.Fatal(err)
	}

	if len(bundle.Sections) != len(headings) {
		t.Fatalf("expected %d sections, got %d", len(headings), len(bundle.Sections))
	}
	for i, h := range headings {
		if bundle.Sections[i].Heading != h {
			t.Fatalf("sections[%d].Heading = %q, want %q", i, bundle.Sections[i].Heading, h)
		}
		if bundle.Sections[i].Text != h+"の本文です。" {
			t.Fatalf("sections[%d] holds the wrong body: %q", i, bundle.Sections[i].Text)
		}
	}
}

func TestRunSingleSectionFailureIsolation(t *testing.T) {
	gw := &mockGateway{
		groundedFn: func(req llm.Request) (*llm.Response, error) {
			if strings.Contains(userContent(req), "主要機能") {
				return nil, fmt.Errorf("%w: rate limited", llm.ErrProviderUnavailable)
			}
			return &llm.Response{Text: "本文です。"}, nil
		},
	}
	p := NewPipeline(gw, nil, nil)

	bundle, err := p.Run(context.Background(), manualBrief("料金比較", "主要機能", "導入手順"))
	if err != nil {
		t.Fatalf("single section failure must not fail the run: %v", err)
	}
	if bundle.Status != core.RunCompleted {
		t.Fatalf("expected completed status, got %s", bundle.Status)
	}

	if !bundle.Sections[1].Placeholder {
		t.Fatal("failed section should be a placeholder")
	}
	if bundle.Sections[0].Placeholder || bundle.Sections[2].Placeholder {
		t.Fatal("healthy sections must not be placeholders")
	}

	var found bool
	for _, w := range bundle.Warnings {
		if w.Stage == "section_drafting" && w.Heading == "主要機能" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a warning naming the failed heading, got %+v", bundle.Warnings)
	}
}

func TestRunAllSectionsFailed(t *testing.T) {
	gw := &mockGateway{
		groundedFn: func(llm.Request) (*llm.Response, error) {
			return nil, fmt.Errorf("%w: down", llm.ErrProviderUnavailable)
		},
	}
	p := NewPipeline(gw, nil, nil)

	bundle, err := p.Run(context.Background(), manualBrief("料金比較", "主要機能"))
	if !errors.Is(err, ErrPipelineFailed) {
		t.Fatalf("expected ErrPipelineFailed, got %v", err)
	}
	if bundle == nil || bundle.Status != core.RunFailed {
		t.Fatalf("expected failed bundle with partial state, got %+v", bundle)
	}
	if len(bundle.Sections) != 2 {
		t.Fatalf("failed bundle should keep partial sections for diagnostics, got %d", len(bundle.Sections))
	}
}

func TestRunOutlineFailure(t *testing.T) {
	gw := &mockGateway{
		generateFn: func(llm.Request) (*llm.Response, error) {
			return nil, fmt.Errorf("%w: bad auth", llm.ErrProviderRejected)
		},
	}
	p := NewPipeline(gw, nil, nil)

	brief := manualBrief()
	brief.HeadingDirective = core.HeadingDirective{Mode: core.HeadingAuto}
	brief.WordCountRange = core.WordCountRange{Min: 1200, Max: 1800}

	bundle, err := p.Run(context.Background(), brief)
	if !errors.Is(err, ErrPipelineFailed) {
		t.Fatalf("expected ErrPipelineFailed, got %v", err)
	}
	if bundle == nil || bundle.Status != core.RunFailed {
		t.Fatalf("expected failed bundle, got %+v", bundle)
	}
}

func TestRunCallerCancellation(t *testing.T) {
	gw := &mockGateway{}
	p := NewPipeline(gw, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bundle, err := p.Run(ctx, manualBrief("料金比較"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if bundle != nil {
		t.Fatal("cancelled run must not emit a partial bundle")
	}
}

func TestRunQualityAuditSeesCitationMarkers(t *testing.T) {
	raw := "国内シェアは32%です。[出典: https://example.com/stats]"
	gw := &mockGateway{
		groundedFn: func(llm.Request) (*llm.Response, error) {
			return &llm.Response{
				Text:      llm.StripCitationMarkers(raw),
				RawText:   raw,
				Citations: llm.ExtractCitations(raw),
			}, nil
		},
	}
	p := NewPipeline(gw, nil, nil)

	bundle, err := p.Run(context.Background(), manualBrief("市場シェア"))
	if err != nil {
		t.Fatal(err)
	}

	if strings.Contains(bundle.Sections[0].Text, "出典") {
		t.Fatalf("display text must stay marker-free, got %q", bundle.Sections[0].Text)
	}
	if bundle.Quality.CitationCount != 1 {
		t.Fatalf("audit should count the citation marker, got %d", bundle.Quality.CitationCount)
	}
	if len(bundle.Quality.CitationsMissing) != 0 {
		t.Fatalf("cited numeric claim reported as uncited: %v", bundle.Quality.CitationsMissing)
	}
	if got := bundle.Quality.RubricScores["citation_coverage"]; got != quality.ScoreGood {
		t.Fatalf("citation_coverage = %q, want %q", got, quality.ScoreGood)
	}
}

func TestRunPipelineTimeoutFinalizesWithPlaceholders(t *testing.T) {
	gw := &mockGateway{
		groundedCtxFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			if strings.Contains(userContent(req), "導入手順") {
				<-ctx.Done()
				return nil, fmt.Errorf("%w: %v", llm.ErrProviderUnavailable, ctx.Err())
			}
			return &llm.Response{Text: "本文です。"}, nil
		},
	}
	cfg := DefaultConfig()
	cfg.PipelineTimeout = 30 * time.Millisecond
	p := NewPipeline(gw, nil, cfg)

	bundle, err := p.Run(context.Background(), manualBrief("料金比較", "主要機能", "導入手順"))
	if err != nil {
		t.Fatalf("timed-out drafting must still finalize, got %v", err)
	}
	if bundle.Status != core.RunCompleted {
		t.Fatalf("expected completed status, got %s", bundle.Status)
	}

	if bundle.Sections[0].Placeholder || bundle.Sections[1].Placeholder {
		t.Fatal("sections finished before the deadline must keep their text")
	}
	if !bundle.Sections[2].Placeholder || bundle.Sections[2].Text != placeholderText {
		t.Fatalf("unfinished section should finalize as a placeholder, got %+v", bundle.Sections[2])
	}

	var found bool
	for _, w := range bundle.Warnings {
		if w.Stage == "section_drafting" && w.Heading == "導入手順" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a warning naming the unfinished heading, got %+v", bundle.Warnings)
	}
}

func TestRunEmptyKeyword(t *testing.T) {
	p := NewPipeline(&mockGateway{}, nil, nil)
	if _, err := p.Run(context.Background(), core.Brief{JobID: "job-1"}); !errors.Is(err, ErrPipelineFailed) {
		t.Fatalf("expected ErrPipelineFailed for empty keyword, got %v", err)
	}
}

func TestEstimateIntentHeuristic(t *testing.T) {
	gw := &mockGateway{}
	p := NewPipeline(gw, nil, nil)

	brief := core.Brief{
		PrimaryKeyword: "クラウド会計ソフト",
		ReaderPersona:  core.ReaderPersona{Goals: []string{"主要サービスを比較したい"}},
	}
	if got := p.estimateIntent(context.Background(), brief); got != core.IntentComparison {
		t.Fatalf("expected comparison from goal heuristic, got %s", got)
	}

	brief.ReaderPersona.Goals = []string{"今月中に購入したい"}
	if got := p.estimateIntent(context.Background(), brief); got != core.IntentTransaction {
		t.Fatalf("expected transaction from goal heuristic, got %s", got)
	}
	if gw.generateCount() != 0 {
		t.Fatal("goal heuristic must not call the gateway")
	}
}

func TestEstimateIntentModelFallback(t *testing.T) {
	gw := &mockGateway{
		generateFn: func(llm.Request) (*llm.Response, error) {
			return &llm.Response{Text: "なんらかの分類不能な出力"}, nil
		},
	}
	p := NewPipeline(gw, nil, nil)

	brief := core.Brief{PrimaryKeyword: "クラウド会計ソフト"}
	if got := p.estimateIntent(context.Background(), brief); got != core.IntentInformation {
		t.Fatalf("unparsable label should default to information, got %s", got)
	}

	gw.generateFn = func(llm.Request) (*llm.Response, error) {
		return nil, fmt.Errorf("%w: down", llm.ErrProviderUnavailable)
	}
	if got := p.estimateIntent(context.Background(), brief); got != core.IntentInformation {
		t.Fatalf("gateway failure should default to information, got %s", got)
	}
}

func TestGenerateFAQMetaFallback(t *testing.T) {
	gw := &mockGateway{
		generateFn: func(llm.Request) (*llm.Response, error) {
			return nil, fmt.Errorf("%w: down", llm.ErrProviderUnavailable)
		},
	}
	p := NewPipeline(gw, nil, nil)

	run := &core.PipelineRun{Sections: []core.Section{{Heading: "h", Text: "本文"}}}
	faq, meta := p.generateFAQMeta(context.Background(), manualBrief("h"), run)

	if faq != nil {
		t.Fatalf("degraded FAQ should be empty, got %+v", faq)
	}
	if len(meta.TitleOptions) == 0 || !strings.Contains(meta.TitleOptions[0], "クラウド会計ソフト おすすめ") {
		t.Fatalf("fallback meta should derive from the keyword, got %+v", meta)
	}
	if len(run.Warnings) == 0 || run.Warnings[0].Stage != "faq_meta" {
		t.Fatalf("expected faq_meta warning, got %+v", run.Warnings)
	}
}

func TestRunComparisonScenario(t *testing.T) {
	gw := &mockGateway{
		groundedFn: func(req llm.Request) (*llm.Response, error) {
			return &llm.Response{
				Text:      "月額は1,980円からです。",
				Citations: []llm.Citation{{URI: "https://example.com/pricing"}},
			}, nil
		},
		generateFn: func(req llm.Request) (*llm.Response, error) {
			return &llm.Response{Text: `{"faq":[{"question":"無料プランはありますか","answer":"あります。"}],` +
				`"title_options":["クラウド会計ソフト おすすめ5選"],"description_options":["比較ポイントを解説"]}`}, nil
		},
	}
	linker := &mockLinker{candidates: []core.InternalLinkCandidate{
		{URL: "https://example.com/kb", Title: "関連記事", Anchor: "関連記事", Score: 0.8},
	}}
	p := NewPipeline(gw, linker, nil)

	headings := []string{"選定基準", "料金比較", "機能比較", "導入事例", "まとめ"}
	brief := manualBrief(headings...)
	brief.ReaderPersona.Goals = []string{"会計ソフトを比較したい"}

	bundle, err := p.Run(context.Background(), brief)
	if err != nil {
		t.Fatal(err)
	}

	if bundle.Status != core.RunCompleted {
		t.Fatalf("expected completed run, got %s", bundle.Status)
	}
	if bundle.Intent != core.IntentComparison {
		t.Fatalf("expected comparison intent, got %s", bundle.Intent)
	}
	if len(bundle.Sections) != 5 {
		t.Fatalf("expected 5 sections, got %d", len(bundle.Sections))
	}
	for i, h := range headings {
		if bundle.Sections[i].Heading != h {
			t.Fatalf("sections[%d] = %q, want %q", i, bundle.Sections[i].Heading, h)
		}
		if len(bundle.Sections[i].Citations) == 0 {
			t.Fatalf("sections[%d] should carry citations", i)
		}
	}
	if len(bundle.FAQ) != 1 || bundle.FAQ[0].Question == "" {
		t.Fatalf("expected parsed FAQ, got %+v", bundle.FAQ)
	}
	if bundle.Meta.OG.Title != "クラウド会計ソフト おすすめ5選" {
		t.Fatalf("unexpected OG title %q", bundle.Meta.OG.Title)
	}
	if len(bundle.Links) != 1 {
		t.Fatalf("expected link candidates, got %+v", bundle.Links)
	}
	if linker.gotQuery.Keyword != brief.PrimaryKeyword {
		t.Fatalf("linker should receive the primary keyword, got %q", linker.gotQuery.Keyword)
	}
	if bundle.Quality.RequiresExpertReview {
		t.Fatal("non-YMYL keyword must not require expert review")
	}
	if bundle.Metadata["job_id"] != "job-1" {
		t.Fatalf("metadata should carry the idempotency key parts, got %+v", bundle.Metadata)
	}
}

func TestParseOutline(t *testing.T) {
	text := "1. 選定基準 | 読者の判断軸を揃える\n- 料金比較\n・機能比較 | 主要3社の違い\n\n## まとめ\n"
	outline := parseOutline(text, 225)

	want := []string{"選定基準", "料金比較", "機能比較", "まとめ"}
	if len(outline) != len(want) {
		t.Fatalf("expected %d headings, got %d: %+v", len(want), len(outline), outline)
	}
	for i, w := range want {
		if outline[i].Text != w {
			t.Fatalf("outline[%d] = %q, want %q", i, outline[i].Text, w)
		}
	}
	if outline[0].Summary != "読者の判断軸を揃える" {
		t.Fatalf("expected summary split, got %q", outline[0].Summary)
	}
	if outline[1].EstimatedWords != 225 {
		t.Fatalf("expected estimated words applied, got %d", outline[1].EstimatedWords)
	}
}

func TestParseFAQMetaToleratesFences(t *testing.T) {
	text := "```json\n{\"faq\":[{\"question\":\"Q\",\"answer\":\"A\"}],\"title_options\":[\"T1\",\"T2\"],\"description_options\":[\"D1\"]}\n```"
	faq, meta, err := parseFAQMeta(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(faq) != 1 || faq[0].Question != "Q" {
		t.Fatalf("unexpected faq %+v", faq)
	}
	if meta.OG.Title != "T1" || meta.OG.Description != "D1" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestParseFAQMetaRejectsGarbage(t *testing.T) {
	if _, _, err := parseFAQMeta("ここにJSONはありません"); err == nil {
		t.Fatal("expected error for non-JSON output")
	}
}
