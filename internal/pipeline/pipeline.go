// Package pipeline orchestrates draft generation: intent estimation,
// outline, concurrent section drafting, FAQ/meta, internal links and
// quality evaluation, assembled into a Bundle.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
	"github.com/pon-1234/seo-drafter-gcp/internal/links"
	"github.com/pon-1234/seo-drafter-gcp/internal/llm"
	"github.com/pon-1234/seo-drafter-gcp/internal/logger"
	"github.com/pon-1234/seo-drafter-gcp/internal/quality"
	"github.com/pon-1234/seo-drafter-gcp/internal/terminology"
)

// ErrPipelineFailed marks a run whose mandatory stage produced no
// usable output. The returned bundle still carries the partial state
// for diagnostics.
var ErrPipelineFailed = errors.New("pipeline failed")

// placeholderText fills a section slot whose drafting exhausted
// retries. The surrounding run continues.
const placeholderText = "（このセクションは生成に失敗しました。再実行で補完してください。）"

// Config holds pipeline configuration.
type Config struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int

	// WordsPerHeading sizes the outline to the target word count.
	WordsPerHeading int
	MinHeadings     int
	MaxHeadings     int

	// MaxConcurrentSections bounds the section drafting fan-out.
	MaxConcurrentSections int

	// PipelineTimeout bounds the whole run. Zero disables it. A timeout
	// mid-drafting finalizes with placeholders for unfinished sections.
	PipelineTimeout time.Duration

	// RewriteEnabled turns on the polite-form style rewrite pass.
	RewriteEnabled bool
	RewriteWorkers int

	LinkTopK int
	Quality  quality.Config
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:              "gemini",
		Model:                 "gemini-2.0-flash",
		Temperature:           0.7,
		MaxTokens:             2048,
		WordsPerHeading:       225,
		MinHeadings:           3,
		MaxHeadings:           8,
		MaxConcurrentSections: 5,
		RewriteWorkers:        3,
		LinkTopK:              links.DefaultTopK,
		Quality:               quality.DefaultConfig(),
	}
}

// Pipeline coordinates one run per Brief. Safe for concurrent use;
// per-run state lives in the PipelineRun aggregate.
type Pipeline struct {
	gateway Generator
	linker  LinkProposer
	config  *Config
	log     *slog.Logger
}

// NewPipeline creates a pipeline. The linker may be nil when no corpus
// is configured; link proposal then degrades to an empty list.
func NewPipeline(gateway Generator, linker LinkProposer, config *Config) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pipeline{
		gateway: gateway,
		linker:  linker,
		config:  config,
		log:     logger.Get(),
	}
}

// Run executes the full pipeline for one brief. On a mandatory stage
// failure it returns ErrPipelineFailed together with a Failed bundle
// holding the partial state. Caller cancellation abandons the run and
// returns no bundle.
func (p *Pipeline) Run(ctx context.Context, brief core.Brief) (*core.Bundle, error) {
	if strings.TrimSpace(brief.PrimaryKeyword) == "" {
		return nil, fmt.Errorf("%w: brief has no primary keyword", ErrPipelineFailed)
	}

	runCtx := ctx
	if p.config.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.config.PipelineTimeout)
		defer cancel()
	}

	run := &core.PipelineRun{
		RunID:     brief.JobID + "-" + strconv.FormatInt(brief.Seed, 10),
		JobID:     brief.JobID,
		StartedAt: time.Now().UTC(),
	}

	run.Intent = p.estimateIntent(runCtx, brief)

	outline, err := p.generateOutline(runCtx, brief, run.Intent)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return p.finalize(brief, run, core.RunFailed), fmt.Errorf("%w: outline: %v", ErrPipelineFailed, err)
	}
	run.Outline = outline

	sections, sectionWarnings := p.draftSections(runCtx, brief, run)
	if ctx.Err() != nil {
		// Caller cancellation: abandon the run, emit no partial bundle.
		return nil, ctx.Err()
	}
	run.Sections = sections
	run.Warnings = append(run.Warnings, sectionWarnings...)

	if allPlaceholders(sections) {
		return p.finalize(brief, run, core.RunFailed),
			fmt.Errorf("%w: no section produced usable content", ErrPipelineFailed)
	}

	p.normalizeSections(run.Sections)
	if p.config.RewriteEnabled {
		p.rewriteSections(runCtx, brief, run)
	}

	run.FAQ, run.Meta = p.generateFAQMeta(runCtx, brief, run)
	run.Links = p.proposeLinks(runCtx, brief, run)

	// Quality always runs on the true, possibly degraded body. The
	// audit needs the marker-bearing text; the display text has
	// citation markers stripped.
	run.Quality = quality.Evaluate(quality.Input{
		PrimaryKeyword: brief.PrimaryKeyword,
		Body:           core.JoinSections(withCitationMarkers(run.Sections)),
	}, p.qualityConfig(brief))

	return p.finalize(brief, run, core.RunCompleted), nil
}

// estimateIntent resolves the search intent without ever failing the
// run: explicit brief value, then a persona-goal heuristic, then one
// model call whose unparsable output defaults to information.
func (p *Pipeline) estimateIntent(ctx context.Context, brief core.Brief) core.IntentType {
	if brief.Intent != "" {
		return brief.Intent
	}

	for _, goal := range brief.ReaderPersona.Goals {
		if strings.Contains(goal, "比較") {
			return core.IntentComparison
		}
	}
	for _, goal := range brief.ReaderPersona.Goals {
		if strings.Contains(goal, "購入") {
			return core.IntentTransaction
		}
	}
	if len(brief.ReaderPersona.Goals) > 0 {
		return core.IntentInformation
	}

	resp, err := p.gateway.Generate(ctx, llm.Request{
		Provider:    p.provider(brief),
		Model:       p.model(brief),
		Messages:    intentMessages(brief),
		Temperature: 0,
	})
	if err != nil {
		p.log.Warn("intent estimation degraded to default", "job_id", brief.JobID, "error", err.Error())
		return core.IntentInformation
	}
	intent, _ := core.ParseIntent(resp.Text)
	return intent
}

// generateOutline returns the run's heading list. Manual directives
// pass through verbatim with zero gateway calls.
func (p *Pipeline) generateOutline(ctx context.Context, brief core.Brief, intent core.IntentType) ([]core.Heading, error) {
	if brief.HeadingDirective.Mode == core.HeadingManual {
		if len(brief.HeadingDirective.Headings) == 0 {
			return nil, errors.New("manual heading directive with empty heading list")
		}
		outline := make([]core.Heading, len(brief.HeadingDirective.Headings))
		for i, text := range brief.HeadingDirective.Headings {
			outline[i] = core.Heading{Text: text, EstimatedWords: p.config.WordsPerHeading}
		}
		return outline, nil
	}

	count := p.headingCount(brief)
	resp, err := p.gateway.Generate(ctx, llm.Request{
		Provider:    p.provider(brief),
		Model:       p.model(brief),
		Messages:    outlineMessages(brief, count, intent),
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	outline := parseOutline(resp.Text, p.config.WordsPerHeading)
	if len(outline) == 0 {
		return nil, errors.New("model returned no parsable headings")
	}
	if len(outline) > count {
		outline = outline[:count]
	}
	return outline, nil
}

// headingCount sizes the outline from the word count target, clamped to
// the configured band.
func (p *Pipeline) headingCount(brief core.Brief) int {
	target := brief.WordCountRange.Max
	if target == 0 {
		target = brief.WordCountRange.Min
	}
	if target == 0 {
		return p.config.MinHeadings
	}
	count := target / p.config.WordsPerHeading
	if count < p.config.MinHeadings {
		count = p.config.MinHeadings
	}
	if count > p.config.MaxHeadings {
		count = p.config.MaxHeadings
	}
	return count
}

// draftSections fans out one task per heading. Each task writes only
// its own index, so reassembly is in outline order with no locking.
// A single section's failure yields a placeholder plus a warning; it
// never aborts sibling tasks.
func (p *Pipeline) draftSections(ctx context.Context, brief core.Brief, run *core.PipelineRun) ([]core.Section, []core.Warning) {
	sections := make([]core.Section, len(run.Outline))
	warnings := make([]*core.Warning, len(run.Outline))

	sem := make(chan struct{}, p.config.MaxConcurrentSections)
	var wg sync.WaitGroup
	for i, heading := range run.Outline {
		wg.Add(1)
		go func(i int, heading core.Heading) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			sections[i], warnings[i] = p.draftSection(ctx, brief, heading, run.Intent)
		}(i, heading)
	}
	wg.Wait()

	var ordered []core.Warning
	for _, w := range warnings {
		if w != nil {
			ordered = append(ordered, *w)
		}
	}
	return sections, ordered
}

func (p *Pipeline) draftSection(ctx context.Context, brief core.Brief, heading core.Heading, intent core.IntentType) (core.Section, *core.Warning) {
	resp, err := p.gateway.GenerateWithGrounding(ctx, llm.Request{
		Provider:    p.provider(brief),
		Model:       p.model(brief),
		Messages:    sectionMessages(brief, heading, intent),
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		p.log.Warn("section drafting degraded to placeholder",
			"job_id", brief.JobID, "heading", heading.Text, "error", err.Error())
		return core.Section{Heading: heading.Text, Text: placeholderText, Placeholder: true},
			&core.Warning{
				Stage:   "section_drafting",
				Heading: heading.Text,
				Message: fmt.Sprintf("セクション「%s」の生成に失敗しました: %v", heading.Text, err),
			}
	}

	section := core.Section{Heading: heading.Text, Text: resp.Text, RawText: resp.RawText}
	for _, c := range resp.Citations {
		section.Citations = append(section.Citations, c.URI)
	}
	return section, nil
}

// normalizeSections applies terminology fixes to drafted text.
// Placeholders are left untouched.
func (p *Pipeline) normalizeSections(sections []core.Section) {
	for i := range sections {
		if sections[i].Placeholder {
			continue
		}
		sections[i].Text = terminology.Normalize(sections[i].Text)
		if sections[i].RawText != "" {
			sections[i].RawText = terminology.Normalize(sections[i].RawText)
		}
	}
}

// generateFAQMeta produces FAQ entries and meta candidates from the
// assembled body. Degrades to static meta plus a warning, never fails
// the run.
func (p *Pipeline) generateFAQMeta(ctx context.Context, brief core.Brief, run *core.PipelineRun) ([]core.FAQEntry, core.Meta) {
	resp, err := p.gateway.Generate(ctx, llm.Request{
		Provider:    p.provider(brief),
		Model:       p.model(brief),
		Messages:    faqMetaMessages(brief, core.JoinSections(run.Sections)),
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		appendWarning(run, &core.Warning{
			Stage:   "faq_meta",
			Message: fmt.Sprintf("FAQ・メタ情報の生成に失敗しました: %v", err),
		})
		return nil, fallbackMeta(brief.PrimaryKeyword)
	}

	faq, meta, err := parseFAQMeta(resp.Text)
	if err != nil {
		appendWarning(run, &core.Warning{
			Stage:   "faq_meta",
			Message: fmt.Sprintf("FAQ・メタ情報の解析に失敗しました: %v", err),
		})
		return nil, fallbackMeta(brief.PrimaryKeyword)
	}
	return faq, meta
}

// proposeLinks delegates to the resolver. An empty list is an
// acceptable degraded result recorded as a warning, never a failure.
func (p *Pipeline) proposeLinks(ctx context.Context, brief core.Brief, run *core.PipelineRun) []core.InternalLinkCandidate {
	if p.linker == nil {
		appendWarning(run, &core.Warning{Stage: "internal_links", Message: "リンクコーパス未設定のため内部リンク提案をスキップしました"})
		return nil
	}

	candidates := p.linker.Resolve(ctx, links.Query{
		Keyword:      brief.PrimaryKeyword,
		PersonaGoals: brief.ReaderPersona.Goals,
		TopK:         p.config.LinkTopK,
	})
	if len(candidates) == 0 {
		appendWarning(run, &core.Warning{Stage: "internal_links", Message: "内部リンク候補が見つかりませんでした"})
	}
	return candidates
}

func (p *Pipeline) qualityConfig(brief core.Brief) quality.Config {
	cfg := p.config.Quality
	if brief.QualityRubric != "" {
		cfg.Rubric = brief.QualityRubric
	}
	return cfg
}

func (p *Pipeline) finalize(brief core.Brief, run *core.PipelineRun, status core.RunStatus) *core.Bundle {
	return &core.Bundle{
		Status:   status,
		Intent:   run.Intent,
		Outline:  run.Outline,
		Sections: run.Sections,
		FAQ:      run.FAQ,
		Meta:     run.Meta,
		Links:    run.Links,
		Quality:  run.Quality,
		Warnings: run.Warnings,
		Metadata: map[string]string{
			"job_id":   brief.JobID,
			"seed":     strconv.FormatInt(brief.Seed, 10),
			"provider": p.provider(brief),
			"model":    p.model(brief),
			"elapsed":  time.Since(run.StartedAt).Round(time.Millisecond).String(),
		},
	}
}

func (p *Pipeline) provider(brief core.Brief) string {
	if brief.Model.Provider != "" {
		return brief.Model.Provider
	}
	return p.config.Provider
}

func (p *Pipeline) model(brief core.Brief) string {
	if brief.Model.Model != "" {
		return brief.Model.Model
	}
	return p.config.Model
}

func appendWarning(run *core.PipelineRun, w *core.Warning) {
	if w != nil {
		run.Warnings = append(run.Warnings, *w)
	}
}

// withCitationMarkers swaps each section's display text for its
// marker-bearing raw text where one exists. Placeholders and plain
// sections pass through unchanged.
func withCitationMarkers(sections []core.Section) []core.Section {
	out := make([]core.Section, len(sections))
	copy(out, sections)
	for i := range out {
		if out[i].RawText != "" {
			out[i].Text = out[i].RawText
		}
	}
	return out
}

func allPlaceholders(sections []core.Section) bool {
	for _, s := range sections {
		if !s.Placeholder {
			return false
		}
	}
	return len(sections) > 0
}

// parseOutline reads one heading per line, tolerating list bullets and
// numbering, with an optional "heading | goal" summary split.
func parseOutline(text string, wordsPerHeading int) []core.Heading {
	var outline []core.Heading
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "##")
		line = strings.TrimLeft(line, "-*・ ")
		line = trimLeadingNumber(line)
		if line == "" {
			continue
		}

		heading := core.Heading{EstimatedWords: wordsPerHeading}
		if idx := strings.Index(line, "|"); idx >= 0 {
			heading.Text = strings.TrimSpace(line[:idx])
			heading.Summary = strings.TrimSpace(line[idx+1:])
		} else {
			heading.Text = line
		}
		if heading.Text == "" {
			continue
		}
		outline = append(outline, heading)
	}
	return outline
}

func trimLeadingNumber(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 {
		return line
	}
	rest := line[i:]
	if strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, "、") {
		return strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(rest, "."), "、"))
	}
	return line
}

type faqMetaPayload struct {
	FAQ []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"faq"`
	TitleOptions       []string `json:"title_options"`
	DescriptionOptions []string `json:"description_options"`
}

// parseFAQMeta decodes the JSON payload the FAQ/meta prompt asks for.
// Surrounding prose or code fences around the JSON object are
// tolerated.
func parseFAQMeta(text string) ([]core.FAQEntry, core.Meta, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, core.Meta{}, errors.New("no JSON object in model output")
	}

	var payload faqMetaPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, core.Meta{}, fmt.Errorf("failed to decode FAQ/meta payload: %w", err)
	}
	if len(payload.TitleOptions) == 0 {
		return nil, core.Meta{}, errors.New("payload has no title options")
	}

	faq := make([]core.FAQEntry, 0, len(payload.FAQ))
	for _, entry := range payload.FAQ {
		if entry.Question == "" || entry.Answer == "" {
			continue
		}
		faq = append(faq, core.FAQEntry{Question: entry.Question, Answer: entry.Answer})
	}

	meta := core.Meta{
		TitleOptions:       payload.TitleOptions,
		DescriptionOptions: payload.DescriptionOptions,
	}
	meta.OG.Title = payload.TitleOptions[0]
	if len(payload.DescriptionOptions) > 0 {
		meta.OG.Description = payload.DescriptionOptions[0]
	}
	return faq, meta, nil
}
