package pipeline

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
	"github.com/pon-1234/seo-drafter-gcp/internal/llm"
)

const rewritePrompt = "あなたは日本人のBtoBマーケティング経験者です。以下の段落を自然な敬体で書き直してください。\n" +
	"- 1文を60〜80字以内\n" +
	"- である調を禁止\n" +
	"- 記号の多用を避ける\n\n"

var (
	slashSequencePattern = regexp.MustCompile(`[ぁ-んァ-ヶ一-龥A-Za-z0-9]+/[ぁ-んァ-ヶ一-龥A-Za-z0-9]+/[ぁ-んァ-ヶ一-龥A-Za-z0-9]+`)
	dearuPattern         = regexp.MustCompile(`である。`)
	niaruPattern         = regexp.MustCompile(`にある。`)
)

// rewriteSections runs the structure-preserving polite-form rewrite
// over drafted sections with a bounded worker pool. A failed rewrite
// keeps the original text; this pass never degrades the run.
func (p *Pipeline) rewriteSections(ctx context.Context, brief core.Brief, run *core.PipelineRun) {
	workers := p.config.RewriteWorkers
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range run.Sections {
		if run.Sections[i].Placeholder || strings.TrimSpace(run.Sections[i].Text) == "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			run.Sections[i].Text = p.rewriteParagraph(ctx, brief, run.Sections[i].Text)
		}(i)
	}
	wg.Wait()
}

func (p *Pipeline) rewriteParagraph(ctx context.Context, brief core.Brief, text string) string {
	prepared := applyBasicStyleFixes(text)
	resp, err := p.gateway.Generate(ctx, llm.Request{
		Provider:    p.provider(brief),
		Model:       p.model(brief),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: rewritePrompt + prepared}},
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		p.log.Warn("paragraph rewrite failed, keeping original", "job_id", brief.JobID, "error", err.Error())
		return text
	}
	rewritten := strings.TrimSpace(resp.Text)
	if rewritten == "" {
		return text
	}
	return rewritten
}

// applyBasicStyleFixes performs the lightweight regex corrections that
// do not need a model: slash-sequence unrolling and polite-form
// endings.
func applyBasicStyleFixes(text string) string {
	if text == "" {
		return text
	}
	updated := slashSequencePattern.ReplaceAllStringFunc(text, unrollSlashSequence)
	updated = dearuPattern.ReplaceAllString(updated, "です。")
	updated = niaruPattern.ReplaceAllString(updated, "にあります。")
	return updated
}

func unrollSlashSequence(match string) string {
	tokens := strings.Split(match, "/")
	if len(tokens) < 2 {
		return match
	}
	if len(tokens) == 2 {
		return tokens[0] + "や" + tokens[1] + "など"
	}
	head := tokens[:len(tokens)-1]
	last := tokens[len(tokens)-1]
	return strings.Join(head, "や") + "、" + last + "など"
}
