package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeProvider struct {
	name    string
	models  map[string]bool
	calls   int
	results []func() (string, Usage, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) KnowsModel(model string) bool { return f.models[model] }

func (f *fakeProvider) Generate(_ context.Context, _ Request) (string, Usage, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx]()
}

func succeed(text string) func() (string, Usage, error) {
	return func() (string, Usage, error) {
		return text, Usage{InputTokens: 10, OutputTokens: 20}, nil
	}
}

func failWith(err error) func() (string, Usage, error) {
	return func() (string, Usage, error) { return "", Usage{}, err }
}

func fastRetry() Option {
	return WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2})
}

func validRequest() Request {
	return Request{
		Provider:    "fake",
		Model:       "model-a",
		Messages:    []Message{{Role: RoleUser, Content: "hello"}},
		Temperature: 0.5,
	}
}

func newFake(results ...func() (string, Usage, error)) *fakeProvider {
	return &fakeProvider{
		name:    "fake",
		models:  map[string]bool{"model-a": true},
		results: results,
	}
}

func TestGenerateRetriesTransientFailure(t *testing.T) {
	p := newFake(
		failWith(unavailable(errors.New("rate limited"))),
		failWith(unavailable(errors.New("rate limited"))),
		succeed("ok"),
	)
	g := NewGateway(WithProvider(p), fastRetry())

	resp, err := g.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.calls)
	}
	if resp.Text != "ok" || resp.Usage.InputTokens != 10 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGenerateExhaustsRetryBudget(t *testing.T) {
	p := newFake(failWith(unavailable(errors.New("down"))))
	g := NewGateway(WithProvider(p), fastRetry())

	_, err := g.Generate(context.Background(), validRequest())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if p.calls != 3 {
		t.Fatalf("expected full retry budget of 3, got %d", p.calls)
	}

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError wrapper, got %T", err)
	}
	if perr.Attempts != 3 || perr.Provider != "fake" {
		t.Fatalf("unexpected wrapper %+v", perr)
	}
}

func TestGenerateFailsFastOnRejection(t *testing.T) {
	p := newFake(failWith(rejected(errors.New("invalid auth"))))
	g := NewGateway(WithProvider(p), fastRetry())

	_, err := g.Generate(context.Background(), validRequest())
	if !errors.Is(err, ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("caller errors must not retry, got %d attempts", p.calls)
	}
}

func TestGenerateNonIdempotentSkipsRetry(t *testing.T) {
	p := newFake(failWith(unavailable(errors.New("timeout"))))
	g := NewGateway(WithProvider(p), fastRetry())

	req := validRequest()
	req.NonIdempotent = true
	_, err := g.Generate(context.Background(), req)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("non-idempotent requests must not be re-sent, got %d attempts", p.calls)
	}
}

func TestGenerateValidation(t *testing.T) {
	g := NewGateway(WithProvider(newFake(succeed("ok"))), fastRetry())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"unknown provider", func(r *Request) { r.Provider = "nope" }},
		{"unknown model", func(r *Request) { r.Model = "nope" }},
		{"temperature too high", func(r *Request) { r.Temperature = 1.5 }},
		{"temperature negative", func(r *Request) { r.Temperature = -0.1 }},
		{"no user message", func(r *Request) { r.Messages = []Message{{Role: RoleSystem, Content: "s"}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			if _, err := g.Generate(ctx, req); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestGenerateWithGroundingExtractsCitations(t *testing.T) {
	raw := "国内シェアは32%です。[出典: https://example.com/stats] 詳細は公式情報を参照してください。[Source: https://example.com/official]"
	g := NewGateway(WithProvider(newFake(succeed(raw))), fastRetry())

	resp, err := g.GenerateWithGrounding(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}

	if resp.RawText != raw {
		t.Fatal("extraction must never alter the raw text")
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %+v", resp.Citations)
	}
	if resp.Citations[0].URI != "https://example.com/stats" {
		t.Fatalf("unexpected first citation %+v", resp.Citations[0])
	}
	if resp.Text == raw || resp.Text == "" {
		t.Fatalf("normalized text should have markers stripped, got %q", resp.Text)
	}
}

func TestAppendGroundingDirective(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "system prompt"},
		{Role: RoleUser, Content: "hello"},
	}
	out := appendGroundingDirective(messages)

	if messages[0].Content != "system prompt" {
		t.Fatal("caller's message slice must not be mutated")
	}
	if len(out) != 2 || !strings.Contains(out[0].Content, groundingDirective) {
		t.Fatalf("directive should extend the system layer, got %+v", out)
	}

	// Without a system layer the directive becomes one.
	out = appendGroundingDirective([]Message{{Role: RoleUser, Content: "hello"}})
	if len(out) != 2 || out[0].Role != RoleSystem {
		t.Fatalf("expected prepended system directive, got %+v", out)
	}
}

func TestGenerateContextCancelledDuringBackoff(t *testing.T) {
	p := newFake(failWith(unavailable(errors.New("down"))))
	g := NewGateway(WithProvider(p), WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Factor: 2}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.Generate(ctx, validRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("cancellation should interrupt the backoff sleep")
	}
}
