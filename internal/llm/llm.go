package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pon-1234/seo-drafter-gcp/internal/logger"
)

// Role tags one layer of a prompt. The developer layer is folded into
// the system prompt for providers that only understand system/user.
type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
)

// Message is one role-tagged prompt layer.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic generation request. Ephemeral; the
// core never persists it.
type Request struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Grounded    bool      `json:"grounded,omitempty"`

	// NonIdempotent marks calls whose partial consumption already bills
	// quota; the gateway will not re-send these after the first attempt.
	NonIdempotent bool `json:"non_idempotent,omitempty"`
}

// Citation is one extracted source reference.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// Usage reports token consumption for a single call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the normalized result of a generation call.
type Response struct {
	Text      string     `json:"text"`
	RawText   string     `json:"raw_text"`
	Citations []Citation `json:"citations,omitempty"`
	Usage     Usage      `json:"usage"`
	Elapsed   time.Duration
	Provider  string `json:"provider"`
	Model     string `json:"model"`
}

// provider is the closed per-backend contract. Each variant builds a
// provider-specific call and returns raw text plus usage.
type provider interface {
	Name() string
	KnowsModel(model string) bool
	Generate(ctx context.Context, req Request) (string, Usage, error)
}

// RetryPolicy bounds the gateway's backoff loop for transient failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
}

// DefaultRetryPolicy matches the documented contract: base 1s, factor 2,
// capped at 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Factor: 2}
}

// Gateway presents one call contract over multiple LLM providers.
type Gateway struct {
	providers map[string]provider
	retry     RetryPolicy
	log       *slog.Logger
}

// Option customizes gateway construction.
type Option func(*Gateway)

// WithRetryPolicy overrides the default backoff parameters.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(g *Gateway) { g.retry = p }
}

// WithProvider registers an additional provider variant. Used by tests
// to install mocks behind the same dispatch point.
func WithProvider(p provider) Option {
	return func(g *Gateway) { g.providers[p.Name()] = p }
}

// NewGateway builds a gateway over the given providers.
func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		providers: make(map[string]provider),
		retry:     DefaultRetryPolicy(),
		log:       logger.Get(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate validates the request, dispatches it to the configured
// provider and returns a normalized response. Transient failures are
// retried with bounded exponential backoff; caller errors fail fast.
func (g *Gateway) Generate(ctx context.Context, req Request) (*Response, error) {
	p, err := g.validate(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, usage, attempts, err := g.callWithRetry(ctx, p, req)
	elapsed := time.Since(start)

	g.log.Info("gateway call",
		"provider", req.Provider,
		"model", req.Model,
		"attempts", attempts,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"elapsed_ms", elapsed.Milliseconds(),
		"ok", err == nil,
	)

	if err != nil {
		return nil, &ProviderError{Provider: req.Provider, Model: req.Model, Attempts: attempts, Err: err}
	}

	return &Response{
		Text:     text,
		RawText:  text,
		Usage:    usage,
		Elapsed:  elapsed,
		Provider: req.Provider,
		Model:    req.Model,
	}, nil
}

// GenerateWithGrounding generates text with the source-citation
// directive applied, then extracts citation-shaped substrings from the
// raw output. Extraction never alters RawText; Text carries the body
// with citation markers stripped.
func (g *Gateway) GenerateWithGrounding(ctx context.Context, req Request) (*Response, error) {
	req.Grounded = true
	req.Messages = appendGroundingDirective(req.Messages)

	resp, err := g.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	resp.Citations = ExtractCitations(resp.RawText)
	resp.Text = StripCitationMarkers(resp.RawText)
	return resp, nil
}

func (g *Gateway) validate(req Request) (provider, error) {
	p, ok := g.providers[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidRequest, req.Provider)
	}
	if !p.KnowsModel(req.Model) {
		return nil, fmt.Errorf("%w: unknown model %q for provider %q", ErrInvalidRequest, req.Model, req.Provider)
	}
	if req.Temperature < 0 || req.Temperature > 1 {
		return nil, fmt.Errorf("%w: temperature %.2f out of range [0,1]", ErrInvalidRequest, req.Temperature)
	}
	if !hasUserMessage(req.Messages) {
		return nil, fmt.Errorf("%w: message list must include at least one user message", ErrInvalidRequest)
	}
	return p, nil
}

func (g *Gateway) callWithRetry(ctx context.Context, p provider, req Request) (string, Usage, int, error) {
	var lastErr error
	delay := g.retry.BaseDelay

	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		text, usage, err := p.Generate(ctx, req)
		if err == nil {
			return text, usage, attempt, nil
		}
		lastErr = err

		if !isTransient(err) {
			return "", Usage{}, attempt, err
		}
		// A non-idempotent request may have consumed quota on the way
		// down; re-sending it risks duplicate billing.
		if req.NonIdempotent {
			g.log.Warn("skipping retry for non-idempotent request", "provider", p.Name(), "model", req.Model)
			return "", Usage{}, attempt, err
		}
		if attempt == g.retry.MaxAttempts {
			break
		}

		g.log.Warn("transient provider failure, backing off",
			"provider", p.Name(), "model", req.Model, "attempt", attempt, "delay", delay.String(), "error", err.Error())

		select {
		case <-ctx.Done():
			return "", Usage{}, attempt, unavailable(ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * g.retry.Factor)
	}

	return "", Usage{}, g.retry.MaxAttempts, lastErr
}

func isTransient(err error) bool {
	// Only failures classified as unavailable are retried; everything
	// else is treated as a caller error.
	return errors.Is(err, ErrProviderUnavailable)
}

func hasUserMessage(messages []Message) bool {
	for _, m := range messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// groundingDirective instructs the model to cite sources in the marker
// format the extractor understands.
const groundingDirective = "実際の最新情報に基づいて回答してください。統計データや事実を述べる際は、出典を [Source: URL] 形式で記載してください。"

func appendGroundingDirective(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	for i, m := range out {
		if m.Role == RoleSystem {
			out[i].Content = m.Content + "\n" + groundingDirective
			return out
		}
	}
	return append([]Message{{Role: RoleSystem, Content: groundingDirective}}, out...)
}
