package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pon-1234/seo-drafter-gcp/internal/config"
	"github.com/pon-1234/seo-drafter-gcp/internal/links"
	"github.com/pon-1234/seo-drafter-gcp/internal/llm"
	"github.com/pon-1234/seo-drafter-gcp/internal/logger"
	"github.com/pon-1234/seo-drafter-gcp/internal/quality"
)

// Builder constructs a fully configured Pipeline from application
// configuration: gateway providers, the link resolver with its corpus
// store, and pipeline settings.
type Builder struct {
	cfg       *config.Config
	store     links.CorpusStore
	skipLinks bool
}

// NewBuilder creates a pipeline builder over the given configuration.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// WithCorpusStore overrides the default SQLite corpus store.
func (b *Builder) WithCorpusStore(store links.CorpusStore) *Builder {
	b.store = store
	return b
}

// WithoutLinks disables internal link proposal.
func (b *Builder) WithoutLinks() *Builder {
	b.skipLinks = true
	return b
}

// Build wires the gateway, resolver and pipeline together. The second
// return value is the resolver, which callers use for corpus indexing;
// it is nil when links are disabled.
func (b *Builder) Build(ctx context.Context) (*Pipeline, *links.Resolver, error) {
	if b.cfg == nil {
		return nil, nil, fmt.Errorf("configuration is required")
	}

	var gatewayOpts []llm.Option
	gatewayOpts = append(gatewayOpts, llm.WithRetryPolicy(llm.RetryPolicy{
		MaxAttempts: b.cfg.AI.Retry.MaxAttempts,
		BaseDelay:   time.Duration(b.cfg.AI.Retry.BaseDelayMS) * time.Millisecond,
		Factor:      b.cfg.AI.Retry.Factor,
	}))

	var embedder links.Embedder
	if b.cfg.AI.Gemini.APIKey != "" {
		opt, geminiEmbedder, err := llm.NewGeminiProvider(ctx, llm.GeminiConfig{
			APIKey:         b.cfg.AI.Gemini.APIKey,
			Models:         b.cfg.AI.Gemini.Models,
			EmbeddingModel: b.cfg.AI.Gemini.EmbeddingModel,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to configure Gemini provider: %w", err)
		}
		gatewayOpts = append(gatewayOpts, opt)
		embedder = geminiEmbedder
	}
	if b.cfg.AI.OpenAI.APIKey != "" {
		opt, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  b.cfg.AI.OpenAI.APIKey,
			BaseURL: b.cfg.AI.OpenAI.BaseURL,
			Models:  b.cfg.AI.OpenAI.Models,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to configure OpenAI provider: %w", err)
		}
		gatewayOpts = append(gatewayOpts, opt)
	}
	gateway := llm.NewGateway(gatewayOpts...)

	var resolver *links.Resolver
	if !b.skipLinks {
		store := b.store
		if store == nil {
			sqlStore, err := links.NewSQLStore(b.cfg.App.DataDir)
			if err != nil {
				// Non-fatal: link proposal degrades to a warning at run time.
				logger.Warn("failed to open corpus store, internal links disabled", "error", err.Error())
			} else {
				store = sqlStore
			}
		}
		if store != nil {
			resolver = links.NewResolver(store, embedder, logger.Get())
		}
	}

	pipelineConfig := b.pipelineConfig()
	var linker LinkProposer
	if resolver != nil {
		linker = resolver
	}
	return NewPipeline(gateway, linker, pipelineConfig), resolver, nil
}

func (b *Builder) pipelineConfig() *Config {
	cfg := DefaultConfig()
	cfg.Provider = b.cfg.AI.DefaultProvider
	switch cfg.Provider {
	case "openai":
		cfg.Model = b.cfg.AI.OpenAI.Model
	default:
		cfg.Model = b.cfg.AI.Gemini.Model
	}

	p := b.cfg.Pipeline
	if p.Temperature > 0 {
		cfg.Temperature = p.Temperature
	}
	if p.MaxTokens > 0 {
		cfg.MaxTokens = p.MaxTokens
	}
	if p.WordsPerHeading > 0 {
		cfg.WordsPerHeading = p.WordsPerHeading
	}
	if p.MinHeadings > 0 {
		cfg.MinHeadings = p.MinHeadings
	}
	if p.MaxHeadings > 0 {
		cfg.MaxHeadings = p.MaxHeadings
	}
	if p.MaxConcurrentSections > 0 {
		cfg.MaxConcurrentSections = p.MaxConcurrentSections
	}
	if p.TimeoutSeconds > 0 {
		cfg.PipelineTimeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	cfg.RewriteEnabled = p.RewriteEnabled
	if p.RewriteWorkers > 0 {
		cfg.RewriteWorkers = p.RewriteWorkers
	}
	if b.cfg.Links.TopK > 0 {
		cfg.LinkTopK = b.cfg.Links.TopK
	}

	cfg.Quality = QualityConfig(b.cfg)
	return cfg
}

// QualityConfig maps application settings onto the quality engine
// configuration, keeping defaults where the setting is unset.
func QualityConfig(appCfg *config.Config) quality.Config {
	q := quality.DefaultConfig()
	c := appCfg.Quality
	if c.Rubric != "" {
		q.Rubric = c.Rubric
	}
	if c.ProximityWindow > 0 {
		q.ProximityWindow = c.ProximityWindow
	}
	if c.ShingleSize > 0 {
		q.ShingleSize = c.ShingleSize
	}
	if c.MaxSentenceLen > 0 {
		q.MaxSentenceLength = c.MaxSentenceLen
	}
	if len(c.ExcessivePhrases) > 0 {
		q.ExcessivePhrases = c.ExcessivePhrases
	}
	if len(c.AbstractPhrases) > 0 {
		q.AbstractPhrases = c.AbstractPhrases
	}
	if len(c.YMYLMarkers) > 0 {
		q.YMYLMarkers = c.YMYLMarkers
	}
	return q
}
