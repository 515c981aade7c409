package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	// DefaultEmbeddingModel is the model used for link-resolver query and
	// article embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions keeps embeddings at 768 dimensions.
	DefaultEmbeddingDimensions = int32(768)
)

// GeminiConfig configures the Gemini provider variant.
type GeminiConfig struct {
	APIKey         string
	Models         []string
	EmbeddingModel string
}

// geminiProvider serves generation requests through google.golang.org/genai.
type geminiProvider struct {
	client         *genai.Client
	models         map[string]bool
	embeddingModel string
}

// NewGeminiProvider builds the Gemini provider variant for the gateway.
// The returned Embedder is shared with the internal link resolver.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (Option, *GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, nil, errors.New("gemini api key missing; set GEMINI_API_KEY or ai.gemini.api_key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	models := make(map[string]bool, len(cfg.Models))
	for _, m := range cfg.Models {
		models[m] = true
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	p := &geminiProvider{client: client, models: models, embeddingModel: embeddingModel}
	return WithProvider(p), &GeminiEmbedder{client: client, model: embeddingModel}, nil
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) KnowsModel(model string) bool { return p.models[model] }

func (p *geminiProvider) Generate(ctx context.Context, req Request) (string, Usage, error) {
	// Gemini has no separate system role in the content list; system and
	// developer layers are combined into SystemInstruction.
	var systemParts []string
	var userParts []string
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			systemParts = append(systemParts, m.Content)
		case RoleDeveloper:
			systemParts = append(systemParts, "[developer]\n"+m.Content)
		default:
			userParts = append(userParts, m.Content)
		}
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: strings.Join(userParts, "\n\n---\n\n")}},
		Role:  "user",
	}}

	temp := float32(req.Temperature)
	config := &genai.GenerateContentConfig{Temperature: &temp}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(systemParts) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", Usage{}, classifyGeminiError(err)
	}

	text := resp.Text()
	if text == "" {
		return "", Usage{}, unavailable(errors.New("empty response from model"))
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return text, usage, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return unavailable(err)
		case apiErr.Code >= 400:
			return rejected(err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return unavailable(err)
	}
	return unavailable(fmt.Errorf("gemini call failed: %w", err))
}

// GeminiEmbedder generates query and article embeddings for the
// internal link resolver using Gemini's embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// Embed returns a 768-dimensional embedding for the given text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}

	dims := DefaultEmbeddingDimensions
	config := &genai.EmbedContentConfig{OutputDimensionality: &dims}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, v := range values {
		embedding[i] = float64(v)
	}
	return embedding, nil
}
