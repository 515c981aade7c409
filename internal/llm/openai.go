package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the OpenAI provider variant.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Models  []string
}

// openaiProvider serves generation requests through the official
// openai-go SDK (chat completions).
type openaiProvider struct {
	client openai.Client
	models map[string]bool
}

// NewOpenAIProvider builds the OpenAI provider variant for the gateway.
func NewOpenAIProvider(cfg OpenAIConfig) (Option, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; set OPENAI_API_KEY or ai.openai.api_key")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	models := make(map[string]bool, len(cfg.Models))
	for _, m := range cfg.Models {
		models[m] = true
	}

	p := &openaiProvider{
		client: openai.NewClient(opts...),
		models: models,
	}
	return WithProvider(p), nil
}

func (p *openaiProvider) Name() string { return "openai" }

func (p *openaiProvider) KnowsModel(model string) bool { return p.models[model] }

func (p *openaiProvider) Generate(ctx context.Context, req Request) (string, Usage, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleDeveloper:
			// Developer directives ride in the system layer for chat
			// completions.
			msgs = append(msgs, openai.SystemMessage("[developer]\n"+m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Usage{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, unavailable(errors.New("openai: empty choices"))
	}

	usage := Usage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429 || apierr.StatusCode >= 500:
			return unavailable(err)
		case apierr.StatusCode >= 400:
			return rejected(err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return unavailable(err)
	}
	// Network-level failures surface as plain errors from the SDK.
	return unavailable(fmt.Errorf("openai call failed: %w", err))
}
