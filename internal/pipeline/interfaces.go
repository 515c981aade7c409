package pipeline

import (
	"context"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
	"github.com/pon-1234/seo-drafter-gcp/internal/links"
	"github.com/pon-1234/seo-drafter-gcp/internal/llm"
)

// Generator is the slice of the model gateway the pipeline consumes.
type Generator interface {
	// Generate issues a plain generation call.
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)

	// GenerateWithGrounding issues a generation call with the citation
	// directive applied and returns extracted citations with the text.
	GenerateWithGrounding(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// LinkProposer ranks internal link candidates for a keyword against the
// published-article corpus.
type LinkProposer interface {
	Resolve(ctx context.Context, q links.Query) []core.InternalLinkCandidate
}
