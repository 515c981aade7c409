// Package links resolves internal link candidates for a draft from a
// corpus of previously published articles.
package links

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
)

// DefaultTopK bounds how many candidates a resolution returns.
const DefaultTopK = 5

const maxAnchorRunes = 30

// Embedder produces query and article embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CorpusStore is the shared article corpus. Reads are idempotent and
// writes are keyed by article id, so callers need no per-run locking.
type CorpusStore interface {
	Published(ctx context.Context) ([]core.ArticleRecord, error)
	Upsert(ctx context.Context, article core.ArticleRecord) error
}

// Query describes what the caller wants links for.
type Query struct {
	Keyword      string
	PersonaGoals []string
	TopK         int
}

// Resolver ranks published articles against a query. The embedding path
// is preferred; lexical overlap serves as the fallback so callers never
// see a different output shape.
type Resolver struct {
	store    CorpusStore
	embedder Embedder
	log      *slog.Logger
}

// NewResolver builds a resolver. The embedder may be nil, in which case
// every resolution uses the lexical path.
func NewResolver(store CorpusStore, embedder Embedder, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, embedder: embedder, log: log}
}

// Resolve returns up to TopK candidates ordered by descending score.
// Resolution is best-effort: corpus or embedding failures degrade to
// the lexical path or an empty result, never an error the pipeline has
// to handle.
func (r *Resolver) Resolve(ctx context.Context, q Query) []core.InternalLinkCandidate {
	if strings.TrimSpace(q.Keyword) == "" {
		return nil
	}
	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	articles, err := r.store.Published(ctx)
	if err != nil {
		r.log.Warn("internal link corpus unavailable", "error", err.Error())
		return nil
	}
	if len(articles) == 0 {
		return nil
	}

	if r.embedder != nil {
		if candidates := r.resolveByEmbedding(ctx, q, articles, topK); candidates != nil {
			return candidates
		}
	}
	return r.resolveByKeyword(q, articles, topK)
}

func (r *Resolver) resolveByEmbedding(ctx context.Context, q Query, articles []core.ArticleRecord, topK int) []core.InternalLinkCandidate {
	queryVec, err := r.embedder.Embed(ctx, q.Keyword)
	if err != nil {
		r.log.Warn("query embedding failed, falling back to keyword search", "error", err.Error())
		return nil
	}

	var candidates []core.InternalLinkCandidate
	for _, a := range articles {
		if len(a.Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(queryVec, a.Embedding)
		if sim <= 0 {
			continue
		}
		candidates = append(candidates, core.InternalLinkCandidate{
			URL:     a.URL,
			Title:   a.Title,
			Anchor:  SuggestAnchor(a.Title, q.Keyword),
			Score:   round3(sim),
			Snippet: a.Snippet,
		})
	}
	if len(candidates) == 0 {
		// Corpus has no indexed embeddings yet.
		return nil
	}

	sortCandidates(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

func (r *Resolver) resolveByKeyword(q Query, articles []core.ArticleRecord, topK int) []core.InternalLinkCandidate {
	keyword := strings.ToLower(strings.TrimSpace(q.Keyword))

	goals := make([]string, 0, len(q.PersonaGoals))
	for _, g := range q.PersonaGoals {
		if g = strings.TrimSpace(g); g != "" {
			goals = append(goals, strings.ToLower(g))
		}
	}

	candidates := make([]core.InternalLinkCandidate, 0, len(articles))
	for _, a := range articles {
		score := lexicalScore(a.Title, a.Snippet, keyword, goals)
		candidates = append(candidates, core.InternalLinkCandidate{
			URL:     a.URL,
			Title:   a.Title,
			Anchor:  SuggestAnchor(a.Title, q.Keyword),
			Score:   score,
			Snippet: a.Snippet,
		})
	}

	sortCandidates(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// StoreArticleEmbedding indexes a published article for future
// resolution. Idempotent on article id; re-indexing overwrites the
// prior record. A failed embedding is not fatal, the article is still
// indexed for the lexical path.
func (r *Resolver) StoreArticleEmbedding(ctx context.Context, article core.ArticleRecord) error {
	article.Published = true
	if article.UpdatedAt.IsZero() {
		article.UpdatedAt = time.Now().UTC()
	}

	if r.embedder != nil && len(article.Embedding) == 0 {
		text := strings.TrimSpace(article.Title + "\n" + article.Snippet)
		vec, err := r.embedder.Embed(ctx, text)
		if err != nil {
			r.log.Warn("article embedding failed, indexing without vector",
				"article_id", article.ID, "error", err.Error())
		} else {
			article.Embedding = vec
		}
	}
	return r.store.Upsert(ctx, article)
}

// lexicalScore mirrors the ranking used before embeddings existed:
// keyword hits on title and snippet dominate, a persona goal match adds
// a small boost, and scores cap just below 1.
func lexicalScore(title, snippet, keyword string, goals []string) float64 {
	score := 0.1
	titleLower := strings.ToLower(title)
	snippetLower := strings.ToLower(snippet)

	if keyword != "" && strings.Contains(titleLower, keyword) {
		score += 0.55
	}
	if keyword != "" && strings.Contains(snippetLower, keyword) {
		score += 0.2
	}
	for _, goal := range goals {
		if strings.Contains(snippetLower, goal) {
			score += 0.15
			break
		}
	}
	return round3(math.Min(score, 0.99))
}

// SuggestAnchor derives anchor text from the article title and the
// query keyword without a model call. Long titles are shortened to a
// keyword-inclusive window.
func SuggestAnchor(title, keyword string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return strings.TrimSpace(keyword)
	}

	runes := []rune(title)
	if len(runes) <= maxAnchorRunes {
		return title
	}

	keyword = strings.TrimSpace(keyword)
	if keyword != "" {
		if idx := runeIndex(title, keyword); idx >= 0 {
			end := idx + maxAnchorRunes
			if end > len(runes) {
				end = len(runes)
				idx = end - maxAnchorRunes
			}
			return string(runes[idx:end])
		}
	}
	return string(runes[:maxAnchorRunes])
}

func runeIndex(s, substr string) int {
	byteIdx := strings.Index(s, substr)
	if byteIdx < 0 {
		return -1
	}
	return len([]rune(s[:byteIdx]))
}

// sortCandidates orders by score descending with URL as a stable
// tie-break so repeated resolutions return identical slices.
func sortCandidates(candidates []core.InternalLinkCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].URL < candidates[j].URL
	})
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
