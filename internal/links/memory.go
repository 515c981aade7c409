package links

import (
	"context"
	"sort"
	"sync"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
)

// MemoryStore is an in-process corpus used in tests and single-shot CLI
// runs where no database file is wanted. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	articles map[string]core.ArticleRecord
}

// NewMemoryStore returns an empty in-memory corpus.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{articles: make(map[string]core.ArticleRecord)}
}

// Published returns published articles in stable id order.
func (m *MemoryStore) Published(_ context.Context) ([]core.ArticleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.ArticleRecord
	for _, a := range m.articles {
		if a.Published {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Upsert writes an article keyed by id, overwriting any prior record.
func (m *MemoryStore) Upsert(_ context.Context, article core.ArticleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles[article.ID] = article
	return nil
}

// Len reports how many articles are indexed.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.articles)
}
