package links

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
)

// SQLStore persists the article corpus in a local SQLite database.
type SQLStore struct {
	db   *sql.DB
	path string
}

// NewSQLStore opens (or creates) the corpus database under dataDir.
func NewSQLStore(dataDir string) (*SQLStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "corpus.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLStore{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func (s *SQLStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT,
		snippet TEXT,
		published INTEGER NOT NULL DEFAULT 0,
		embedding TEXT,
		updated_at DATETIME
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create articles table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Published returns all published articles in stable id order.
func (s *SQLStore) Published(ctx context.Context) ([]core.ArticleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, snippet, embedding, updated_at
		FROM articles WHERE published = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query published articles: %w", err)
	}
	defer rows.Close()

	var articles []core.ArticleRecord
	for rows.Next() {
		var (
			a            core.ArticleRecord
			embeddingRaw sql.NullString
			updatedAt    sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.Snippet, &embeddingRaw, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		a.Published = true
		if updatedAt.Valid {
			a.UpdatedAt = updatedAt.Time
		}
		if embeddingRaw.Valid && embeddingRaw.String != "" {
			if err := json.Unmarshal([]byte(embeddingRaw.String), &a.Embedding); err != nil {
				// A corrupt vector should not hide the article from the
				// lexical path.
				a.Embedding = nil
			}
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// Upsert writes an article keyed by id, overwriting any prior record.
func (s *SQLStore) Upsert(ctx context.Context, article core.ArticleRecord) error {
	var embeddingJSON []byte
	if len(article.Embedding) > 0 {
		var err error
		embeddingJSON, err = json.Marshal(article.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (id, url, title, snippet, published, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			snippet = excluded.snippet,
			published = excluded.published,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`,
		article.ID, article.URL, article.Title, truncateSnippet(article.Snippet),
		boolToInt(article.Published), string(embeddingJSON), article.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert article %s: %w", article.ID, err)
	}
	return nil
}

// Snippets are capped so the corpus stays a lightweight index, not a
// content mirror.
func truncateSnippet(snippet string) string {
	runes := []rune(snippet)
	if len(runes) <= 500 {
		return snippet
	}
	return string(runes[:500])
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
