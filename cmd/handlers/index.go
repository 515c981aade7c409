package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pon-1234/seo-drafter-gcp/internal/config"
	"github.com/pon-1234/seo-drafter-gcp/internal/core"
	"github.com/pon-1234/seo-drafter-gcp/internal/logger"
	"github.com/pon-1234/seo-drafter-gcp/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewIndexCmd creates the corpus indexing command
func NewIndexCmd() *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index [corpus-file]",
		Short: "Index published articles for internal link proposal",
		Long: `Load article records from a JSON file and index them in the link
corpus. Each record is embedded when an embedding provider is
configured; otherwise articles are indexed for lexical matching only.

The corpus file is a JSON array of records:
  [{"id": "a1", "url": "https://example.com/kaikei", "title": "...", "snippet": "..."}]

Example:
  seo-drafter index corpus.json`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runIndex(cmd.Context(), args[0]); err != nil {
				logger.Error("Corpus indexing failed", err)
				os.Exit(1)
			}
		},
	}

	return indexCmd
}

func runIndex(ctx context.Context, corpusFile string) error {
	data, err := os.ReadFile(corpusFile)
	if err != nil {
		return fmt.Errorf("failed to read corpus file: %w", err)
	}
	var articles []core.ArticleRecord
	if err := json.Unmarshal(data, &articles); err != nil {
		return fmt.Errorf("failed to parse corpus file: %w", err)
	}
	if len(articles) == 0 {
		fmt.Println("No articles found in corpus file")
		return nil
	}

	_, resolver, err := pipeline.NewBuilder(config.Get()).Build(ctx)
	if err != nil {
		return err
	}
	if resolver == nil {
		return fmt.Errorf("link corpus unavailable, check the data directory")
	}

	indexed := 0
	for _, article := range articles {
		if err := resolver.StoreArticleEmbedding(ctx, article); err != nil {
			logger.Warn("Failed to index article", "id", article.ID, "error", err.Error())
			fmt.Printf("❌ %s: %s\n", article.URL, err)
			continue
		}
		indexed++
		fmt.Printf("✅ %s\n", article.URL)
	}

	fmt.Printf("\n📊 Indexed %d/%d articles\n", indexed, len(articles))
	if indexed < len(articles) {
		return fmt.Errorf("%d articles failed to index", len(articles)-indexed)
	}
	return nil
}
