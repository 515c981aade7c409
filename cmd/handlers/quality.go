package handlers

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pon-1234/seo-drafter-gcp/internal/config"
	"github.com/pon-1234/seo-drafter-gcp/internal/logger"
	"github.com/pon-1234/seo-drafter-gcp/internal/pipeline"
	"github.com/pon-1234/seo-drafter-gcp/internal/quality"
	"github.com/spf13/cobra"
)

// NewQualityCmd creates the standalone quality audit command
func NewQualityCmd() *cobra.Command {
	qualityCmd := &cobra.Command{
		Use:   "quality [draft-file]",
		Short: "Audit a markdown draft without regenerating it",
		Long: `Run the deterministic quality audit over an existing markdown draft
and print the report as JSON. The audit covers citation coverage of
numeric claims, duplication against a negative corpus, banned phrase
detection, heading structure and YMYL sensitivity.

Example:
  seo-drafter quality draft.md --keyword "医療保険 おすすめ"
  seo-drafter quality draft.md --rubric eeat-focused --corpus old-articles.json`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			keyword, _ := cmd.Flags().GetString("keyword")
			rubric, _ := cmd.Flags().GetString("rubric")
			corpusFile, _ := cmd.Flags().GetString("corpus")

			if err := runQuality(args[0], keyword, rubric, corpusFile); err != nil {
				logger.Error("Quality audit failed", err)
				os.Exit(1)
			}
		},
	}

	qualityCmd.Flags().StringP("keyword", "k", "", "Primary keyword the draft targets")
	qualityCmd.Flags().String("rubric", "", "Rubric to score against: standard, eeat-focused")
	qualityCmd.Flags().String("corpus", "", "JSON file with existing article bodies for duplication scoring")

	return qualityCmd
}

func runQuality(draftFile, keyword, rubric, corpusFile string) error {
	body, err := os.ReadFile(draftFile)
	if err != nil {
		return fmt.Errorf("failed to read draft file: %w", err)
	}

	var corpus []string
	if corpusFile != "" {
		data, err := os.ReadFile(corpusFile)
		if err != nil {
			return fmt.Errorf("failed to read corpus file: %w", err)
		}
		if err := json.Unmarshal(data, &corpus); err != nil {
			return fmt.Errorf("failed to parse corpus file: %w", err)
		}
	}

	cfg := pipeline.QualityConfig(config.Get())
	if rubric != "" {
		cfg.Rubric = rubric
	}

	report := quality.Evaluate(quality.Input{
		PrimaryKeyword: keyword,
		Body:           string(body),
		NegativeCorpus: corpus,
	}, cfg)

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
