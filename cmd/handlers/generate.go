package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pon-1234/seo-drafter-gcp/internal/artifact"
	"github.com/pon-1234/seo-drafter-gcp/internal/config"
	"github.com/pon-1234/seo-drafter-gcp/internal/core"
	"github.com/pon-1234/seo-drafter-gcp/internal/logger"
	"github.com/pon-1234/seo-drafter-gcp/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewGenerateCmd creates the draft generation command
func NewGenerateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate [brief-file]",
		Short: "Generate an article draft bundle from a keyword brief",
		Long: `Run a brief through the full drafting pipeline and save the resulting
bundle as JSON in the output directory.

The brief file is a JSON document with the primary keyword, reader and
writer personas, heading directives and model selection.

Example:
  seo-drafter generate brief.json
  seo-drafter generate brief.json --output drafts --no-links`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			outputDir, _ := cmd.Flags().GetString("output")
			noLinks, _ := cmd.Flags().GetBool("no-links")

			if outputDir == "" {
				outputDir = config.GetOutputDirectory()
			}

			if err := runGenerate(cmd.Context(), args[0], outputDir, noLinks); err != nil {
				logger.Error("Draft generation failed", err)
				os.Exit(1)
			}
		},
	}

	generateCmd.Flags().StringP("output", "o", "", "Output directory for the draft bundle")
	generateCmd.Flags().Bool("no-links", false, "Disable internal link proposal")

	return generateCmd
}

func runGenerate(ctx context.Context, briefFile, outputDir string, noLinks bool) error {
	brief, err := readBrief(briefFile)
	if err != nil {
		return err
	}

	logger.Info("Starting draft generation",
		"brief_file", briefFile,
		"job_id", brief.JobID,
		"keyword", brief.PrimaryKeyword)

	builder := pipeline.NewBuilder(config.Get())
	if noLinks {
		builder.WithoutLinks()
	}
	p, _, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	bundle, runErr := p.Run(ctx, *brief)
	if runErr != nil && bundle == nil {
		return runErr
	}

	store, err := artifact.NewFileStore(outputDir)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}
	draftID, err := store.Save(ctx, bundle)
	if err != nil {
		return fmt.Errorf("failed to save draft bundle: %w", err)
	}

	for _, w := range bundle.Warnings {
		fmt.Printf("⚠️  %s: %s\n", w.Stage, w.Message)
	}
	fmt.Printf("Quality: %s\n", bundle.Quality.RubricSummary)
	if bundle.Quality.RequiresExpertReview {
		fmt.Println("⚠️  Draft requires expert review before publication")
	}
	fmt.Printf("✅ Draft saved: %s\n", store.Path(draftID))

	// A failed run still saves its degraded bundle for inspection.
	return runErr
}

func readBrief(path string) (*core.Brief, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read brief file: %w", err)
	}
	var brief core.Brief
	if err := json.Unmarshal(data, &brief); err != nil {
		return nil, fmt.Errorf("failed to parse brief file: %w", err)
	}
	return &brief, nil
}
