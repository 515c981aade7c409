package handlers

import (
	"fmt"
	"os"

	"github.com/pon-1234/seo-drafter-gcp/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "seo-drafter",
		Short: "seo-drafter generates and audits long-form SEO article drafts",
		Long: `seo-drafter runs a keyword brief through outline generation, grounded
section drafting, style rewriting and a deterministic quality audit,
and writes the resulting draft bundle as JSON.

Examples:
  seo-drafter generate brief.json
  seo-drafter index corpus.json
  seo-drafter quality draft.md --keyword "クラウド会計ソフト おすすめ"`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seo-drafter.yaml)")

	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewIndexCmd())
	rootCmd.AddCommand(NewQualityCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}
