package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/cli"
	"github.com/jackzampolin/folio/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Manuscript digitization pipeline with LLM-powered transcription",
	Long: `Folio digitizes scanned manuscripts page by page: it maintains a
contiguously numbered page ledger, detects and splits two-page spreads,
and runs a chained transcribe/translate/summarize pipeline where each
page's output grounds the next.

Typical flow:
  folio book create --title "..."     # register a manuscript
  folio ingest <book-id> scan.pdf     # render PDF pages into the ledger
  folio process <book-id> detect-split
  folio split apply <page-id> --side left
  folio process <book-id> transcribe
  folio process <book-id> translate
  folio process <book-id> summarize`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.folio/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "folio home directory (default: ~/.folio)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cli.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
