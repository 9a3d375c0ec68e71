package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/batch"
	"github.com/jackzampolin/folio/internal/cli"
	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/prompts"
)

var (
	processPages          string
	processTargetLanguage string
	processTranscribe     string
	processTranslate      string
	processSummarize      string
)

var processCmd = &cobra.Command{
	Use:   "process <book-id> <action>",
	Short: "Run a pipeline action across a book's pages",
	Long: `Run one action sequentially across a book's pages in ledger order.
Actions: transcribe, translate, summarize, detect-split.

Items are paced to stay under provider rate limits. A failed page is
recorded and the run continues; Ctrl+C stops after the in-flight page.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		// Long runs can span config edits; pick them up without a restart.
		svcs.Config.OnChange(func(*config.Config) {
			svcs.Logger.Info("configuration reloaded")
		})
		svcs.Config.WatchConfig()

		bookID := args[0]
		action := batch.Action(args[1])

		var pageIDs []string
		if processPages != "" {
			for _, id := range strings.Split(processPages, ",") {
				pageIDs = append(pageIDs, strings.TrimSpace(id))
			}
		} else {
			pages, err := svcs.Ledger.ListOrdered(ctx, bookID)
			if err != nil {
				return err
			}
			for _, p := range pages {
				pageIDs = append(pageIDs, p.ID)
			}
		}

		targetLanguage := processTargetLanguage
		if targetLanguage == "" {
			targetLanguage = svcs.Config.Get().Pipeline.TargetLanguage
		}

		result, err := svcs.Orchestrator.Run(ctx, batch.Request{
			BookID:         bookID,
			PageIDs:        pageIDs,
			Action:         action,
			TargetLanguage: targetLanguage,
			Overrides: prompts.Overrides{
				Transcribe: processTranscribe,
				Translate:  processTranslate,
				Summarize:  processSummarize,
			},
			OnProgress: func(ev batch.ProgressEvent) {
				fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", ev.CurrentIndex+1, ev.TotalCount, ev.CurrentPageID)
			},
		})
		if err != nil {
			return err
		}
		return cli.Output(result)
	},
}

func init() {
	processCmd.Flags().StringVar(&processPages, "pages", "", "comma-separated page ids (default: all pages in ledger order)")
	processCmd.Flags().StringVar(&processTargetLanguage, "target-language", "", "translation target language (default: from config)")
	processCmd.Flags().StringVar(&processTranscribe, "transcribe-prompt", "", "override the transcription prompt")
	processCmd.Flags().StringVar(&processTranslate, "translate-prompt", "", "override the translation prompt")
	processCmd.Flags().StringVar(&processSummarize, "summarize-prompt", "", "override the summary prompt")

	rootCmd.AddCommand(processCmd)
}
