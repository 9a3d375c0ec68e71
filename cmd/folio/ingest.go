package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/cli"
	"github.com/jackzampolin/folio/internal/ingest"
	"github.com/jackzampolin/folio/internal/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <book-id> [pdf...]",
	Short: "Render scan PDFs into page images and append them to the ledger",
	Long: `Render scan PDFs into per-page images under the folio home directory
and append one ledger page per image. With no PDF arguments, the book's
originals directory is scanned and files ingest in numeric-suffix order.

Requires pdftoppm (poppler-utils) on PATH.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		bookID := args[0]
		ing := ingest.New(svcs.Ledger, svcs.Home, svcs.Logger)
		result, err := ing.Ingest(ctx, ingest.Request{
			BookID:   bookID,
			PDFPaths: args[1:],
		})
		if err != nil {
			return err
		}

		if err := svcs.Store.UpdateBook(ctx, bookID, map[string]any{
			"status": string(types.BookStatusIngested),
		}); err != nil {
			return err
		}
		return cli.Output(result)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
