package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/cli"
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Manage the page ledger",
}

var pageListCmd = &cobra.Command{
	Use:   "list <book-id>",
	Short: "List a book's pages in ledger order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		pages, err := svcs.Ledger.ListOrdered(ctx, args[0])
		if err != nil {
			return err
		}
		return cli.Output(pages)
	},
}

var pageDeleteCmd = &cobra.Command{
	Use:   "delete <page-id>",
	Short: "Delete a page and close the numbering gap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		if err := svcs.Ledger.DeletePage(ctx, args[0]); err != nil {
			return err
		}
		return cli.Output(map[string]string{"deleted": args[0]})
	},
}

var pageReorderCmd = &cobra.Command{
	Use:   "reorder <book-id> <page-ids>",
	Short: "Reorder a book's pages",
	Long: `Reorder a book's pages. page-ids is a comma-separated permutation of
every page id in the book; the new ledger order follows the given sequence.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		ids := strings.Split(args[1], ",")
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
		if err := svcs.Ledger.Reorder(ctx, args[0], ids); err != nil {
			return err
		}
		pages, err := svcs.Ledger.ListOrdered(ctx, args[0])
		if err != nil {
			return err
		}
		return cli.Output(pages)
	},
}

func init() {
	pageCmd.AddCommand(pageListCmd, pageDeleteCmd, pageReorderCmd)
	rootCmd.AddCommand(pageCmd)
}
