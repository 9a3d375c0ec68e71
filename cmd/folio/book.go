package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/cli"
	"github.com/jackzampolin/folio/internal/types"
)

var (
	bookTitle    string
	bookSubtitle string
	bookAuthor   string
	bookLanguage string
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Manage manuscript records",
}

var bookCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new manuscript",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		book := &types.Book{
			Title:          bookTitle,
			Subtitle:       bookSubtitle,
			Author:         bookAuthor,
			SourceLanguage: bookLanguage,
			Status:         types.BookStatusNew,
		}
		id, err := svcs.Store.CreateBook(ctx, book)
		if err != nil {
			return err
		}
		book.ID = id
		return cli.Output(book)
	},
}

var bookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List manuscripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		books, err := svcs.Store.ListBooks(ctx)
		if err != nil {
			return err
		}
		return cli.Output(books)
	},
}

var bookShowCmd = &cobra.Command{
	Use:   "show <book-id>",
	Short: "Show one manuscript with its page ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		book, err := svcs.Store.GetBook(ctx, args[0])
		if err != nil {
			return err
		}
		pages, err := svcs.Ledger.ListOrdered(ctx, args[0])
		if err != nil {
			return err
		}
		return cli.Output(map[string]any{
			"book":  book,
			"pages": pages,
		})
	},
}

func init() {
	bookCreateCmd.Flags().StringVar(&bookTitle, "title", "", "manuscript title (required)")
	bookCreateCmd.Flags().StringVar(&bookSubtitle, "subtitle", "", "manuscript subtitle")
	bookCreateCmd.Flags().StringVar(&bookAuthor, "author", "", "author or attribution")
	bookCreateCmd.Flags().StringVar(&bookLanguage, "language", "", "source language of the manuscript")
	_ = bookCreateCmd.MarkFlagRequired("title")

	bookCmd.AddCommand(bookCreateCmd, bookListCmd, bookShowCmd)
	rootCmd.AddCommand(bookCmd)
}
