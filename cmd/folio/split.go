package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/cli"
	"github.com/jackzampolin/folio/internal/split"
)

var (
	splitSide  string
	splitRatio int
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Detect and split two-page spreads",
}

var splitDetectCmd = &cobra.Command{
	Use:   "detect <page-id>",
	Short: "Ask the vision model whether a page is a two-page spread",
	Long: `Ask the vision model whether a page image shows two facing physical
pages. The verdict is cached on the page; it never splits anything by
itself. Use "split apply" to act on it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		detection, err := svcs.SplitEngine.DetectSpread(ctx, args[0])
		if err != nil {
			return err
		}
		return cli.Output(detection)
	},
}

var splitApplyCmd = &cobra.Command{
	Use:   "apply <page-id>",
	Short: "Split a spread into two pages",
	Long: `Split a spread page into two. The origin page keeps the half named by
--side and the other half becomes a new page inserted directly after it;
later pages renumber to stay contiguous.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		result, err := svcs.SplitEngine.ApplySplit(ctx, args[0], split.Side(splitSide), splitRatio)
		if err != nil {
			return err
		}
		return cli.Output(result)
	},
}

var splitManualCmd = &cobra.Command{
	Use:   "manual <page-id>",
	Short: "Split a page down the middle without model detection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		result, err := svcs.SplitEngine.SplitManual(ctx, args[0], split.Side(splitSide))
		if err != nil {
			return err
		}
		return cli.Output(result)
	},
}

func init() {
	for _, c := range []*cobra.Command{splitApplyCmd, splitManualCmd} {
		c.Flags().StringVar(&splitSide, "side", "left", "half the origin page keeps: left or right")
	}
	splitApplyCmd.Flags().IntVar(&splitRatio, "ratio", split.DefaultSplitRatio, "boundary position as a percentage of page width (1-99)")

	splitCmd.AddCommand(splitDetectCmd, splitApplyCmd, splitManualCmd)
	rootCmd.AddCommand(splitCmd)
}
