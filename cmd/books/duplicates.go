package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-books/internal/cli"
	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/model"
)

func duplicatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "duplicates",
		Aliases: []string{"dups"},
		Short:   "List transactions flagged as possible duplicates",
		RunE:    runDuplicates,
	}

	cmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "End date (YYYY-MM-DD)")

	cmd.AddCommand(duplicatesMarkCmd())
	return cmd
}

func runDuplicates(cmd *cobra.Command, _ []string) error {
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}

	eng, cleanup, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	txns, err := eng.Duplicates(cmd.Context(), from, to)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("No duplicates flagged"))
		return nil
	}
	return cli.RenderTransactions(cmd.OutOrStdout(), txns)
}

func duplicatesMarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark <transaction-id> <none|fuzzy|exact> [original-id]",
		Short: "Override the duplicate status of a transaction",
		Long: `Override the duplicate status derived at import. The override is kept
by later scans. Marking fuzzy or exact requires the original transaction.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := model.DuplicateStatus(args[1])
			if !status.Valid() {
				return common.NewUserError(fmt.Sprintf("unknown status %q, use none, fuzzy or exact", args[1]), nil)
			}
			original := ""
			if len(args) == 3 {
				original = args[2]
			}

			eng, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.MarkDuplicate(cmd.Context(), args[0], status, original); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s marked %s", args[0], status)))
			return nil
		},
	}
	return cmd
}
