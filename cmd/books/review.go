package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-books/internal/cli"
	"github.com/Veraticus/spice-books/internal/engine"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/service"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review [transaction-id category]",
		Short: "Confirm or correct transaction categories",
		Long: `Record your verdict on a classification. The first review of a
transaction teaches the rule or merchant that classified it.

With no arguments, steps through unreviewed transactions interactively.
Type a category name, a suggestion number, or =name to use a name that
would otherwise be read as a command (=S, =2).

Examples:
  books review 3f2a9c1e Travel
  books review 3f2a9c1e Meals --personal
  books review --from 2024-01-01 --to 2024-03-31`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected a transaction id and a category, or nothing")
			}
			return nil
		},
		RunE: runReview,
	}

	cmd.Flags().Bool("personal", false, "Mark the transaction personal")
	cmd.Flags().Bool("business", false, "Mark the transaction business")
	cmd.Flags().String("from", "", "Start date for interactive review (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "End date for interactive review (YYYY-MM-DD)")
	cmd.Flags().Int("limit", 0, "Maximum transactions to review interactively")
	cmd.MarkFlagsMutuallyExclusive("personal", "business")

	return cmd
}

func runReview(cmd *cobra.Command, args []string) error {
	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Review")

	eng, cleanup, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 0 {
		return reviewInteractive(ctx, cmd, eng)
	}

	req := engine.ReviewRequest{TransactionID: args[0], Category: args[1]}
	if personal, _ := cmd.Flags().GetBool("personal"); personal {
		req.IsPersonal = &personal
	}
	if business, _ := cmd.Flags().GetBool("business"); business {
		personal := false
		req.IsPersonal = &personal
	}

	result, err := eng.Review(ctx, req)
	if err != nil {
		return err
	}
	return printReview(cmd, result)
}

func reviewInteractive(ctx context.Context, cmd *cobra.Command, eng *engine.Engine) error {
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	pending, err := eng.Pending(ctx, service.TransactionFilter{StartDate: from, EndDate: to})
	if err != nil {
		return err
	}
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	out := cmd.OutOrStdout()
	if len(pending) == 0 {
		_, _ = fmt.Fprintln(out, cli.FormatSuccess("Nothing left to review"))
		return nil
	}
	_, _ = fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%d transactions to review", len(pending))))

	prompter := cli.NewReviewPrompter(cmd.InOrStdin(), out)
	reviewed := 0
	for _, txn := range pending {
		suggestions, err := eng.Suggest(ctx, txn.ID)
		if err != nil {
			return err
		}

		decision, err := prompter.Ask(ctx, txn, suggestions)
		if errors.Is(err, cli.ErrInputCancelled) {
			break
		}
		if err != nil {
			return err
		}

		switch decision.Action {
		case cli.ActionSkip:
			continue
		case cli.ActionQuit:
			_, _ = fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Reviewed %d of %d", reviewed, len(pending))))
			return nil
		}

		req := engine.ReviewRequest{TransactionID: txn.ID, Category: decision.Category}
		if decision.TogglePersonal {
			flipped := !txn.IsPersonal
			req.IsPersonal = &flipped
		}
		result, err := eng.Review(ctx, req)
		if err != nil {
			return err
		}
		reviewed++
		if result.Outcome != nil && result.Outcome.AutoDisabled {
			_, _ = fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Rule %d was disabled after repeated corrections", result.Outcome.SubjectID)))
		}
	}

	_, _ = fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Reviewed %d of %d", reviewed, len(pending))))
	return nil
}

func printReview(cmd *cobra.Command, result *engine.ReviewResult) error {
	out := cmd.OutOrStdout()
	txn := result.Transaction
	_, _ = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s → %s", txn.Description, txn.Category)))

	if ev := result.Event; ev != nil {
		verdict := "confirmed"
		if !ev.WasCorrect {
			verdict = "corrected from " + ev.OldCategory
		}
		_, _ = fmt.Fprintf(out, "  %s %d %s, accuracy now %.0f%%\n", ev.Subject, ev.SubjectID, verdict, result.Outcome.Accuracy)
		if result.Outcome.AutoDisabled {
			_, _ = fmt.Fprintln(out, "  "+cli.FormatWarning("rule disabled after repeated corrections; re-enable with: books rules enable "+fmt.Sprint(ev.SubjectID)))
		}
		if result.Outcome.Tier != result.Outcome.PreviousTier && ev.Subject == model.SubjectMerchant {
			_, _ = fmt.Fprintf(out, "  merchant confidence %d → %d\n", result.Outcome.PreviousTier, result.Outcome.Tier)
		}
	}
	if m := result.CreatedMerchant; m != nil {
		_, _ = fmt.Fprintln(out, "  "+cli.FormatInfo(fmt.Sprintf("learned merchant %q as %s", m.Name, m.DefaultCategory)))
	}
	if len(result.Suggestions) > 0 {
		_, _ = fmt.Fprintln(out, "  Past corrections for this classification:")
		return cli.RenderSuggestions(out, result.Suggestions)
	}
	return nil
}

func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <transaction-id>",
		Short: "Suggest alternative categories from correction history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			suggestions, err := eng.Suggest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No correction history for this classification"))
				return nil
			}
			return cli.RenderSuggestions(cmd.OutOrStdout(), suggestions)
		},
	}
}
