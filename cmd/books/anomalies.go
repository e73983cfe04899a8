package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-books/internal/cli"
	"github.com/Veraticus/spice-books/internal/common"
)

func anomaliesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "anomalies",
		Aliases: []string{"audit"},
		Short:   "Check the books for audit-risk patterns",
		Long: `Run the advisory anomaly checks over a period: category ratios against
benchmarks, income spikes, duplicate density, personal-use ratio, idle months
and uncategorized entries. Findings are printed most severe first.`,
		Example: `  books anomalies --from 2024-01-01 --to 2024-12-31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := period(cmd)
			if err != nil {
				return err
			}

			interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx := interrupts.HandleInterrupts(cmd.Context(), "Anomaly scan")

			eng, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			quiet, _ := cmd.Flags().GetBool("quiet")
			progress := cli.NewProgress(cmd.ErrOrStderr(), "Running checks", quiet)
			findings, err := eng.Anomalies(ctx, from, to, progress.Update)
			progress.Finish()
			out := cmd.OutOrStdout()
			if err != nil {
				if errors.Is(err, context.Canceled) && len(findings) > 0 {
					_, _ = fmt.Fprintln(out, cli.FormatWarning("Scan cancelled; showing findings from the checks that finished"))
					if renderErr := cli.RenderFindings(out, findings); renderErr != nil {
						return renderErr
					}
				}
				if interrupts.WasInterrupted() {
					return common.NewUserError("Anomaly scan interrupted", err)
				}
				return err
			}

			if len(findings) == 0 {
				_, _ = fmt.Fprintln(out, cli.FormatSuccess("No anomalies found"))
				return nil
			}
			_, _ = fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%d findings, %s to %s", len(findings),
				from.Format(dateLayout), to.Format(dateLayout))))
			return cli.RenderFindings(out, findings)
		},
	}

	cmd.Flags().String("from", "", "Start date (YYYY-MM-DD, default January 1 of this year)")
	cmd.Flags().String("to", "", "End date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolP("quiet", "q", false, "Hide the progress bar")
	return cmd
}

// period reads --from and --to, defaulting to the current year to date.
func period(cmd *cobra.Command) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if f, err := dateFlag(cmd, "from"); err != nil {
		return from, to, err
	} else if f != nil {
		from = *f
	}
	if t, err := dateFlag(cmd, "to"); err != nil {
		return from, to, err
	} else if t != nil {
		to = *t
	}
	return from, to, nil
}
