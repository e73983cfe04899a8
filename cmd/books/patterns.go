package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-books/internal/cli"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patterns",
		Aliases: []string{"recurring"},
		Short:   "Detect and track recurring payments",
	}

	cmd.AddCommand(patternsListCmd())
	cmd.AddCommand(patternsDetectCmd())
	cmd.AddCommand(patternsMissingCmd())
	cmd.AddCommand(patternsDisableCmd())

	return cmd
}

func patternsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored patterns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")

			eng, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			patterns, err := eng.Patterns(cmd.Context(), !all)
			if err != nil {
				return err
			}
			if len(patterns) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No patterns stored; run: books patterns detect"))
				return nil
			}
			return cli.RenderPatterns(cmd.OutOrStdout(), patterns)
		},
	}

	cmd.Flags().Bool("all", false, "Include inactive and disabled patterns")
	return cmd
}

func patternsDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Find recurring payments in reviewed transactions",
		Long: `Group reviewed transactions by merchant over the lookback window and
store every group with a regular interval and stable amount as a pattern.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			when, err := asOf(cmd)
			if err != nil {
				return err
			}

			eng, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := eng.DetectPatterns(cmd.Context(), when)
			out := cmd.OutOrStdout()
			if err != nil {
				if errors.Is(err, context.Canceled) && report != nil && len(report.Patterns) > 0 {
					_, _ = fmt.Fprintln(out, cli.FormatWarning("Detection cancelled; these patterns were found but not saved"))
					if renderErr := cli.RenderPatterns(out, report.Patterns); renderErr != nil {
						return renderErr
					}
				}
				return err
			}

			_, _ = fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%d recurring patterns", len(report.Patterns))))
			if len(report.Patterns) > 0 {
				if err := cli.RenderPatterns(out, report.Patterns); err != nil {
					return err
				}
			}
			for _, key := range report.Deactivated {
				_, _ = fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%s no longer recurs regularly; pattern deactivated", key)))
			}
			if verbose && len(report.Rejections) > 0 {
				_, _ = fmt.Fprintln(out)
				return cli.RenderRejections(out, report.Rejections)
			}
			return nil
		},
	}

	cmd.Flags().String("as-of", "", "Detection date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolP("verbose", "v", false, "Also list merchants that did not form a pattern")
	return cmd
}

func patternsMissingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missing",
		Short: "Report recurring payments that are overdue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			when, err := asOf(cmd)
			if err != nil {
				return err
			}

			eng, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			missing, err := eng.MissingPatterns(cmd.Context(), when)
			if err != nil {
				return err
			}
			if len(missing) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("No recurring payments overdue"))
				return nil
			}
			return cli.RenderMissing(cmd.OutOrStdout(), missing)
		},
	}

	cmd.Flags().String("as-of", "", "Check date (YYYY-MM-DD, default today)")
	return cmd
}

func patternsDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <pattern-id>",
		Short: "Stop tracking a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			eng, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.DisablePattern(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Pattern %d disabled", id)))
			return nil
		},
	}
}
