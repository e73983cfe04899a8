package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-books/internal/cli"
)

func merchantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "merchants",
		Aliases: []string{"merchant"},
		Short:   "Manage the merchant registry",
		Long: `Merchants map a normalized merchant name, and any aliases, to a default
category. Their confidence follows how often reviews confirm them.`,
	}

	cmd.AddCommand(merchantsListCmd())
	cmd.AddCommand(merchantsAddCmd())
	cmd.AddCommand(merchantsAliasCmd())

	return cmd
}

func merchantsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List merchants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			merchants, err := eng.Merchants(cmd.Context())
			if err != nil {
				return err
			}
			if len(merchants) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No merchants registered"))
				return nil
			}
			return cli.RenderMerchants(cmd.OutOrStdout(), merchants)
		},
	}
}

func merchantsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name> <category>",
		Short: "Register a merchant",
		Example: `  books merchants add "Whole Foods Market" Groceries --alias WFM --personal
  books merchants add "Adobe" Software`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			aliases, _ := cmd.Flags().GetStringSlice("alias")
			personal, _ := cmd.Flags().GetBool("personal")

			eng, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			profile, err := eng.AddMerchant(cmd.Context(), args[0], args[1], personal, aliases...)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Merchant %d (%s) added", profile.ID, profile.Name)))
			return nil
		},
	}

	cmd.Flags().StringSlice("alias", nil, "Alternative merchant names (repeatable)")
	cmd.Flags().Bool("personal", false, "Transactions at this merchant are personal")

	return cmd
}

func merchantsAliasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alias <merchant-id> <alias>",
		Short: "Add an alias to a merchant",
		Args:  cobra.ExactArgs(2),
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

			profile, err := eng.AddAlias(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s now has %d aliases", profile.Name, len(profile.Aliases))))
			return nil
		},
	}
}
