package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-books/internal/cli"
	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage classification rules",
		Long: `Rules assign a category to every description they match. They are
checked in priority order before merchant history. A rule corrected too
often is disabled automatically; enabling it again pins it on.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesEnableCmd())
	cmd.AddCommand(rulesDisableCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			rules, err := eng.Rules(cmd.Context())
			if err != nil {
				return err
			}
			if len(rules) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No rules defined"))
				return nil
			}
			return cli.RenderRules(cmd.OutOrStdout(), rules)
		},
	}
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name> <pattern> <category>",
		Short: "Add a classification rule",
		Long: `Add a rule. Match types:
  contains  case-insensitive substring of the description (default)
  alias     one of several merchant names separated by |
  regex     case-insensitive regular expression

Examples:
  books rules add coffee starbucks Meals
  books rules add cloud 'aws|amazon web services' Software --match alias
  books rules add fuel '^(shell|chevron)' Auto --match regex --priority 10`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchType, _ := cmd.Flags().GetString("match")
			priority, _ := cmd.Flags().GetInt("priority")
			personal, _ := cmd.Flags().GetBool("personal")

			rule := &model.Rule{
				Name:       args[0],
				Pattern:    args[1],
				Category:   args[2],
				MatchType:  model.RuleMatchType(strings.ToLower(matchType)),
				Priority:   priority,
				IsPersonal: personal,
			}
			if !rule.MatchType.Valid() {
				return common.NewUserError(fmt.Sprintf("unknown match type %q", matchType), nil)
			}

			eng, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.AddRule(cmd.Context(), rule); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %d added", rule.ID)))
			return nil
		},
	}

	cmd.Flags().String("match", string(model.MatchContains), "Match type (contains, alias, regex)")
	cmd.Flags().Int("priority", 100, "Evaluation order; lower runs first")
	cmd.Flags().Bool("personal", false, "Matched transactions are personal")

	return cmd
}

func rulesEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <rule-id>",
		Short: "Re-enable a rule and pin it against auto-disable",
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

			rule, err := eng.EnableRule(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %d (%s) enabled and pinned", rule.ID, rule.Name)))
			return nil
		},
	}
}

func rulesDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Disable a rule",
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

			rule, err := eng.DisableRule(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %d (%s) disabled", rule.ID, rule.Name)))
			return nil
		},
	}
}
