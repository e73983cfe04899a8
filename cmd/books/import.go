package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-books/internal/cli"
	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from OFX/QFX statements",
		Long: `Import transactions from OFX or QFX files exported from your bank.

Every transaction is scored against stored transactions near its date. Likely
duplicates are imported but flagged for review; nothing is dropped.

Examples:
  books import ~/Downloads/chase_jan_2024.qfx
  books import ~/Downloads/*.qfx
  books import ~/Statements/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolP("quiet", "q", false, "Hide the progress bar")
	cmd.Flags().BoolP("verbose", "v", false, "List flagged duplicates with their candidates")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	verbose, _ := cmd.Flags().GetBool("verbose")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Import")

	parser := ofx.NewParser()
	var batch []model.Transaction
	for _, path := range files {
		txns, err := parseStatement(ctx, parser, path)
		if err != nil {
			common.LogError(err, "Failed to parse statement", common.Fields{"file": path})
			continue
		}
		common.LogInfo("Parsed statement", common.Fields{"file": filepath.Base(path), "transactions": len(txns)})
		batch = append(batch, txns...)
	}
	if len(batch) == 0 {
		return fmt.Errorf("no transactions found in %d files", len(files))
	}

	eng, cleanup, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	progress := cli.NewProgress(cmd.ErrOrStderr(), "Scanning for duplicates", quiet)
	result, err := eng.Import(ctx, batch, progress.Update)
	progress.Finish()
	if err != nil {
		if interrupts.WasInterrupted() {
			return common.NewUserError("Import interrupted; no transactions were saved", err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	summary := fmt.Sprintf("  • Imported: %d\n", result.Imported) +
		fmt.Sprintf("  • Already stored: %d\n", result.Skipped) +
		fmt.Sprintf("  • Flagged duplicates: %d\n", len(result.Duplicates)) +
		fmt.Sprintf("  • Classified by rule: %d\n", result.BySource[model.SourceRule]) +
		fmt.Sprintf("  • Classified by merchant: %d\n", result.BySource[model.SourceMerchant]) +
		fmt.Sprintf("  • Unclassified: %d", result.BySource[model.SourceNone])
	_, _ = fmt.Fprintln(out, cli.RenderBox("Import Complete", summary))

	if verbose && len(result.Duplicates) > 0 {
		_, _ = fmt.Fprintln(out, cli.FormatTitle("Duplicate candidates"))
		return cli.RenderDuplicates(out, result.Duplicates)
	}
	return nil
}

func parseStatement(ctx context.Context, parser *ofx.Parser, path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return parser.ParseFile(ctx, f)
}
