package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/match"
	"github.com/Veraticus/spice-books/internal/model"
)

// ImportResult summarizes one import batch.
type ImportResult struct {
	BySource   map[model.ClassificationSource]int
	Duplicates []match.Result // Only transactions with at least one candidate
	Imported   int
	Skipped    int // Already stored under the same ID
}

// Import scores a batch against stored transactions near its dates, classifies
// it and saves it. Suspected duplicates are flagged, never dropped.
func (e *Engine) Import(ctx context.Context, incoming []model.Transaction, progress ProgressFunc) (*ImportResult, error) {
	if len(incoming) == 0 {
		return nil, common.ErrNoTransactions
	}

	batch := make([]model.Transaction, len(incoming))
	for i, txn := range incoming {
		batch[i] = normalize(txn)
	}

	start, end := batch[0].Date, batch[0].Date
	for _, txn := range batch[1:] {
		if txn.Date.Before(start) {
			start = txn.Date
		}
		if txn.Date.After(end) {
			end = txn.Date
		}
	}
	window := e.policy.Match.WindowDays
	existing, err := e.storage.GetTransactionsByDateRange(ctx, start.AddDate(0, 0, -window), end.AddDate(0, 0, window))
	if err != nil {
		return nil, fmt.Errorf("failed to load existing transactions: %w", err)
	}

	stored := make(map[string]bool, len(existing))
	for _, txn := range existing {
		stored[txn.ID] = true
	}

	result := &ImportResult{BySource: make(map[model.ClassificationSource]int)}
	fresh := make([]model.Transaction, 0, len(batch))
	for _, txn := range batch {
		if stored[txn.ID] {
			result.Skipped++
			continue
		}
		stored[txn.ID] = true
		fresh = append(fresh, txn)
	}
	if len(fresh) == 0 {
		slog.Info("Nothing new to import", "skipped", result.Skipped)
		return result, nil
	}

	ids := make([]string, len(fresh))
	for i, txn := range fresh {
		ids[i] = txn.ID
	}
	unlock := e.locks.LockAll(ids)
	defer unlock()

	slog.Info("Scanning for duplicates",
		"incoming", len(fresh),
		"existing", len(existing),
		"window_days", window)

	matches, err := e.matcher.FindDuplicates(ctx, fresh, match.NewIndex(existing), match.ProgressFunc(progress))
	if err != nil {
		return nil, fmt.Errorf("duplicate scan interrupted: %w", err)
	}

	classified, err := e.classifier.ClassifyBatch(ctx, fresh)
	if err != nil {
		return nil, err
	}

	for i := range fresh {
		txn := &fresh[i]

		res := matches[i]
		txn.DuplicateStatus = res.Status()
		if best := res.Best(); best != nil {
			txn.DuplicateOf = best.ExistingID
			result.Duplicates = append(result.Duplicates, res)
		}

		cls := classified[txn.ID]
		txn.Category = cls.Category
		txn.Source = cls.Source
		txn.Confidence = cls.Confidence
		txn.RuleID = cls.RuleID
		txn.MerchantID = cls.MerchantID
		txn.IsPersonal = cls.IsPersonal
		result.BySource[cls.Source]++
	}

	if err := e.storage.SaveTransactions(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to save transactions: %w", err)
	}
	result.Imported = len(fresh)

	slog.Info("Import complete",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"flagged_duplicates", len(result.Duplicates),
		"by_rule", result.BySource[model.SourceRule],
		"by_merchant", result.BySource[model.SourceMerchant],
		"unclassified", result.BySource[model.SourceNone])

	return result, nil
}

func normalize(txn model.Transaction) model.Transaction {
	txn.Date = txn.Date.UTC()
	txn.Description = strings.TrimSpace(txn.Description)
	if txn.MerchantKey == "" {
		txn.MerchantKey = match.MerchantKey(txn.Description)
	}
	if txn.Hash == "" {
		txn.Hash = txn.GenerateHash()
	}
	txn.Reviewed = false
	txn.DuplicateLocked = false
	return txn
}
