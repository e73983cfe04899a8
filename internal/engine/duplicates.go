package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/service"
)

// Duplicates lists flagged transactions, optionally limited to a date range.
func (e *Engine) Duplicates(ctx context.Context, from, to *time.Time) ([]model.Transaction, error) {
	return e.storage.GetTransactions(ctx, service.TransactionFilter{
		StartDate:  from,
		EndDate:    to,
		Duplicates: true,
	})
}

// MarkDuplicate overrides the derived duplicate status of a transaction. The
// override is locked so later scans keep it. Marking a transaction as a
// duplicate requires the original it duplicates.
func (e *Engine) MarkDuplicate(ctx context.Context, id string, status model.DuplicateStatus, duplicateOf string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid duplicate status %q", status)
	}
	if status == model.DuplicateNone {
		duplicateOf = ""
	} else if duplicateOf == "" || duplicateOf == id {
		return fmt.Errorf("a duplicate must reference another transaction")
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	err := e.inTx(ctx, func(tx service.Transaction) error {
		if duplicateOf != "" {
			if _, err := tx.GetTransactionByID(ctx, duplicateOf); err != nil {
				return err
			}
		}
		return tx.UpdateDuplicateStatus(ctx, id, status, duplicateOf, true)
	})
	if err != nil {
		return err
	}

	slog.Info("Duplicate status overridden", "transaction_id", id, "status", status, "duplicate_of", duplicateOf)
	return nil
}
