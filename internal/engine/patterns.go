package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/recurring"
	"github.com/Veraticus/spice-books/internal/service"
)

// PatternReport is the outcome of one detection run.
type PatternReport struct {
	Patterns    []model.Pattern
	Rejections  []recurring.Rejection
	Deactivated []string // Merchant keys whose stored pattern no longer holds
	Partial     bool     // Scan was cancelled; nothing was stored
}

// DetectPatterns scans reviewed transactions in the lookback window ending at
// asOf, stores every recurring pattern found and links its transactions.
// Stored patterns whose merchant turned irregular or unstable are deactivated.
// Patterns the user disabled stay disabled. A cancelled scan returns the
// patterns found so far with the context error and stores none of them.
func (e *Engine) DetectPatterns(ctx context.Context, asOf time.Time) (*PatternReport, error) {
	from, to := e.recurring.Window(asOf)
	txns, err := e.storage.GetTransactions(ctx, service.TransactionFilter{
		StartDate:    &from,
		EndDate:      &to,
		ReviewedOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load reviewed transactions: %w", err)
	}

	detection, err := e.recurring.Detect(ctx, txns, asOf)
	if err != nil {
		if detection == nil {
			return nil, err
		}
		return &PatternReport{
			Patterns:   detection.Patterns,
			Rejections: detection.Rejections,
			Partial:    true,
		}, fmt.Errorf("pattern detection interrupted: %w", err)
	}

	report := &PatternReport{Rejections: detection.Rejections}
	err = e.inTx(ctx, func(tx service.Transaction) error {
		report.Patterns = report.Patterns[:0]
		report.Deactivated = report.Deactivated[:0]

		for _, pattern := range detection.Patterns {
			if err := tx.UpsertPattern(ctx, &pattern); err != nil {
				return err
			}
			if err := tx.SetTransactionPattern(ctx, detection.Members[pattern.MerchantKey], pattern.ID); err != nil {
				return err
			}
			report.Patterns = append(report.Patterns, pattern)
		}

		for _, rejection := range detection.Rejections {
			if rejection.Reason == recurring.RejectTooFew {
				continue
			}
			stored, err := tx.GetPatternByMerchantKey(ctx, rejection.MerchantKey)
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !stored.Active {
				continue
			}
			if err := tx.SetPatternActive(ctx, stored.ID, false, stored.DisabledByUser); err != nil {
				return err
			}
			report.Deactivated = append(report.Deactivated, rejection.MerchantKey)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Pattern detection complete",
		"as_of", asOf.Format("2006-01-02"),
		"transactions", len(txns),
		"patterns", len(report.Patterns),
		"rejected", len(report.Rejections),
		"deactivated", len(report.Deactivated))

	return report, nil
}

// Patterns lists stored patterns.
func (e *Engine) Patterns(ctx context.Context, activeOnly bool) ([]model.Pattern, error) {
	return e.storage.GetPatterns(ctx, activeOnly)
}

// MissingPatterns reports active patterns whose expected occurrence is overdue
// at asOf.
func (e *Engine) MissingPatterns(ctx context.Context, asOf time.Time) ([]recurring.MissingOccurrence, error) {
	patterns, err := e.storage.GetPatterns(ctx, true)
	if err != nil {
		return nil, err
	}
	return e.recurring.Missing(patterns, asOf), nil
}

// DisablePattern switches a pattern off permanently; detection runs will not
// reactivate it.
func (e *Engine) DisablePattern(ctx context.Context, id int64) error {
	if err := e.storage.SetPatternActive(ctx, id, false, true); err != nil {
		return err
	}
	slog.Info("Pattern disabled", "pattern_id", id)
	return nil
}
