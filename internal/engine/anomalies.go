package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-books/internal/anomaly"
	"github.com/Veraticus/spice-books/internal/model"
)

// Anomalies runs every anomaly check over the ledger between from and to,
// both inclusive. On cancellation the findings of the checks that completed are
// returned with the context error.
func (e *Engine) Anomalies(ctx context.Context, from, to time.Time, progress ProgressFunc) ([]model.AnomalyFinding, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("period ends %s before it starts %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	ledger, err := e.storage.GetTransactionsByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	period := anomaly.Period{From: from, To: to}
	findings, err := e.anomalies.Detect(ctx, ledger, period, anomaly.ProgressFunc(progress))
	if err != nil {
		slog.Warn("Anomaly scan stopped early", "findings", len(findings), "error", err)
		return findings, err
	}

	slog.Info("Anomaly scan complete",
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"transactions", len(ledger),
		"findings", len(findings))

	return findings, nil
}
