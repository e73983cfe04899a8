package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/spice-books/internal/model"
)

// AppendCorrection adds an event to the append-only correction log and sets
// its ID.
func (s *SQLiteStorage) AppendCorrection(ctx context.Context, event *model.CorrectionEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(event); err != nil {
		return err
	}
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now()
	}

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO corrections (
			subject, subject_id, transaction_id, was_correct, old_category, new_category, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(event.Subject),
		event.SubjectID,
		event.TransactionID,
		event.WasCorrect,
		event.OldCategory,
		event.NewCategory,
		event.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append correction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get correction ID: %w", err)
	}
	event.ID = id
	return nil
}

// GetCorrections lists logged corrections oldest first. An empty
// transactionID returns the whole log.
func (s *SQLiteStorage) GetCorrections(ctx context.Context, transactionID string) ([]model.CorrectionEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT id, subject, subject_id, transaction_id, was_correct, old_category, new_category, recorded_at
		FROM corrections`
	var args []any
	if transactionID != "" {
		query += ` WHERE transaction_id = ?`
		args = append(args, transactionID)
	}
	query += ` ORDER BY id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.CorrectionEvent
	for rows.Next() {
		var ev model.CorrectionEvent
		var subject string
		if err := rows.Scan(
			&ev.ID,
			&subject,
			&ev.SubjectID,
			&ev.TransactionID,
			&ev.WasCorrect,
			&ev.OldCategory,
			&ev.NewCategory,
			&ev.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		ev.Subject = model.CorrectionSubject(subject)
		events = append(events, ev)
	}
	return events, rows.Err()
}
