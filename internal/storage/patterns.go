package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/model"
)

const patternColumns = `id, merchant_key, category, period_type, expected_amount,
	amount_variance, confidence, occurrence_count, last_occurrence, next_expected,
	active, disabled_by_user, updated_at`

// UpsertPattern inserts or refreshes the pattern for a merchant key and sets
// its ID. A pattern the user disabled stays disabled.
func (s *SQLiteStorage) UpsertPattern(ctx context.Context, pattern *model.Pattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}
	pattern.UpdatedAt = time.Now().UTC()

	return s.inTx(ctx, func(q queryable) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO patterns (
				merchant_key, category, period_type, expected_amount, amount_variance,
				confidence, occurrence_count, last_occurrence, next_expected,
				active, disabled_by_user, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(merchant_key) DO UPDATE SET
				category = excluded.category,
				period_type = excluded.period_type,
				expected_amount = excluded.expected_amount,
				amount_variance = excluded.amount_variance,
				confidence = excluded.confidence,
				occurrence_count = excluded.occurrence_count,
				last_occurrence = excluded.last_occurrence,
				next_expected = excluded.next_expected,
				active = CASE WHEN patterns.disabled_by_user THEN 0 ELSE excluded.active END,
				updated_at = excluded.updated_at
		`,
			pattern.MerchantKey,
			pattern.Category,
			string(pattern.PeriodType),
			pattern.ExpectedAmount,
			pattern.AmountVariance,
			pattern.Confidence,
			pattern.OccurrenceCount,
			pattern.LastOccurrence.UTC(),
			pattern.NextExpected.UTC(),
			pattern.Active,
			pattern.DisabledByUser,
			pattern.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save pattern: %w", err)
		}

		var active, disabled bool
		err = q.QueryRowContext(ctx,
			`SELECT id, active, disabled_by_user FROM patterns WHERE merchant_key = ?`,
			pattern.MerchantKey).Scan(&pattern.ID, &active, &disabled)
		if err != nil {
			return fmt.Errorf("failed to read back pattern: %w", err)
		}
		pattern.Active, pattern.DisabledByUser = active, disabled
		return nil
	})
}

// GetPattern retrieves a pattern by ID.
func (s *SQLiteStorage) GetPattern(ctx context.Context, id int64) (*model.Pattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM patterns WHERE id = ?`, id)
	return getPattern(row, id)
}

// GetPatternByMerchantKey retrieves the pattern for a merchant key.
func (s *SQLiteStorage) GetPatternByMerchantKey(ctx context.Context, merchantKey string) (*model.Pattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(merchantKey, "merchantKey"); err != nil {
		return nil, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM patterns WHERE merchant_key = ?`, merchantKey)
	return getPattern(row, merchantKey)
}

func getPattern(row rowScanner, key any) (*model.Pattern, error) {
	pattern, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pattern %v: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern: %w", err)
	}
	return pattern, nil
}

// GetPatterns retrieves patterns ordered by merchant key.
func (s *SQLiteStorage) GetPatterns(ctx context.Context, activeOnly bool) ([]model.Pattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + patternColumns + ` FROM patterns`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY merchant_key`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.Pattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, *pattern)
	}
	return patterns, rows.Err()
}

// SetPatternActive switches a pattern on or off. disabledByUser records that
// the user made the decision.
func (s *SQLiteStorage) SetPatternActive(ctx context.Context, id int64, active, disabledByUser bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx,
		`UPDATE patterns SET active = ?, disabled_by_user = ?, updated_at = ? WHERE id = ?`,
		active, disabledByUser, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update pattern: %w", err)
	}
	return requireRow(result, "pattern", id)
}

func scanPattern(row rowScanner) (*model.Pattern, error) {
	var pattern model.Pattern
	var period string
	var updatedAt sql.NullTime

	err := row.Scan(
		&pattern.ID,
		&pattern.MerchantKey,
		&pattern.Category,
		&period,
		&pattern.ExpectedAmount,
		&pattern.AmountVariance,
		&pattern.Confidence,
		&pattern.OccurrenceCount,
		&pattern.LastOccurrence,
		&pattern.NextExpected,
		&pattern.Active,
		&pattern.DisabledByUser,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	pattern.PeriodType = model.PeriodType(period)
	pattern.UpdatedAt = updatedAt.Time
	return &pattern, nil
}
