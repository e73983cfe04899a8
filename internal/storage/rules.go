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

const ruleColumns = `id, name, match_type, pattern, category, is_personal, priority,
	enabled, auto_disabled, pinned, times_applied, times_confirmed, times_corrected,
	effectiveness, history, version, created_at, updated_at`

// CreateRule inserts a new rule and sets its ID and version.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	history, err := encodeHistory(rule.History)
	if err != nil {
		return err
	}
	if rule.Version == 0 {
		rule.Version = 1
	}
	now := time.Now().UTC()
	rule.CreatedAt, rule.UpdatedAt = now, now

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO rules (
			name, match_type, pattern, category, is_personal, priority,
			enabled, auto_disabled, pinned, times_applied, times_confirmed, times_corrected,
			effectiveness, history, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rule.Name,
		string(rule.MatchType),
		rule.Pattern,
		rule.Category,
		rule.IsPersonal,
		rule.Priority,
		rule.Enabled,
		rule.AutoDisabled,
		rule.Pinned,
		rule.TimesApplied,
		rule.TimesConfirmed,
		rule.TimesCorrected,
		rule.Effectiveness,
		history,
		rule.Version,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}
	rule.ID = id
	return nil
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rule, err := scanRule(s.q.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// GetRules retrieves every rule in evaluation order.
func (s *SQLiteStorage) GetRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY priority, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// UpdateRule saves a modified rule with the same version contract as
// UpdateMerchant.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	history, err := encodeHistory(rule.History)
	if err != nil {
		return err
	}
	rule.UpdatedAt = time.Now().UTC()

	return s.inTx(ctx, func(q queryable) error {
		result, err := q.ExecContext(ctx, `
			UPDATE rules SET
				name = ?, match_type = ?, pattern = ?, category = ?, is_personal = ?, priority = ?,
				enabled = ?, auto_disabled = ?, pinned = ?,
				times_applied = ?, times_confirmed = ?, times_corrected = ?,
				effectiveness = ?, history = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`,
			rule.Name,
			string(rule.MatchType),
			rule.Pattern,
			rule.Category,
			rule.IsPersonal,
			rule.Priority,
			rule.Enabled,
			rule.AutoDisabled,
			rule.Pinned,
			rule.TimesApplied,
			rule.TimesConfirmed,
			rule.TimesCorrected,
			rule.Effectiveness,
			history,
			rule.Version,
			rule.UpdatedAt,
			rule.ID,
			rule.Version-1,
		)
		if err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}
		return checkVersioned(ctx, q, result, "rules", rule.ID)
	})
}

func scanRule(row rowScanner) (*model.Rule, error) {
	var rule model.Rule
	var matchType, history string
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&matchType,
		&rule.Pattern,
		&rule.Category,
		&rule.IsPersonal,
		&rule.Priority,
		&rule.Enabled,
		&rule.AutoDisabled,
		&rule.Pinned,
		&rule.TimesApplied,
		&rule.TimesConfirmed,
		&rule.TimesCorrected,
		&rule.Effectiveness,
		&history,
		&rule.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.MatchType = model.RuleMatchType(matchType)
	if rule.History, err = decodeHistory(history); err != nil {
		return nil, err
	}
	rule.CreatedAt = createdAt.Time
	rule.UpdatedAt = updatedAt.Time
	return &rule, nil
}
