package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/model"
)

const merchantColumns = `id, name, default_category, aliases, is_personal,
	total_matches, correct_matches, incorrect_matches, accuracy, confidence_tier,
	history, version, updated_at`

// CreateMerchant inserts a new merchant profile and sets its ID and version.
func (s *SQLiteStorage) CreateMerchant(ctx context.Context, merchant *model.MerchantProfile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMerchant(merchant); err != nil {
		return err
	}

	aliases, history, err := encodeMerchant(merchant)
	if err != nil {
		return err
	}
	if merchant.Version == 0 {
		merchant.Version = 1
	}
	merchant.UpdatedAt = time.Now().UTC()

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO merchants (
			name, default_category, aliases, is_personal,
			total_matches, correct_matches, incorrect_matches, accuracy, confidence_tier,
			history, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		merchant.Name,
		merchant.DefaultCategory,
		aliases,
		merchant.IsPersonal,
		merchant.TotalMatches,
		merchant.CorrectMatches,
		merchant.IncorrectMatches,
		merchant.AccuracyPercentage,
		merchant.ConfidenceTier,
		history,
		merchant.Version,
		merchant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("merchant %q: %w", merchant.Name, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create merchant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get merchant ID: %w", err)
	}
	merchant.ID = id
	return nil
}

// GetMerchant retrieves a merchant profile by ID.
func (s *SQLiteStorage) GetMerchant(ctx context.Context, id int64) (*model.MerchantProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = ?`, id)
	return getMerchant(row, id)
}

// GetMerchantByName retrieves a merchant profile by canonical name.
func (s *SQLiteStorage) GetMerchantByName(ctx context.Context, name string) (*model.MerchantProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE name = ?`, name)
	return getMerchant(row, name)
}

func getMerchant(row rowScanner, key any) (*model.MerchantProfile, error) {
	merchant, err := scanMerchant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("merchant %v: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	return merchant, nil
}

// GetMerchants retrieves every merchant profile ordered by ID.
func (s *SQLiteStorage) GetMerchants(ctx context.Context) ([]model.MerchantProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `SELECT `+merchantColumns+` FROM merchants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var merchants []model.MerchantProfile
	for rows.Next() {
		merchant, err := scanMerchant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merchant: %w", err)
		}
		merchants = append(merchants, *merchant)
	}
	return merchants, rows.Err()
}

// UpdateMerchant saves a modified merchant profile. The caller must have
// incremented Version exactly once since loading; a stale version fails with
// common.ErrVersionConflict.
func (s *SQLiteStorage) UpdateMerchant(ctx context.Context, merchant *model.MerchantProfile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMerchant(merchant); err != nil {
		return err
	}

	aliases, history, err := encodeMerchant(merchant)
	if err != nil {
		return err
	}
	merchant.UpdatedAt = time.Now().UTC()

	return s.inTx(ctx, func(q queryable) error {
		result, err := q.ExecContext(ctx, `
			UPDATE merchants SET
				name = ?, default_category = ?, aliases = ?, is_personal = ?,
				total_matches = ?, correct_matches = ?, incorrect_matches = ?,
				accuracy = ?, confidence_tier = ?, history = ?,
				version = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`,
			merchant.Name,
			merchant.DefaultCategory,
			aliases,
			merchant.IsPersonal,
			merchant.TotalMatches,
			merchant.CorrectMatches,
			merchant.IncorrectMatches,
			merchant.AccuracyPercentage,
			merchant.ConfidenceTier,
			history,
			merchant.Version,
			merchant.UpdatedAt,
			merchant.ID,
			merchant.Version-1,
		)
		if err != nil {
			return fmt.Errorf("failed to update merchant: %w", err)
		}
		return checkVersioned(ctx, q, result, "merchants", merchant.ID)
	})
}

func encodeMerchant(merchant *model.MerchantProfile) (string, string, error) {
	aliases := merchant.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	aliasJSON, err := json.Marshal(aliases)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode aliases: %w", err)
	}
	history, err := encodeHistory(merchant.History)
	if err != nil {
		return "", "", err
	}
	return string(aliasJSON), history, nil
}

func scanMerchant(row rowScanner) (*model.MerchantProfile, error) {
	var merchant model.MerchantProfile
	var aliases, history string
	var updatedAt sql.NullTime

	err := row.Scan(
		&merchant.ID,
		&merchant.Name,
		&merchant.DefaultCategory,
		&aliases,
		&merchant.IsPersonal,
		&merchant.TotalMatches,
		&merchant.CorrectMatches,
		&merchant.IncorrectMatches,
		&merchant.AccuracyPercentage,
		&merchant.ConfidenceTier,
		&history,
		&merchant.Version,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(aliases), &merchant.Aliases); err != nil {
		return nil, fmt.Errorf("failed to decode aliases for merchant %d: %w", merchant.ID, err)
	}
	if merchant.History, err = decodeHistory(history); err != nil {
		return nil, err
	}
	merchant.UpdatedAt = updatedAt.Time
	return &merchant, nil
}

// checkVersioned turns a zero-row optimistic update into ErrNotFound or
// ErrVersionConflict.
func checkVersioned(ctx context.Context, q queryable, result sql.Result, table string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = ?)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s %d: %w", table, id, err)
	}
	if !exists {
		return fmt.Errorf("%s %d: %w", strings.TrimSuffix(table, "s"), id, common.ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", strings.TrimSuffix(table, "s"), id, common.ErrVersionConflict)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isCorrupt(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrCorrupt || sqliteErr.Code == sqlite3.ErrNotADB)
}
