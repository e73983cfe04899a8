package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/service"
)

const transactionColumns = `id, hash, date, description, merchant_key, amount, account_id,
	category, source, confidence, is_personal, reviewed,
	duplicate_status, duplicate_of, duplicate_locked,
	rule_id, merchant_id, pattern_id, version, created_at, updated_at`

// SaveTransactions inserts new transactions. Records whose ID already exists
// are left untouched so re-importing a statement is harmless.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	return s.inTx(ctx, func(q queryable) error {
		return saveTransactions(ctx, q, transactions)
	})
}

func saveTransactions(ctx context.Context, q queryable, transactions []model.Transaction) error {
	now := time.Now().UTC()
	for _, txn := range transactions {
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
		if txn.DuplicateStatus == "" {
			txn.DuplicateStatus = model.DuplicateNone
		}
		if txn.Source == "" {
			txn.Source = model.SourceNone
		}

		_, err := q.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, hash, date, description, merchant_key, amount, account_id,
				category, source, confidence, is_personal, reviewed,
				duplicate_status, duplicate_of, duplicate_locked,
				rule_id, merchant_id, pattern_id, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`,
			txn.ID,
			txn.Hash,
			txn.Date.UTC(),
			txn.Description,
			txn.MerchantKey,
			txn.Amount,
			txn.AccountID,
			txn.Category,
			string(txn.Source),
			txn.Confidence,
			txn.IsPersonal,
			txn.Reviewed,
			string(txn.DuplicateStatus),
			txn.DuplicateOf,
			txn.DuplicateLocked,
			txn.RuleID,
			txn.MerchantID,
			txn.PatternID,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}
	return nil
}

// GetTransactionByID retrieves a single transaction by ID.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactions retrieves transactions matching the filter, oldest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.EndDate, *filter.StartDate)
	}

	var where []string
	var args []any
	if filter.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, startOfDay(*filter.StartDate))
	}
	if filter.EndDate != nil {
		where = append(where, "date < ?")
		args = append(args, startOfDay(*filter.EndDate).AddDate(0, 0, 1))
	}
	if filter.MerchantKey != "" {
		where = append(where, "merchant_key = ?")
		args = append(args, filter.MerchantKey)
	}
	if filter.Duplicates {
		where = append(where, "duplicate_status != 'none'")
	}
	if filter.ReviewedOnly {
		where = append(where, "reviewed = 1")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	return queryTransactions(ctx, s.q, query, args...)
}

// GetTransactionsByDateRange retrieves transactions dated on or between the
// start and end days.
func (s *SQLiteStorage) GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]model.Transaction, error) {
	return s.GetTransactions(ctx, service.TransactionFilter{StartDate: &start, EndDate: &end})
}

// GetTransactionsByMerchantKey retrieves every transaction for a merchant key.
func (s *SQLiteStorage) GetTransactionsByMerchantKey(ctx context.Context, merchantKey string) ([]model.Transaction, error) {
	if err := validateString(merchantKey, "merchantKey"); err != nil {
		return nil, err
	}
	return s.GetTransactions(ctx, service.TransactionFilter{MerchantKey: merchantKey})
}

// UpdateTransactionReview applies a user review to a transaction.
func (s *SQLiteStorage) UpdateTransactionReview(ctx context.Context, id string, update service.ReviewUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(update.Category, "category"); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET
			category = ?, source = ?, confidence = ?, is_personal = ?, reviewed = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?
	`, update.Category, string(update.Source), update.Confidence, update.IsPersonal, update.Reviewed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update transaction review: %w", err)
	}
	return requireRow(result, "transaction", id)
}

// UpdateDuplicateStatus records the duplicate status of a transaction.
// locked marks a user override that later scans must not replace.
func (s *SQLiteStorage) UpdateDuplicateStatus(ctx context.Context, id string, status model.DuplicateStatus, duplicateOf string, locked bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: duplicate status %q", ErrInvalidTransaction, status)
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET
			duplicate_status = ?, duplicate_of = ?, duplicate_locked = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?
	`, string(status), duplicateOf, locked, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update duplicate status: %w", err)
	}
	return requireRow(result, "transaction", id)
}

// SetTransactionPattern links transactions to a recurring pattern.
func (s *SQLiteStorage) SetTransactionPattern(ctx context.Context, ids []string, patternID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	return s.inTx(ctx, func(q queryable) error {
		for _, id := range ids {
			if _, err := q.ExecContext(ctx,
				`UPDATE transactions SET pattern_id = ?, updated_at = ? WHERE id = ?`,
				patternID, time.Now().UTC(), id); err != nil {
				return fmt.Errorf("failed to link transaction %s to pattern %d: %w", id, patternID, err)
			}
		}
		return nil
	})
}

// DeleteTransaction removes a transaction. Its correction log entries are kept.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return requireRow(result, "transaction", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var source, status string
	var ruleID, merchantID, patternID sql.NullInt64
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&txn.ID,
		&txn.Hash,
		&txn.Date,
		&txn.Description,
		&txn.MerchantKey,
		&txn.Amount,
		&txn.AccountID,
		&txn.Category,
		&source,
		&txn.Confidence,
		&txn.IsPersonal,
		&txn.Reviewed,
		&status,
		&txn.DuplicateOf,
		&txn.DuplicateLocked,
		&ruleID,
		&merchantID,
		&patternID,
		&txn.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Source = model.ClassificationSource(source)
	txn.DuplicateStatus = model.DuplicateStatus(status)
	txn.RuleID = nullableID(ruleID)
	txn.MerchantID = nullableID(merchantID)
	txn.PatternID = nullableID(patternID)
	txn.CreatedAt = createdAt.Time
	txn.UpdatedAt = updatedAt.Time
	return &txn, nil
}

func queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

func nullableID(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	id := n.Int64
	return &id
}

func requireRow(result sql.Result, kind string, id any) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", kind, id, common.ErrNotFound)
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
