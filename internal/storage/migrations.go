package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-books/internal/common"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					hash TEXT NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					merchant_key TEXT NOT NULL DEFAULT '',
					amount REAL NOT NULL,
					account_id TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL DEFAULT 'none',
					confidence INTEGER NOT NULL DEFAULT 0,
					is_personal INTEGER NOT NULL DEFAULT 0,
					reviewed INTEGER NOT NULL DEFAULT 0,
					duplicate_status TEXT NOT NULL DEFAULT 'none',
					duplicate_of TEXT NOT NULL DEFAULT '',
					duplicate_locked INTEGER NOT NULL DEFAULT 0,
					rule_id INTEGER,
					merchant_id INTEGER,
					version INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_merchant_key ON transactions(merchant_key)`,
				`CREATE INDEX idx_transactions_hash ON transactions(hash)`,

				`CREATE TABLE IF NOT EXISTS merchants (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					default_category TEXT NOT NULL,
					aliases TEXT NOT NULL DEFAULT '[]',
					is_personal INTEGER NOT NULL DEFAULT 0,
					total_matches INTEGER NOT NULL DEFAULT 0,
					correct_matches INTEGER NOT NULL DEFAULT 0,
					incorrect_matches INTEGER NOT NULL DEFAULT 0,
					accuracy REAL NOT NULL DEFAULT 100,
					confidence_tier INTEGER NOT NULL DEFAULT 0,
					history TEXT NOT NULL DEFAULT '[]',
					version INTEGER NOT NULL DEFAULT 1,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					match_type TEXT NOT NULL,
					pattern TEXT NOT NULL,
					category TEXT NOT NULL,
					is_personal INTEGER NOT NULL DEFAULT 0,
					priority INTEGER NOT NULL DEFAULT 100,
					enabled INTEGER NOT NULL DEFAULT 1,
					auto_disabled INTEGER NOT NULL DEFAULT 0,
					pinned INTEGER NOT NULL DEFAULT 0,
					times_applied INTEGER NOT NULL DEFAULT 0,
					times_confirmed INTEGER NOT NULL DEFAULT 0,
					times_corrected INTEGER NOT NULL DEFAULT 0,
					effectiveness REAL NOT NULL DEFAULT 100,
					history TEXT NOT NULL DEFAULT '[]',
					version INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rules_priority ON rules(priority, id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add recurring patterns",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS patterns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					merchant_key TEXT UNIQUE NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					period_type TEXT NOT NULL,
					expected_amount REAL NOT NULL,
					amount_variance REAL NOT NULL DEFAULT 0,
					confidence REAL NOT NULL DEFAULT 0,
					occurrence_count INTEGER NOT NULL DEFAULT 0,
					last_occurrence DATETIME NOT NULL,
					next_expected DATETIME NOT NULL,
					active INTEGER NOT NULL DEFAULT 1,
					disabled_by_user INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`ALTER TABLE transactions ADD COLUMN pattern_id INTEGER REFERENCES patterns(id) ON DELETE SET NULL`,
				`CREATE INDEX idx_transactions_pattern ON transactions(pattern_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add correction log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS corrections (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					subject TEXT NOT NULL CHECK (subject IN ('merchant', 'rule')),
					subject_id INTEGER NOT NULL,
					transaction_id TEXT NOT NULL,
					was_correct INTEGER NOT NULL,
					old_category TEXT NOT NULL DEFAULT '',
					new_category TEXT NOT NULL DEFAULT '',
					recorded_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_corrections_transaction ON corrections(transaction_id)`,
				`CREATE INDEX idx_corrections_subject ON corrections(subject, subject_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		if isCorrupt(err) {
			return fmt.Errorf("%w: %s: %v", common.ErrDatabaseCorrupted, s.dbPath, err)
		}
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
