// Package testutil provides fixtures for tests that need a migrated database
// and realistic ledger data.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/spice-books/internal/match"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/service"
	"github.com/Veraticus/spice-books/internal/storage"
)

// TestDB is a migrated in-memory database with seeding helpers.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database. Migrations run and the
// database is closed when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.SeedTransactions(testutil.Txn("t1", "NETFLIX.COM", -15.99, testutil.Day(2024, 1, 5)))
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedTransactions saves transactions or fails the test.
func (db *TestDB) SeedTransactions(txns ...model.Transaction) {
	db.t.Helper()
	if err := db.Storage.SaveTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
}

// SeedMerchant creates a merchant profile or fails the test.
func (db *TestDB) SeedMerchant(name, category string, aliases ...string) *model.MerchantProfile {
	db.t.Helper()
	p := &model.MerchantProfile{
		Name:               match.MerchantKey(name),
		DefaultCategory:    category,
		Aliases:            aliases,
		ConfidenceTier:     30,
		AccuracyPercentage: 100,
		History:            model.CorrectionHistory{},
	}
	if err := db.Storage.CreateMerchant(context.Background(), p); err != nil {
		db.t.Fatalf("failed to seed merchant %q: %v", name, err)
	}
	return p
}

// SeedRule creates an enabled contains-rule or fails the test.
func (db *TestDB) SeedRule(name, pattern, category string, priority int) *model.Rule {
	db.t.Helper()
	r := &model.Rule{
		Name:      name,
		MatchType: model.MatchContains,
		Pattern:   pattern,
		Category:  category,
		Priority:  priority,
		Enabled:   true,
		History:   model.CorrectionHistory{},
	}
	if err := db.Storage.CreateRule(context.Background(), r); err != nil {
		db.t.Fatalf("failed to seed rule %q: %v", name, err)
	}
	return r
}

// WithTransaction executes fn within a database transaction that is always
// rolled back afterwards.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	tx, err := db.Storage.BeginTx(context.Background())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Txn builds an unreviewed, unclassified transaction.
func Txn(id, description string, amount float64, date time.Time) model.Transaction {
	txn := model.Transaction{
		ID:              id,
		AccountID:       "checking",
		Date:            date,
		Description:     description,
		MerchantKey:     match.MerchantKey(description),
		Amount:          amount,
		DuplicateStatus: model.DuplicateNone,
		Source:          model.SourceNone,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

// Reviewed marks a transaction as reviewed into category.
func Reviewed(txn model.Transaction, category string) model.Transaction {
	txn.Category = category
	txn.Source = model.SourceUser
	txn.Confidence = 100
	txn.Reviewed = true
	return txn
}

// Monthly builds n reviewed transactions for one merchant, one per month
// starting at first.
func Monthly(prefix, description, category string, amount float64, first time.Time, n int) []model.Transaction {
	out := make([]model.Transaction, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%02d", prefix, i)
		out = append(out, Reviewed(Txn(id, description, amount, first.AddDate(0, i, 0)), category))
	}
	return out
}
