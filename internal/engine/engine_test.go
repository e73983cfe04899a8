package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/config"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/testutil"
)

func newTestEngine(t *testing.T, policy config.Policy) (*Engine, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	eng, err := New(context.Background(), db.Storage, policy)
	require.NoError(t, err)
	return eng, db
}

func TestImport_FlagsDuplicatesAndClassifies(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())

	db.SeedTransactions(testutil.Txn("old-1", "AMAZON WEB SERVICES", -120.00, testutil.Day(2024, 3, 10)))
	db.SeedRule("coffee", "starbucks", "Meals", 1)
	db.SeedMerchant("ADOBE CREATIVE CLOUD", "Software")
	require.NoError(t, eng.Reload(ctx))

	result, err := eng.Import(ctx, []model.Transaction{
		testutil.Txn("new-1", "AMAZON WEB SERVICES", -120.00, testutil.Day(2024, 3, 10)),
		testutil.Txn("new-2", "STARBUCKS 1234", -5.50, testutil.Day(2024, 3, 11)),
		testutil.Txn("new-3", "ADOBE CREATIVE CLOUD", -54.99, testutil.Day(2024, 3, 12)),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, "new-1", result.Duplicates[0].TransactionID)
	assert.Equal(t, 1, result.BySource[model.SourceRule])
	assert.Equal(t, 1, result.BySource[model.SourceMerchant])
	assert.Equal(t, 1, result.BySource[model.SourceNone])

	dup, err := db.Storage.GetTransactionByID(ctx, "new-1")
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateExact, dup.DuplicateStatus)
	assert.Equal(t, "old-1", dup.DuplicateOf)

	coffee, err := db.Storage.GetTransactionByID(ctx, "new-2")
	require.NoError(t, err)
	assert.Equal(t, "Meals", coffee.Category)
	assert.Equal(t, model.SourceRule, coffee.Source)
	assert.Equal(t, 90, coffee.Confidence)
	require.NotNil(t, coffee.RuleID)

	adobe, err := db.Storage.GetTransactionByID(ctx, "new-3")
	require.NoError(t, err)
	assert.Equal(t, "Software", adobe.Category)
	assert.Equal(t, model.SourceMerchant, adobe.Source)
	require.NotNil(t, adobe.MerchantID)
}

func TestImport_SkipsStoredIDs(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, config.DefaultPolicy())

	batch := []model.Transaction{
		testutil.Txn("a", "HOME DEPOT", -42.10, testutil.Day(2024, 5, 1)),
		testutil.Txn("b", "SHELL OIL", -38.00, testutil.Day(2024, 5, 2)),
	}

	first, err := eng.Import(ctx, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Imported)

	var calls int
	second, err := eng.Import(ctx, batch, func(_, _ int) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 2, second.Skipped)
	assert.Zero(t, calls)
}

func TestImport_Empty(t *testing.T) {
	eng, _ := newTestEngine(t, config.DefaultPolicy())
	_, err := eng.Import(context.Background(), nil, nil)
	assert.ErrorIs(t, err, common.ErrNoTransactions)
}

func TestImport_ReportsProgress(t *testing.T) {
	eng, _ := newTestEngine(t, config.DefaultPolicy())

	var last, total int
	_, err := eng.Import(context.Background(), []model.Transaction{
		testutil.Txn("p1", "COSTCO", -80, testutil.Day(2024, 1, 1)),
		testutil.Txn("p2", "TARGET", -20, testutil.Day(2024, 1, 15)),
	}, func(done, n int) { last, total = done, n })
	require.NoError(t, err)
	assert.Equal(t, 2, last)
	assert.Equal(t, 2, total)
}

func TestImport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eng, db := newTestEngine(t, config.DefaultPolicy())
	cancel()

	_, err := eng.Import(ctx, []model.Transaction{
		testutil.Txn("c1", "COSTCO", -80, testutil.Day(2024, 1, 1)),
	}, nil)
	require.Error(t, err)

	_, err = db.Storage.GetTransactionByID(context.Background(), "c1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMarkDuplicate(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())
	db.SeedTransactions(
		testutil.Txn("x", "DELTA AIR", -300, testutil.Day(2024, 2, 1)),
		testutil.Txn("y", "DELTA AIR LINES", -300, testutil.Day(2024, 2, 2)),
	)

	require.NoError(t, eng.MarkDuplicate(ctx, "y", model.DuplicateFuzzy, "x"))

	txn, err := db.Storage.GetTransactionByID(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateFuzzy, txn.DuplicateStatus)
	assert.Equal(t, "x", txn.DuplicateOf)
	assert.True(t, txn.DuplicateLocked)

	dups, err := eng.Duplicates(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, "y", dups[0].ID)

	require.NoError(t, eng.MarkDuplicate(ctx, "y", model.DuplicateNone, "x"))
	txn, err = db.Storage.GetTransactionByID(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateNone, txn.DuplicateStatus)
	assert.Empty(t, txn.DuplicateOf)
	assert.True(t, txn.DuplicateLocked)
}

func TestMarkDuplicate_Invalid(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())
	db.SeedTransactions(testutil.Txn("x", "DELTA AIR", -300, testutil.Day(2024, 2, 1)))

	assert.Error(t, eng.MarkDuplicate(ctx, "x", model.DuplicateStatus("maybe"), ""))
	assert.Error(t, eng.MarkDuplicate(ctx, "x", model.DuplicateExact, ""))
	assert.Error(t, eng.MarkDuplicate(ctx, "x", model.DuplicateExact, "x"))
	assert.ErrorIs(t, eng.MarkDuplicate(ctx, "x", model.DuplicateExact, "missing"), common.ErrNotFound)
}
