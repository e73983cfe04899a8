package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/service"
)

func sampleTransactions() []model.Transaction {
	ruleID := int64(4)
	return []model.Transaction{
		{
			ID: "t1", AccountID: "checking", Date: day(2024, 1, 10), Description: "AMAZON 001234",
			MerchantKey: "amazon", Amount: -45, Category: "Office Supplies", Source: model.SourceRule,
			RuleID: &ruleID, Confidence: 90,
		},
		{
			ID: "t2", AccountID: "checking", Date: day(2024, 1, 11), Description: "AMAZON 001234 TEMP",
			MerchantKey: "amazon", Amount: -45, DuplicateStatus: model.DuplicateFuzzy, DuplicateOf: "t1",
		},
		{
			ID: "t3", AccountID: "checking", Date: day(2024, 2, 1), Description: "CLIENT PAYMENT",
			MerchantKey: "client payment", Amount: 1200, Reviewed: true, Category: "Income",
		},
	}
}

func TestSaveAndGetTransaction(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTransactions(ctx, sampleTransactions()))

	got, err := store.GetTransactionByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "AMAZON 001234", got.Description)
	assert.Equal(t, "amazon", got.MerchantKey)
	assert.Equal(t, -45.0, got.Amount)
	assert.True(t, got.Date.Equal(day(2024, 1, 10)))
	assert.Equal(t, model.SourceRule, got.Source)
	require.NotNil(t, got.RuleID)
	assert.Equal(t, int64(4), *got.RuleID)
	assert.Nil(t, got.MerchantID)
	assert.Nil(t, got.PatternID)
	assert.Equal(t, model.DuplicateNone, got.DuplicateStatus)
	assert.Equal(t, 1, got.Version)
	assert.NotEmpty(t, got.Hash)

	dup, err := store.GetTransactionByID(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateFuzzy, dup.DuplicateStatus)
	assert.Equal(t, "t1", dup.DuplicateOf)

	_, err = store.GetTransactionByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveTransactions_ReimportIsIgnored(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	txns := sampleTransactions()
	require.NoError(t, store.SaveTransactions(ctx, txns))

	txns[0].Description = "CHANGED"
	require.NoError(t, store.SaveTransactions(ctx, txns))

	got, err := store.GetTransactionByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "AMAZON 001234", got.Description)
}

func TestGetTransactions_Filters(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTransactions(ctx, sampleTransactions()))

	inJanuary, err := store.GetTransactionsByDateRange(ctx, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, inJanuary, 2)
	assert.Equal(t, "t1", inJanuary[0].ID)

	endInclusive, err := store.GetTransactionsByDateRange(ctx, day(2024, 1, 11), day(2024, 2, 1))
	require.NoError(t, err)
	assert.Len(t, endInclusive, 2)

	_, err = store.GetTransactionsByDateRange(ctx, day(2024, 2, 1), day(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	amazon, err := store.GetTransactionsByMerchantKey(ctx, "amazon")
	require.NoError(t, err)
	assert.Len(t, amazon, 2)

	dups, err := store.GetTransactions(ctx, service.TransactionFilter{Duplicates: true})
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, "t2", dups[0].ID)

	reviewed, err := store.GetTransactions(ctx, service.TransactionFilter{ReviewedOnly: true})
	require.NoError(t, err)
	require.Len(t, reviewed, 1)
	assert.Equal(t, "t3", reviewed[0].ID)

	page, err := store.GetTransactions(ctx, service.TransactionFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "t2", page[0].ID)
}

func TestUpdateTransactionReview(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTransactions(ctx, sampleTransactions()))

	err := store.UpdateTransactionReview(ctx, "t2", service.ReviewUpdate{
		Category: "Travel", Source: model.SourceUser, Confidence: 100, IsPersonal: true, Reviewed: true,
	})
	require.NoError(t, err)

	got, err := store.GetTransactionByID(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "Travel", got.Category)
	assert.Equal(t, model.SourceUser, got.Source)
	assert.True(t, got.IsPersonal)
	assert.True(t, got.Reviewed)
	assert.Equal(t, 2, got.Version)

	err = store.UpdateTransactionReview(ctx, "nope", service.ReviewUpdate{Category: "Travel"})
	assert.ErrorIs(t, err, common.ErrNotFound)
	err = store.UpdateTransactionReview(ctx, "t2", service.ReviewUpdate{})
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestUpdateDuplicateStatusAndDelete(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTransactions(ctx, sampleTransactions()))

	require.NoError(t, store.UpdateDuplicateStatus(ctx, "t2", model.DuplicateNone, "", true))
	got, err := store.GetTransactionByID(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateNone, got.DuplicateStatus)
	assert.Empty(t, got.DuplicateOf)
	assert.True(t, got.DuplicateLocked)

	assert.ErrorIs(t, store.UpdateDuplicateStatus(ctx, "t2", "maybe", "", false), ErrInvalidTransaction)

	require.NoError(t, store.DeleteTransaction(ctx, "t2"))
	_, err = store.GetTransactionByID(ctx, "t2")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, store.DeleteTransaction(ctx, "t2"), common.ErrNotFound)
}
