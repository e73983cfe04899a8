package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/model"
)

func TestMerchants(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	merchant := &model.MerchantProfile{
		Name:            "starbucks",
		DefaultCategory: "Meals",
		Aliases:         []string{"sbux", "starbucks coffee"},
		ConfidenceTier:  30,
	}
	require.NoError(t, store.CreateMerchant(ctx, merchant))
	assert.NotZero(t, merchant.ID)
	assert.Equal(t, 1, merchant.Version)

	err := store.CreateMerchant(ctx, &model.MerchantProfile{Name: "starbucks", DefaultCategory: "Meals"})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	merchant.TotalMatches = 2
	merchant.CorrectMatches = 1
	merchant.IncorrectMatches = 1
	merchant.AccuracyPercentage = 50
	merchant.History = model.CorrectionHistory{}
	merchant.History.Record("Meals", "Travel")
	merchant.Version++
	require.NoError(t, store.UpdateMerchant(ctx, merchant))

	got, err := store.GetMerchant(ctx, merchant.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"sbux", "starbucks coffee"}, got.Aliases)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 50.0, got.AccuracyPercentage)
	assert.Equal(t, 1, got.History[model.CategoryChange{From: "Meals", To: "Travel"}])

	// A second writer that loaded version 1 loses.
	stale := *got
	stale.Version = 2
	assert.ErrorIs(t, store.UpdateMerchant(ctx, &stale), common.ErrVersionConflict)

	missing := &model.MerchantProfile{ID: 999, Name: "ghost", DefaultCategory: "Meals", Version: 2}
	assert.ErrorIs(t, store.UpdateMerchant(ctx, missing), common.ErrNotFound)

	all, err := store.GetMerchants(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = store.GetMerchantByName(ctx, "dunkin")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRules(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	late := &model.Rule{Name: "late", MatchType: model.MatchContains, Pattern: "aws", Category: "Software", Priority: 20, Enabled: true}
	early := &model.Rule{Name: "early", MatchType: model.MatchRegex, Pattern: `^uber`, Category: "Travel", Priority: 10, Enabled: true}
	require.NoError(t, store.CreateRule(ctx, late))
	require.NoError(t, store.CreateRule(ctx, early))

	rules, err := store.GetRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "early", rules[0].Name)
	assert.Equal(t, model.MatchRegex, rules[0].MatchType)

	late.TimesApplied = 10
	late.TimesCorrected = 6
	late.TimesConfirmed = 4
	late.Effectiveness = 40
	late.Enabled = false
	late.AutoDisabled = true
	late.Version++
	require.NoError(t, store.UpdateRule(ctx, late))

	got, err := store.GetRule(ctx, late.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.True(t, got.AutoDisabled)
	assert.Equal(t, 10, got.TimesApplied)
	assert.Equal(t, 40.0, got.Effectiveness)

	assert.ErrorIs(t, store.UpdateRule(ctx, late), common.ErrVersionConflict)

	_, err = store.GetRule(ctx, 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPatterns(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTransactions(ctx, sampleTransactions()))

	pattern := &model.Pattern{
		MerchantKey:     "amazon",
		Category:        "Office Supplies",
		PeriodType:      model.PeriodMonthly,
		ExpectedAmount:  -45,
		LastOccurrence:  day(2024, 1, 10),
		NextExpected:    day(2024, 2, 10),
		OccurrenceCount: 2,
		Confidence:      60,
		Active:          true,
	}
	require.NoError(t, store.UpsertPattern(ctx, pattern))
	id := pattern.ID
	require.NotZero(t, id)

	require.NoError(t, store.SetTransactionPattern(ctx, []string{"t1", "t2"}, id))
	txn, err := store.GetTransactionByID(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, txn.PatternID)
	assert.Equal(t, id, *txn.PatternID)

	pattern.OccurrenceCount = 3
	require.NoError(t, store.UpsertPattern(ctx, pattern))
	assert.Equal(t, id, pattern.ID)

	require.NoError(t, store.SetPatternActive(ctx, id, false, true))
	refreshed := *pattern
	refreshed.Active = true
	refreshed.DisabledByUser = false
	require.NoError(t, store.UpsertPattern(ctx, &refreshed))
	assert.False(t, refreshed.Active, "user-disabled pattern stays off")
	assert.True(t, refreshed.DisabledByUser)

	active, err := store.GetPatterns(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := store.GetPatterns(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 3, all[0].OccurrenceCount)
	assert.True(t, all[0].NextExpected.Equal(day(2024, 2, 10)))

	byKey, err := store.GetPatternByMerchantKey(ctx, "amazon")
	require.NoError(t, err)
	assert.Equal(t, id, byKey.ID)

	assert.ErrorIs(t, store.SetPatternActive(ctx, 404, true, false), common.ErrNotFound)
	_, err = store.GetPattern(ctx, 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCorrections(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	events := []*model.CorrectionEvent{
		{Subject: model.SubjectMerchant, SubjectID: 1, TransactionID: "t1", WasCorrect: true, OldCategory: "Meals"},
		{Subject: model.SubjectRule, SubjectID: 2, TransactionID: "t2", OldCategory: "Software", NewCategory: "Office"},
	}
	for _, ev := range events {
		require.NoError(t, store.AppendCorrection(ctx, ev))
		assert.NotZero(t, ev.ID)
	}

	all, err := store.GetCorrections(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.SubjectMerchant, all[0].Subject)

	forT2, err := store.GetCorrections(ctx, "t2")
	require.NoError(t, err)
	require.Len(t, forT2, 1)
	assert.False(t, forT2[0].WasCorrect)
	assert.Equal(t, "Office", forT2[0].NewCategory)
}
