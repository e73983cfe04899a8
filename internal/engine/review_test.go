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

func TestReview_CorrectsRule(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())
	rule := db.SeedRule("coffee", "starbucks", "Meals", 1)
	require.NoError(t, eng.Reload(ctx))

	_, err := eng.Import(ctx, []model.Transaction{
		testutil.Txn("t1", "STARBUCKS AIRPORT", -7.25, testutil.Day(2024, 4, 2)),
	}, nil)
	require.NoError(t, err)

	result, err := eng.Review(ctx, ReviewRequest{TransactionID: "t1", Category: "Travel"})
	require.NoError(t, err)

	require.NotNil(t, result.Event)
	assert.Equal(t, model.SubjectRule, result.Event.Subject)
	assert.Equal(t, rule.ID, result.Event.SubjectID)
	assert.False(t, result.Event.WasCorrect)
	assert.Equal(t, "Meals", result.Event.OldCategory)
	assert.Equal(t, "Travel", result.Event.NewCategory)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, "Travel", result.Suggestions[0].Category)

	assert.Equal(t, "Travel", result.Transaction.Category)
	assert.Equal(t, model.SourceUser, result.Transaction.Source)
	assert.True(t, result.Transaction.Reviewed)

	stored, err := db.Storage.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TimesApplied)
	assert.Equal(t, 1, stored.TimesCorrected)
	assert.Equal(t, 0, stored.TimesConfirmed)
	assert.Equal(t, 1, stored.History[model.CategoryChange{From: "Meals", To: "Travel"}])

	corrections, err := db.Storage.GetCorrections(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, corrections, 1)
}

func TestReview_SecondReviewDoesNotCountAgain(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())
	rule := db.SeedRule("coffee", "starbucks", "Meals", 1)
	require.NoError(t, eng.Reload(ctx))

	_, err := eng.Import(ctx, []model.Transaction{
		testutil.Txn("t1", "STARBUCKS AIRPORT", -7.25, testutil.Day(2024, 4, 2)),
	}, nil)
	require.NoError(t, err)

	_, err = eng.Review(ctx, ReviewRequest{TransactionID: "t1", Category: "Travel"})
	require.NoError(t, err)

	personal := true
	result, err := eng.Review(ctx, ReviewRequest{TransactionID: "t1", Category: "Office", IsPersonal: &personal})
	require.NoError(t, err)
	assert.Nil(t, result.Event)
	assert.Equal(t, "Office", result.Transaction.Category)
	assert.True(t, result.Transaction.IsPersonal)

	stored, err := db.Storage.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TimesApplied)

	suggestions, err := eng.Suggest(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Travel", suggestions[0].Category)
}

func TestReview_ConfirmsMerchant(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())
	merchant := db.SeedMerchant("ADOBE CREATIVE CLOUD", "Software")
	require.NoError(t, eng.Reload(ctx))

	_, err := eng.Import(ctx, []model.Transaction{
		testutil.Txn("t1", "ADOBE CREATIVE CLOUD", -54.99, testutil.Day(2024, 4, 2)),
	}, nil)
	require.NoError(t, err)

	result, err := eng.Review(ctx, ReviewRequest{TransactionID: "t1", Category: "Software"})
	require.NoError(t, err)
	require.NotNil(t, result.Event)
	assert.True(t, result.Event.WasCorrect)
	require.NotNil(t, result.Outcome)
	assert.InDelta(t, 100.0, result.Outcome.Accuracy, 0.001)

	stored, err := db.Storage.GetMerchant(ctx, merchant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalMatches)
	assert.Equal(t, 1, stored.CorrectMatches)
	assert.Equal(t, 2, stored.Version)
}

func TestReview_AutoDisablesRule(t *testing.T) {
	ctx := context.Background()
	policy := config.DefaultPolicy()
	policy.Feedback.MinimumSample = 3
	eng, db := newTestEngine(t, policy)
	rule := db.SeedRule("rides", "uber", "Travel", 1)
	require.NoError(t, eng.Reload(ctx))

	ids := []string{"u1", "u2", "u3"}
	for i, id := range ids {
		_, err := eng.Import(ctx, []model.Transaction{
			testutil.Txn(id, "UBER EATS", -20-float64(i), testutil.Day(2024, 1, 1+10*i)),
		}, nil)
		require.NoError(t, err)
	}

	var last *ReviewResult
	for _, id := range ids {
		r, err := eng.Review(ctx, ReviewRequest{TransactionID: id, Category: "Meals"})
		require.NoError(t, err)
		last = r
	}
	require.NotNil(t, last.Outcome)
	assert.True(t, last.Outcome.AutoDisabled)

	stored, err := db.Storage.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
	assert.True(t, stored.AutoDisabled)

	cls := eng.Classifier().Classify("UBER EATS")
	assert.NotEqual(t, model.SourceRule, cls.Source)

	enabled, err := eng.EnableRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)
	assert.True(t, enabled.Pinned)
	assert.Equal(t, 3, enabled.TimesApplied)

	cls = eng.Classifier().Classify("UBER TRIP")
	assert.Equal(t, model.SourceRule, cls.Source)
}

func TestReview_LearnsMerchant(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())

	_, err := eng.Import(ctx, []model.Transaction{
		testutil.Txn("b1", "BLUE BOTTLE COFFEE", -6.00, testutil.Day(2024, 4, 2)),
	}, nil)
	require.NoError(t, err)

	result, err := eng.Review(ctx, ReviewRequest{TransactionID: "b1", Category: "Meals"})
	require.NoError(t, err)
	assert.Nil(t, result.Event)
	require.NotNil(t, result.CreatedMerchant)
	assert.Equal(t, "blue bottle coffee", result.CreatedMerchant.Name)

	_, err = eng.Import(ctx, []model.Transaction{
		testutil.Txn("b2", "BLUE BOTTLE COFFEE", -6.50, testutil.Day(2024, 5, 2)),
	}, nil)
	require.NoError(t, err)

	txn, err := db.Storage.GetTransactionByID(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, "Meals", txn.Category)
	assert.Equal(t, model.SourceMerchant, txn.Source)
}

func TestReview_Errors(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, config.DefaultPolicy())

	_, err := eng.Review(ctx, ReviewRequest{TransactionID: "nope", Category: " "})
	assert.Error(t, err)

	_, err = eng.Review(ctx, ReviewRequest{TransactionID: "nope", Category: "Meals"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCorrectionEvent(t *testing.T) {
	ruleID := int64(4)
	merchantID := int64(9)

	tests := []struct {
		txn     model.Transaction
		want    *model.CorrectionEvent
		name    string
		correct string
	}{
		{
			name:    "rule confirmed",
			txn:     model.Transaction{ID: "a", Category: "Meals", Source: model.SourceRule, RuleID: &ruleID},
			correct: "Meals",
			want:    &model.CorrectionEvent{Subject: model.SubjectRule, SubjectID: 4, TransactionID: "a", OldCategory: "Meals", WasCorrect: true},
		},
		{
			name:    "merchant corrected",
			txn:     model.Transaction{ID: "b", Category: "Meals", Source: model.SourceMerchant, MerchantID: &merchantID},
			correct: "Travel",
			want:    &model.CorrectionEvent{Subject: model.SubjectMerchant, SubjectID: 9, TransactionID: "b", OldCategory: "Meals", NewCategory: "Travel"},
		},
		{
			name:    "unclassified",
			txn:     model.Transaction{ID: "c", Category: model.UncategorizedCategory, Source: model.SourceNone},
			correct: "Travel",
		},
		{
			name:    "rule source without id",
			txn:     model.Transaction{ID: "d", Category: "Meals", Source: model.SourceRule},
			correct: "Travel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, correctionEvent(&tt.txn, tt.correct))
		})
	}
}
