package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-books/internal/anomaly"
	"github.com/Veraticus/spice-books/internal/config"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/recurring"
	"github.com/Veraticus/spice-books/internal/testutil"
)

func TestDetectPatterns(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())
	db.SeedTransactions(testutil.Monthly("nf", "NETFLIX", "Entertainment", -15.99, testutil.Day(2024, 1, 5), 6)...)
	db.SeedTransactions(testutil.Txn("pending", "NETFLIX", -15.99, testutil.Day(2024, 6, 6)))

	report, err := eng.DetectPatterns(ctx, testutil.Day(2024, 6, 20))
	require.NoError(t, err)
	require.Len(t, report.Patterns, 1)

	p := report.Patterns[0]
	assert.NotZero(t, p.ID)
	assert.Equal(t, "netflix", p.MerchantKey)
	assert.Equal(t, model.PeriodMonthly, p.PeriodType)
	assert.Equal(t, 6, p.OccurrenceCount)
	assert.Equal(t, "Entertainment", p.Category)
	assert.True(t, p.Active)

	member, err := db.Storage.GetTransactionByID(ctx, "nf-03")
	require.NoError(t, err)
	require.NotNil(t, member.PatternID)
	assert.Equal(t, p.ID, *member.PatternID)

	unreviewed, err := db.Storage.GetTransactionByID(ctx, "pending")
	require.NoError(t, err)
	assert.Nil(t, unreviewed.PatternID)

	missing, err := eng.MissingPatterns(ctx, testutil.Day(2024, 8, 20))
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, recurring.MissingAlert, missing[0].Severity)
	assert.Equal(t, 46, missing[0].DaysOverdue)

	missing, err = eng.MissingPatterns(ctx, testutil.Day(2024, 7, 10))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestDetectPatterns_UserDisableSticks(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())
	db.SeedTransactions(testutil.Monthly("gym", "PLANET FITNESS", "Health", -24.99, testutil.Day(2024, 1, 15), 4)...)

	report, err := eng.DetectPatterns(ctx, testutil.Day(2024, 5, 1))
	require.NoError(t, err)
	require.Len(t, report.Patterns, 1)

	require.NoError(t, eng.DisablePattern(ctx, report.Patterns[0].ID))

	report, err = eng.DetectPatterns(ctx, testutil.Day(2024, 5, 1))
	require.NoError(t, err)
	require.Len(t, report.Patterns, 1)
	assert.False(t, report.Patterns[0].Active)
	assert.True(t, report.Patterns[0].DisabledByUser)

	active, err := eng.Patterns(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	missing, err := eng.MissingPatterns(ctx, testutil.Day(2024, 12, 1))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestDetectPatterns_DeactivatesUnstable(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())
	db.SeedTransactions(testutil.Monthly("aws", "AMAZON WEB SERVICES", "Software", -40, testutil.Day(2024, 1, 3), 4)...)

	report, err := eng.DetectPatterns(ctx, testutil.Day(2024, 4, 10))
	require.NoError(t, err)
	require.Len(t, report.Patterns, 1)

	db.SeedTransactions(testutil.Reviewed(testutil.Txn("aws-spike", "AMAZON WEB SERVICES", -900, testutil.Day(2024, 5, 3)), "Software"))

	report, err = eng.DetectPatterns(ctx, testutil.Day(2024, 5, 10))
	require.NoError(t, err)
	assert.Empty(t, report.Patterns)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, recurring.RejectVariance, report.Rejections[0].Reason)
	assert.Equal(t, []string{"amazon web services"}, report.Deactivated)

	stored, err := db.Storage.GetPatternByMerchantKey(ctx, "amazon web services")
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.False(t, stored.DisabledByUser)
}

func TestAnomalies(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, config.DefaultPolicy())
	db.SeedTransactions(
		testutil.Reviewed(testutil.Txn("u1", "MYSTERY VENDOR", -60, testutil.Day(2024, 1, 10)), model.UncategorizedCategory),
		testutil.Reviewed(testutil.Txn("o1", "STAPLES", -40, testutil.Day(2024, 1, 12)), "Office"),
	)

	var done, total int
	findings, err := eng.Anomalies(ctx, testutil.Day(2024, 1, 1), testutil.Day(2024, 12, 31), func(d, n int) { done, total = d, n })
	require.NoError(t, err)
	assert.Equal(t, total, done)
	assert.Positive(t, total)

	tags := make(map[string]bool)
	for _, f := range findings {
		tags[f.Tag] = true
	}
	assert.True(t, tags[anomaly.TagUncategorized])
	assert.True(t, tags[anomaly.TagZeroActivity])

	_, err = eng.Anomalies(ctx, testutil.Day(2024, 2, 1), testutil.Day(2024, 1, 1), nil)
	assert.Error(t, err)
}

func TestAnomalies_CancelledKeepsCompletedChecks(t *testing.T) {
	eng, db := newTestEngine(t, config.DefaultPolicy())
	dup := testutil.Reviewed(testutil.Txn("d2", "STAPLES", -40, testutil.Day(2024, 1, 12)), "Office")
	dup.DuplicateStatus = model.DuplicateExact
	dup.DuplicateOf = "d1"
	db.SeedTransactions(
		testutil.Reviewed(testutil.Txn("d1", "STAPLES", -40, testutil.Day(2024, 1, 12)), "Office"),
		dup,
		testutil.Reviewed(testutil.Txn("u1", "MYSTERY VENDOR", -60, testutil.Day(2024, 1, 20)), model.UncategorizedCategory),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var last int
	findings, err := eng.Anomalies(ctx, testutil.Day(2024, 1, 1), testutil.Day(2024, 12, 31), func(done, total int) {
		last = done
		if done == total-1 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, last)

	tags := make(map[string]bool)
	for _, f := range findings {
		tags[f.Tag] = true
	}
	assert.True(t, tags[anomaly.TagDuplicates])
	assert.True(t, tags[anomaly.TagZeroActivity])
	assert.False(t, tags[anomaly.TagUncategorized], "last check should not run after cancel")
}
