package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/model"
)

func yamlViper(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return v
}

func TestDefaultPolicyIsValid(t *testing.T) {
	assert.NoError(t, ValidatePolicy(DefaultPolicy()))
}

func TestLoadPolicy_OverridesDefaults(t *testing.T) {
	v := yamlViper(t, `
policy:
  match:
    threshold: 90
    window_days: 3
  anomaly:
    ratio_multiplier: 2.5
    benchmarks:
      Software: 0.2
  recurring:
    grace_days: 3
`)

	policy, err := LoadPolicy(v)
	require.NoError(t, err)

	assert.Equal(t, 90.0, policy.Match.Threshold)
	assert.Equal(t, 3, policy.Match.WindowDays)
	assert.Equal(t, 0.5, policy.Match.DescriptionWeight, "unset keys keep defaults")
	assert.Equal(t, 2.5, policy.Anomaly.RatioMultiplier)
	assert.Equal(t, map[string]float64{"software": 0.2}, policy.Anomaly.Benchmarks, "configured benchmarks replace the defaults")
	assert.Equal(t, 3, policy.Recurring.GraceDays)
	assert.Equal(t, 30, policy.Recurring.AlertAfterDays)
	assert.Equal(t, 90, policy.Classify.RuleConfidence)
}

func TestLoadPolicy_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"threshold out of range", "policy:\n  match:\n    threshold: 150\n"},
		{"weights do not sum to one", "policy:\n  match:\n    date_weight: 0.5\n"},
		{"negative minimum sample", "policy:\n  feedback:\n    minimum_sample: 0\n"},
		{"benchmark above one", "policy:\n  anomaly:\n    benchmarks:\n      meals: 1.5\n"},
		{"unordered tiers", "policy:\n  feedback:\n    tiers:\n      - {min_accuracy: 70, boost: 15}\n      - {min_accuracy: 95, boost: 30}\n"},
		{"unknown period", "policy:\n  recurring:\n    bands:\n      - {period: fortnightly, min_days: 13, max_days: 16}\n"},
		{"inverted band", "policy:\n  recurring:\n    bands:\n      - {period: weekly, min_days: 8, max_days: 6}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPolicy(yamlViper(t, tt.doc))
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestLoadPolicy_Benchmarks(t *testing.T) {
	policy, err := LoadPolicy(yamlViper(t, "policy:\n  match:\n    threshold: 80\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy().Anomaly.Benchmarks, policy.Anomaly.Benchmarks)

	policy, err = LoadPolicy(yamlViper(t, "policy:\n  anomaly:\n    benchmarks:\n      meals: 0\n      travel: 0.15\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"meals": 0, "travel": 0.15}, policy.Anomaly.Benchmarks)

	cfg, err := Load(yamlViper(t, "policy:\n  anomaly:\n    benchmarks:\n      software: 0.2\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"software": 0.2}, cfg.Policy.Anomaly.Benchmarks)
}

func TestLoadPolicy_ReplacesBands(t *testing.T) {
	v := yamlViper(t, "policy:\n  recurring:\n    bands:\n      - {period: monthly, min_days: 25, max_days: 35}\n")

	policy, err := LoadPolicy(v)
	require.NoError(t, err)
	require.Len(t, policy.Recurring.Bands, 1)
	assert.Equal(t, model.PeriodMonthly, policy.Recurring.Bands[0].Period)
}

func TestLoad(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Load(yamlViper(t, "logging:\n  level: DEBUG\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local/share/books/books.db"), cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	_, err = Load(yamlViper(t, "logging:\n  format: xml\n"))
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("BOOKS_TEST_DIR", "/tmp/books")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "books.db"), ExpandPath("~/books.db"))
	assert.Equal(t, "/tmp/books/books.db", ExpandPath("$BOOKS_TEST_DIR/books.db"))
}
