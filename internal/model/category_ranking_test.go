package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorySuggestion_Validate(t *testing.T) {
	tests := []struct {
		name       string
		errMsg     string
		suggestion CategorySuggestion
		wantErr    bool
	}{
		{
			name:       "valid suggestion",
			suggestion: CategorySuggestion{Category: "Office Supplies", Count: 3, Share: 0.75},
		},
		{
			name:       "empty category name",
			suggestion: CategorySuggestion{Count: 1, Share: 0.5},
			wantErr:    true,
			errMsg:     "category name is required",
		},
		{
			name:       "negative count",
			suggestion: CategorySuggestion{Category: "Travel", Count: -1},
			wantErr:    true,
			errMsg:     "count must not be negative, got -1",
		},
		{
			name:       "share too high",
			suggestion: CategorySuggestion{Category: "Travel", Count: 1, Share: 1.1},
			wantErr:    true,
			errMsg:     "share must be between 0.0 and 1.0, got 1.10",
		},
		{
			name:       "edge case - share 1.0",
			suggestion: CategorySuggestion{Category: "Travel", Count: 4, Share: 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.suggestion.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.errMsg, err.Error())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCategorySuggestions_Sort(t *testing.T) {
	suggestions := CategorySuggestions{
		{Category: "B", Count: 2},
		{Category: "A", Count: 5},
		{Category: "D", Count: 1},
		{Category: "C", Count: 5},
	}

	suggestions.Sort()

	want := []string{"A", "C", "B", "D"}
	for i, cat := range want {
		assert.Equal(t, cat, suggestions[i].Category, "index %d", i)
	}
}

func TestCategorySuggestions_Top(t *testing.T) {
	assert.Nil(t, CategorySuggestions{}.Top())

	top := CategorySuggestions{
		{Category: "Meals", Count: 1},
		{Category: "Travel", Count: 4},
	}.Top()
	require.NotNil(t, top)
	assert.Equal(t, "Travel", top.Category)
}

func TestCategorySuggestions_TopN(t *testing.T) {
	suggestions := CategorySuggestions{
		{Category: "A", Count: 9},
		{Category: "B", Count: 7},
		{Category: "C", Count: 5},
	}

	tests := []struct {
		name  string
		n     int
		count int
	}{
		{name: "zero", n: 0, count: 0},
		{name: "negative", n: -1, count: 0},
		{name: "top 2", n: 2, count: 2},
		{name: "more than exists", n: 10, count: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := suggestions.TopN(tt.n)
			assert.Len(t, got, tt.count)
			if tt.count > 0 {
				assert.Equal(t, "A", got[0].Category)
			}
		})
	}
}

func TestCategorySuggestions_Validate(t *testing.T) {
	err := CategorySuggestions{
		{Category: "A", Count: 1},
		{Category: "A", Count: 2},
	}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate category")

	err = CategorySuggestions{
		{Category: "A", Count: 1},
		{Category: "", Count: 2},
	}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid suggestion at index 1")
}
