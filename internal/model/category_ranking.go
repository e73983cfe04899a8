package model

import (
	"fmt"
	"sort"
)

// CategorySuggestion is an alternative category ranked by how often users
// corrected toward it.
type CategorySuggestion struct {
	Category string
	Count    int
	Share    float64 // Fraction of all corrections, 0.0-1.0
}

// Validate ensures the suggestion has valid data.
func (s *CategorySuggestion) Validate() error {
	if s.Category == "" {
		return fmt.Errorf("category name is required")
	}
	if s.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", s.Count)
	}
	if s.Share < 0.0 || s.Share > 1.0 {
		return fmt.Errorf("share must be between 0.0 and 1.0, got %.2f", s.Share)
	}
	return nil
}

// CategorySuggestions is a slice of CategorySuggestion that supports sorting.
type CategorySuggestions []CategorySuggestion

// Len implements sort.Interface.
func (r CategorySuggestions) Len() int {
	return len(r)
}

// Less implements sort.Interface - most frequent first, then by name.
func (r CategorySuggestions) Less(i, j int) bool {
	if r[i].Count != r[j].Count {
		return r[i].Count > r[j].Count
	}
	return r[i].Category < r[j].Category
}

// Swap implements sort.Interface.
func (r CategorySuggestions) Swap(i, j int) {
	r[i], r[j] = r[j], r[i]
}

// Sort sorts the suggestions by frequency in descending order.
func (r CategorySuggestions) Sort() {
	sort.Sort(r)
}

// Top returns the most frequent suggestion, or nil if empty.
func (r CategorySuggestions) Top() *CategorySuggestion {
	if len(r) == 0 {
		return nil
	}
	r.Sort()
	return &r[0]
}

// TopN returns the N most frequent suggestions.
func (r CategorySuggestions) TopN(n int) CategorySuggestions {
	if n <= 0 {
		return CategorySuggestions{}
	}

	r.Sort()

	if n > len(r) {
		n = len(r)
	}

	result := make(CategorySuggestions, n)
	copy(result, r[:n])
	return result
}

// Validate ensures all suggestions are valid and unique.
func (r CategorySuggestions) Validate() error {
	seen := make(map[string]bool)

	for i, s := range r {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("invalid suggestion at index %d: %w", i, err)
		}
		if seen[s.Category] {
			return fmt.Errorf("duplicate category %q in suggestions", s.Category)
		}
		seen[s.Category] = true
	}

	return nil
}
