package model

import "time"

// RuleMatchType selects how a rule's pattern is compared to a transaction.
type RuleMatchType string

// Rule match type constants.
const (
	// MatchContains is a case-insensitive substring test on the description.
	MatchContains RuleMatchType = "contains"
	// MatchAlias compares the normalized merchant key against a "|"-separated alias list.
	MatchAlias RuleMatchType = "alias"
	// MatchRegex is a case-insensitive regular expression over the description.
	MatchRegex RuleMatchType = "regex"
)

// Valid reports whether t is a known match type.
func (t RuleMatchType) Valid() bool {
	switch t {
	case MatchContains, MatchAlias, MatchRegex:
		return true
	}
	return false
}

// Rule deterministically assigns a category to matching transactions.
type Rule struct {
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	History        CorrectionHistory `json:"-"`
	Name           string            `json:"name"`
	MatchType      RuleMatchType     `json:"match_type"`
	Pattern        string            `json:"pattern"`
	Category       string            `json:"category"`
	ID             int64             `json:"id"`
	Priority       int               `json:"priority"` // Lower value wins
	Effectiveness  float64           `json:"effectiveness"`
	TimesApplied   int               `json:"times_applied"`
	TimesConfirmed int               `json:"times_confirmed"`
	TimesCorrected int               `json:"times_corrected"`
	Version        int               `json:"version"`
	IsPersonal     bool              `json:"is_personal"`
	Enabled        bool              `json:"enabled"`
	AutoDisabled   bool              `json:"auto_disabled"`
	Pinned         bool              `json:"pinned"` // User re-enabled; exempt from auto-disable
}
