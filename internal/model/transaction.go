// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// UncategorizedCategory is assigned when neither a rule nor a merchant matches.
const UncategorizedCategory = "Uncategorized"

// DuplicateStatus describes whether a transaction looks like a copy of another.
type DuplicateStatus string

// Duplicate status constants.
const (
	DuplicateNone  DuplicateStatus = "none"
	DuplicateFuzzy DuplicateStatus = "fuzzy"
	DuplicateExact DuplicateStatus = "exact"
)

// Valid reports whether s is a known duplicate status.
func (s DuplicateStatus) Valid() bool {
	switch s {
	case DuplicateNone, DuplicateFuzzy, DuplicateExact:
		return true
	}
	return false
}

// ClassificationSource indicates what produced a transaction's category.
type ClassificationSource string

// Classification source constants.
const (
	SourceNone     ClassificationSource = "none"
	SourceRule     ClassificationSource = "rule"
	SourceMerchant ClassificationSource = "merchant"
	SourceUser     ClassificationSource = "user"
)

// Transaction represents a single bank-statement entry.
type Transaction struct {
	Date            time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PatternID       *int64
	RuleID          *int64
	MerchantID      *int64
	ID              string
	AccountID       string
	Description     string // Raw statement description
	MerchantKey     string // Normalized merchant key
	Category        string
	Hash            string
	DuplicateOf     string
	DuplicateStatus DuplicateStatus
	Source          ClassificationSource
	Amount          float64 // Negative for outflows, positive for inflows
	Confidence      int
	Version         int
	IsPersonal      bool
	Reviewed        bool
	DuplicateLocked bool // Set when the user overrides the derived status
}

// IsOutflow reports whether the transaction is an expense.
func (t *Transaction) IsOutflow() bool {
	return t.Amount < 0
}

// IsInflow reports whether the transaction is income.
func (t *Transaction) IsInflow() bool {
	return t.Amount > 0
}

// IsCategorized reports whether a real category has been assigned.
func (t *Transaction) IsCategorized() bool {
	return t.Category != "" && t.Category != UncategorizedCategory
}

// GenerateHash creates a content hash used for exact duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		strings.ToLower(strings.TrimSpace(t.Description)),
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
