// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-books/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	MerchantKey  string
	Duplicates   bool // Only fuzzy or exact duplicates
	ReviewedOnly bool
	Limit        int
	Offset       int
}

// ReviewUpdate carries the fields a user review may change.
type ReviewUpdate struct {
	Category   string
	Source     model.ClassificationSource
	Confidence int
	IsPersonal bool
	Reviewed   bool
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]model.Transaction, error)
	GetTransactionsByMerchantKey(ctx context.Context, merchantKey string) ([]model.Transaction, error)
	UpdateTransactionReview(ctx context.Context, id string, update ReviewUpdate) error
	UpdateDuplicateStatus(ctx context.Context, id string, status model.DuplicateStatus, duplicateOf string, locked bool) error
	SetTransactionPattern(ctx context.Context, ids []string, patternID int64) error
	DeleteTransaction(ctx context.Context, id string) error

	// Merchant operations
	CreateMerchant(ctx context.Context, merchant *model.MerchantProfile) error
	GetMerchant(ctx context.Context, id int64) (*model.MerchantProfile, error)
	GetMerchantByName(ctx context.Context, name string) (*model.MerchantProfile, error)
	GetMerchants(ctx context.Context) ([]model.MerchantProfile, error)
	UpdateMerchant(ctx context.Context, merchant *model.MerchantProfile) error

	// Rule operations
	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	GetRules(ctx context.Context) ([]model.Rule, error)
	UpdateRule(ctx context.Context, rule *model.Rule) error

	// Pattern operations
	UpsertPattern(ctx context.Context, pattern *model.Pattern) error
	GetPattern(ctx context.Context, id int64) (*model.Pattern, error)
	GetPatternByMerchantKey(ctx context.Context, merchantKey string) (*model.Pattern, error)
	GetPatterns(ctx context.Context, activeOnly bool) ([]model.Pattern, error)
	SetPatternActive(ctx context.Context, id int64, active, disabledByUser bool) error

	// Correction log
	AppendCorrection(ctx context.Context, event *model.CorrectionEvent) error
	GetCorrections(ctx context.Context, transactionID string) ([]model.CorrectionEvent, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}
