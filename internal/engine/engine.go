// Package engine ties the analysis components to storage. It owns the
// import, review and reporting workflows the CLI exposes.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-books/internal/anomaly"
	"github.com/Veraticus/spice-books/internal/classify"
	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/config"
	"github.com/Veraticus/spice-books/internal/feedback"
	"github.com/Veraticus/spice-books/internal/match"
	"github.com/Veraticus/spice-books/internal/recurring"
	"github.com/Veraticus/spice-books/internal/service"
)

// ProgressFunc receives the number of processed records out of total.
type ProgressFunc func(done, total int)

// Engine orchestrates matching, classification, learning and detection over
// a single store.
type Engine struct {
	storage    service.Storage
	matcher    *match.Matcher
	classifier *classify.Engine
	learner    *feedback.Learner
	recurring  *recurring.Detector
	anomalies  *anomaly.Detector
	locks      *keyedMutex
	now        func() time.Time
	retry      common.RetryOptions
	policy     config.Policy
}

// New creates an engine and loads the rule and merchant registries.
func New(ctx context.Context, storage service.Storage, policy config.Policy) (*Engine, error) {
	e := &Engine{
		storage:    storage,
		policy:     policy,
		matcher:    match.NewMatcher(policy.Match),
		classifier: classify.NewEngine(policy.Classify, classify.Registry{}),
		learner:    feedback.NewLearner(policy.Feedback),
		recurring:  recurring.NewDetector(policy.Recurring),
		anomalies:  anomaly.NewDetector(policy.Anomaly),
		locks:      newKeyedMutex(),
		now:        time.Now,
		retry: common.RetryOptions{
			MaxAttempts:  5,
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     200 * time.Millisecond,
			Multiplier:   2,
		},
	}

	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload refreshes the classifier from the stored rules and merchants.
func (e *Engine) Reload(ctx context.Context) error {
	rules, err := e.storage.GetRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	merchants, err := e.storage.GetMerchants(ctx)
	if err != nil {
		return fmt.Errorf("failed to load merchants: %w", err)
	}

	e.classifier.Reload(classify.Registry{Rules: rules, Merchants: merchants})
	slog.Debug("Registry loaded", "rules", len(rules), "merchants", len(merchants))
	return nil
}

// Policy returns the thresholds the engine was built with.
func (e *Engine) Policy() config.Policy {
	return e.policy
}

// Classifier exposes the live classifier, mainly for dry runs.
func (e *Engine) Classifier() *classify.Engine {
	return e.classifier
}

// inTx runs fn in a storage transaction, committing on success.
func (e *Engine) inTx(ctx context.Context, fn func(tx service.Transaction) error) error {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("Failed to roll back", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// withConflictRetry reruns fn in a fresh transaction when it loses an
// optimistic version race.
func (e *Engine) withConflictRetry(ctx context.Context, fn func(tx service.Transaction) error) error {
	return common.WithRetry(ctx, func() error {
		return e.inTx(ctx, fn)
	}, e.retry)
}
