package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/feedback"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/service"
)

// ReviewRequest is a user's verdict on one transaction.
type ReviewRequest struct {
	IsPersonal    *bool // Nil keeps the current flag
	TransactionID string
	Category      string
}

// ReviewResult reports what a review changed.
type ReviewResult struct {
	Transaction     *model.Transaction
	Event           *model.CorrectionEvent
	Outcome         *feedback.Outcome
	CreatedMerchant *model.MerchantProfile
	Suggestions     model.CategorySuggestions
}

// Review confirms or corrects the category of a transaction. The first review
// feeds the rule or merchant that classified it; later reviews only change the
// transaction. Version conflicts on the learning subject are retried against
// fresh state.
func (e *Engine) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		return nil, fmt.Errorf("category is required")
	}

	unlock := e.locks.Lock(req.TransactionID)
	defer unlock()

	var result *ReviewResult
	err := common.WithRetry(ctx, func() error {
		r, err := e.review(ctx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	}, e.retry)
	if err != nil {
		return nil, err
	}

	if result.Event != nil || result.CreatedMerchant != nil {
		if err := e.Reload(ctx); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (e *Engine) review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	result := &ReviewResult{}

	err := e.inTx(ctx, func(tx service.Transaction) error {
		txn, err := tx.GetTransactionByID(ctx, req.TransactionID)
		if err != nil {
			return err
		}

		if !txn.Reviewed {
			if err := e.learn(ctx, tx, txn, req.Category, result); err != nil {
				return err
			}
		}

		isPersonal := txn.IsPersonal
		if req.IsPersonal != nil {
			isPersonal = *req.IsPersonal
		}
		update := service.ReviewUpdate{
			Category:   req.Category,
			Source:     model.SourceUser,
			Confidence: 100,
			IsPersonal: isPersonal,
			Reviewed:   true,
		}
		if err := tx.UpdateTransactionReview(ctx, txn.ID, update); err != nil {
			return err
		}

		result.Transaction, err = tx.GetTransactionByID(ctx, txn.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// learn records the closed-loop feedback for a first review.
func (e *Engine) learn(ctx context.Context, tx service.Transaction, txn *model.Transaction, category string, result *ReviewResult) error {
	ev := correctionEvent(txn, category)
	if ev == nil {
		return e.learnMerchant(ctx, tx, txn, category, result)
	}
	ev.RecordedAt = e.now()

	var (
		outcome feedback.Outcome
		history model.CorrectionHistory
		err     error
	)
	switch ev.Subject {
	case model.SubjectRule:
		var rule *model.Rule
		if rule, err = tx.GetRule(ctx, ev.SubjectID); err != nil {
			return err
		}
		if outcome, err = e.learner.ApplyToRule(rule, *ev); err != nil {
			return err
		}
		if err = tx.UpdateRule(ctx, rule); err != nil {
			return err
		}
		history = rule.History
	case model.SubjectMerchant:
		var merchant *model.MerchantProfile
		if merchant, err = tx.GetMerchant(ctx, ev.SubjectID); err != nil {
			return err
		}
		if outcome, err = e.learner.ApplyToMerchant(merchant, *ev); err != nil {
			return err
		}
		if err = tx.UpdateMerchant(ctx, merchant); err != nil {
			return err
		}
		history = merchant.History
	}

	if err := tx.AppendCorrection(ctx, ev); err != nil {
		return err
	}

	result.Event = ev
	result.Outcome = &outcome
	result.Suggestions = feedback.Suggest(history, txn.Category)

	slog.Info("Recorded review feedback",
		"transaction_id", txn.ID,
		"subject", ev.Subject,
		"subject_id", ev.SubjectID,
		"was_correct", ev.WasCorrect,
		"accuracy", outcome.Accuracy)
	return nil
}

// learnMerchant registers the merchant of an unclassified transaction under
// the category the user chose.
func (e *Engine) learnMerchant(ctx context.Context, tx service.Transaction, txn *model.Transaction, category string, result *ReviewResult) error {
	if txn.MerchantKey == "" || category == e.policy.Classify.DefaultCategory {
		return nil
	}

	_, err := tx.GetMerchantByName(ctx, txn.MerchantKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	profile := &model.MerchantProfile{
		Name:            txn.MerchantKey,
		DefaultCategory: category,
		IsPersonal:      txn.IsPersonal,
	}
	e.learner.InitMerchant(profile)
	if err := tx.CreateMerchant(ctx, profile); err != nil {
		return err
	}

	result.CreatedMerchant = profile
	slog.Info("Learned new merchant", "merchant", profile.Name, "category", category)
	return nil
}

// correctionEvent describes a review against whatever classified txn, or nil
// when nothing did.
func correctionEvent(txn *model.Transaction, category string) *model.CorrectionEvent {
	ev := &model.CorrectionEvent{
		TransactionID: txn.ID,
		OldCategory:   txn.Category,
		WasCorrect:    txn.Category == category,
	}
	if !ev.WasCorrect {
		ev.NewCategory = category
	}

	switch {
	case txn.Source == model.SourceRule && txn.RuleID != nil:
		ev.Subject = model.SubjectRule
		ev.SubjectID = *txn.RuleID
	case txn.Source == model.SourceMerchant && txn.MerchantID != nil:
		ev.Subject = model.SubjectMerchant
		ev.SubjectID = *txn.MerchantID
	default:
		return nil
	}
	return ev
}

// Suggest ranks alternative categories for a transaction from the correction
// history of the rule or merchant behind its classification.
func (e *Engine) Suggest(ctx context.Context, transactionID string) (model.CategorySuggestions, error) {
	txn, err := e.storage.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	switch {
	case txn.RuleID != nil:
		rule, err := e.storage.GetRule(ctx, *txn.RuleID)
		if err != nil {
			return nil, err
		}
		return feedback.Suggest(rule.History, txn.Category), nil
	case txn.MerchantID != nil:
		merchant, err := e.storage.GetMerchant(ctx, *txn.MerchantID)
		if err != nil {
			return nil, err
		}
		return feedback.Suggest(merchant.History, txn.Category), nil
	}

	if profile, _ := e.classifier.LookupMerchant(txn.MerchantKey); profile != nil {
		return feedback.Suggest(profile.History, txn.Category), nil
	}
	return model.CategorySuggestions{}, nil
}

// Pending returns transactions still waiting for review in a date range.
func (e *Engine) Pending(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	all, err := e.storage.GetTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	pending := make([]model.Transaction, 0, len(all))
	for _, txn := range all {
		if !txn.Reviewed {
			pending = append(pending, txn)
		}
	}
	return pending, nil
}
