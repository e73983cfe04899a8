package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-books/internal/classify"
	"github.com/Veraticus/spice-books/internal/match"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/service"
)

// Rules returns every rule in evaluation order.
func (e *Engine) Rules(ctx context.Context) ([]model.Rule, error) {
	return e.storage.GetRules(ctx)
}

// AddRule validates and stores a new enabled rule.
func (e *Engine) AddRule(ctx context.Context, rule *model.Rule) error {
	if err := classify.ValidateRule(*rule); err != nil {
		return err
	}
	rule.Enabled = true
	rule.AutoDisabled = false
	e.learner.InitRule(rule)

	if err := e.storage.CreateRule(ctx, rule); err != nil {
		return err
	}
	slog.Info("Rule added", "rule_id", rule.ID, "rule", rule.Name, "category", rule.Category)
	return e.Reload(ctx)
}

// EnableRule turns a rule back on and pins it against auto-disable.
func (e *Engine) EnableRule(ctx context.Context, id int64) (*model.Rule, error) {
	return e.updateRule(ctx, id, func(r *model.Rule) {
		e.learner.Reenable(r)
	})
}

// DisableRule switches a rule off by hand.
func (e *Engine) DisableRule(ctx context.Context, id int64) (*model.Rule, error) {
	return e.updateRule(ctx, id, func(r *model.Rule) {
		r.Enabled = false
		r.AutoDisabled = false
		r.Pinned = false
		r.Version++
		r.UpdatedAt = e.now()
	})
}

func (e *Engine) updateRule(ctx context.Context, id int64, mutate func(*model.Rule)) (*model.Rule, error) {
	var rule *model.Rule
	err := e.withConflictRetry(ctx, func(tx service.Transaction) error {
		r, err := tx.GetRule(ctx, id)
		if err != nil {
			return err
		}
		mutate(r)
		rule = r
		return tx.UpdateRule(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Rule updated", "rule_id", id, "enabled", rule.Enabled, "pinned", rule.Pinned)
	return rule, e.Reload(ctx)
}

// Merchants returns every merchant profile.
func (e *Engine) Merchants(ctx context.Context) ([]model.MerchantProfile, error) {
	return e.storage.GetMerchants(ctx)
}

// AddMerchant registers a merchant under its normalized name.
func (e *Engine) AddMerchant(ctx context.Context, name, category string, isPersonal bool, aliases ...string) (*model.MerchantProfile, error) {
	key := match.MerchantKey(name)
	if key == "" {
		return nil, fmt.Errorf("merchant name %q normalizes to nothing", name)
	}
	if strings.TrimSpace(category) == "" {
		return nil, fmt.Errorf("category is required")
	}

	profile := &model.MerchantProfile{
		Name:            key,
		DefaultCategory: strings.TrimSpace(category),
		IsPersonal:      isPersonal,
		Aliases:         normalizeAliases(key, nil, aliases),
	}
	e.learner.InitMerchant(profile)

	if err := e.storage.CreateMerchant(ctx, profile); err != nil {
		return nil, err
	}
	slog.Info("Merchant added", "merchant_id", profile.ID, "merchant", profile.Name, "aliases", len(profile.Aliases))
	return profile, e.Reload(ctx)
}

// AddAlias attaches another spelling to a merchant.
func (e *Engine) AddAlias(ctx context.Context, id int64, alias string) (*model.MerchantProfile, error) {
	if match.MerchantKey(alias) == "" {
		return nil, fmt.Errorf("alias %q normalizes to nothing", alias)
	}

	var profile *model.MerchantProfile
	err := e.withConflictRetry(ctx, func(tx service.Transaction) error {
		p, err := tx.GetMerchant(ctx, id)
		if err != nil {
			return err
		}
		p.Aliases = normalizeAliases(p.Name, p.Aliases, []string{alias})
		p.Version++
		p.UpdatedAt = e.now()
		profile = p
		return tx.UpdateMerchant(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return profile, e.Reload(ctx)
}

// normalizeAliases merges added into existing as merchant keys, dropping
// blanks, repeats and the merchant's own name.
func normalizeAliases(name string, existing, added []string) []string {
	seen := map[string]bool{name: true}
	out := make([]string, 0, len(existing)+len(added))
	for _, alias := range append(append([]string{}, existing...), added...) {
		key := match.MerchantKey(alias)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}
