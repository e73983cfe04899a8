// Package classify assigns a category and confidence to transactions using an
// ordered rule set and a merchant registry.
package classify

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Veraticus/spice-books/internal/match"
	"github.com/Veraticus/spice-books/internal/model"
)

// Registry is the read-only reference data classification runs against.
type Registry struct {
	Rules     []model.Rule
	Merchants []model.MerchantProfile
}

// Result is the outcome of classifying one description.
type Result struct {
	RuleID     *int64
	MerchantID *int64
	Category   string
	Source     model.ClassificationSource
	MatchScore float64 // Merchant similarity for fuzzy lookups, 100 otherwise
	Confidence int
	IsPersonal bool
}

// merchantEntry is a merchant profile with its normalized lookup keys.
type merchantEntry struct {
	nameKey   string
	aliasKeys []string
	profile   model.MerchantProfile
}

// Engine classifies descriptions against a registry snapshot. Classification
// never fails: unmatched descriptions receive the default category with zero
// confidence.
type Engine struct {
	byName    map[string][]int
	byAlias   map[string][]int
	rules     []compiledRule
	merchants []merchantEntry
	cfg       Config
	mu        sync.RWMutex
}

// NewEngine creates a classification engine over the given registry.
func NewEngine(cfg Config, reg Registry) *Engine {
	e := &Engine{cfg: cfg}
	e.Reload(reg)
	return e
}

// Reload replaces the registry snapshot.
func (e *Engine) Reload(reg Registry) {
	rules := compileRules(reg.Rules)

	merchants := make([]merchantEntry, 0, len(reg.Merchants))
	byName := make(map[string][]int)
	byAlias := make(map[string][]int)

	for _, p := range sortedMerchants(reg.Merchants) {
		entry := merchantEntry{profile: p, nameKey: match.MerchantKey(p.Name)}
		for _, alias := range p.Aliases {
			if key := match.MerchantKey(alias); key != "" {
				entry.aliasKeys = append(entry.aliasKeys, key)
			}
		}

		i := len(merchants)
		merchants = append(merchants, entry)
		if entry.nameKey != "" {
			byName[entry.nameKey] = append(byName[entry.nameKey], i)
		}
		for _, key := range entry.aliasKeys {
			byAlias[key] = append(byAlias[key], i)
		}
	}

	e.mu.Lock()
	e.rules = rules
	e.merchants = merchants
	e.byName = byName
	e.byAlias = byAlias
	e.mu.Unlock()
}

// RuleCount returns the number of enabled, valid rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Classify assigns a category to a raw description.
func (e *Engine) Classify(description string) Result {
	return e.classify(description, match.MerchantKey(description))
}

// ClassifyTransaction classifies a transaction, reusing its merchant key when set.
func (e *Engine) ClassifyTransaction(txn model.Transaction) Result {
	key := txn.MerchantKey
	if key == "" {
		key = match.MerchantKey(txn.Description)
	}
	return e.classify(txn.Description, key)
}

func (e *Engine) classify(description, key string) Result {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// Rules take precedence over merchant history.
	for i := range e.rules {
		rule := &e.rules[i]
		if rule.matches(description, key) {
			id := rule.ID
			return Result{
				Category:   rule.Category,
				IsPersonal: rule.IsPersonal,
				Confidence: e.cfg.RuleConfidence,
				Source:     model.SourceRule,
				RuleID:     &id,
				MatchScore: 100,
			}
		}
	}

	if entry, score := e.lookupMerchant(key); entry != nil {
		id := entry.profile.ID
		return Result{
			Category:   entry.profile.DefaultCategory,
			IsPersonal: entry.profile.IsPersonal,
			Confidence: entry.profile.ConfidenceTier,
			Source:     model.SourceMerchant,
			MerchantID: &id,
			MatchScore: score,
		}
	}

	return Result{
		Category: e.cfg.DefaultCategory,
		Source:   model.SourceNone,
	}
}

// LookupMerchant finds the merchant profile for a merchant key: exact name,
// then alias, then the best fuzzy match above the lookup threshold.
func (e *Engine) LookupMerchant(key string) (*model.MerchantProfile, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, score := e.lookupMerchant(key)
	if entry == nil {
		return nil, 0
	}
	p := entry.profile
	return &p, score
}

func (e *Engine) lookupMerchant(key string) (*merchantEntry, float64) {
	if key == "" {
		return nil, 0
	}
	if ids := e.byName[key]; len(ids) > 0 {
		return &e.merchants[ids[0]], 100
	}
	if ids := e.byAlias[key]; len(ids) > 0 {
		return &e.merchants[ids[0]], 100
	}

	var best *merchantEntry
	bestScore := 0.0
	for i := range e.merchants {
		entry := &e.merchants[i]
		score := match.Ratio(key, entry.nameKey)
		for _, alias := range entry.aliasKeys {
			if s := match.Ratio(key, alias); s > score {
				score = s
			}
		}
		// Merchants are sorted by ID, so strict ">" keeps the lowest ID on ties.
		if score >= e.cfg.MerchantLookupThreshold && score > bestScore {
			best = entry
			bestScore = score
		}
	}
	return best, bestScore
}

// ClassifyBatch classifies multiple transactions, keyed by transaction ID.
func (e *Engine) ClassifyBatch(ctx context.Context, transactions []model.Transaction) (map[string]Result, error) {
	results := make(map[string]Result, len(transactions))

	for _, txn := range transactions {
		select {
		case <-ctx.Done():
			return results, fmt.Errorf("classification interrupted: %w", ctx.Err())
		default:
			results[txn.ID] = e.ClassifyTransaction(txn)
		}
	}

	return results, nil
}

func sortedMerchants(profiles []model.MerchantProfile) []model.MerchantProfile {
	out := make([]model.MerchantProfile, len(profiles))
	copy(out, profiles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
