// Package feedback turns user correction events into merchant and rule
// accuracy, confidence tiers and rule auto-disabling. It is the only writer of
// those fields.
package feedback

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-books/internal/model"
)

// Outcome summarizes what a correction changed.
type Outcome struct {
	Subject         model.CorrectionSubject
	SubjectID       int64
	PreviousTier    int
	Tier            int
	Accuracy        float64
	CorrectionCount int // Occurrences of this old→new change so far
	AutoDisabled    bool
}

// Learner applies correction events to registry records.
type Learner struct {
	now func() time.Time
	cfg Config
}

// NewLearner creates a learner with the given configuration.
func NewLearner(cfg Config) *Learner {
	return &Learner{cfg: cfg, now: time.Now}
}

// Accuracy returns correct/total as a percentage, 100 when there is no data.
func Accuracy(correct, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(correct) / float64(total) * 100
}

// Tier maps an accuracy percentage onto the configured step function.
func (l *Learner) Tier(accuracy float64) int {
	for _, band := range l.cfg.Tiers {
		if accuracy >= band.MinAccuracy {
			return band.Boost
		}
	}
	return l.cfg.FallbackTier
}

// InitMerchant prepares a new merchant profile with no match history.
func (l *Learner) InitMerchant(p *model.MerchantProfile) {
	p.AccuracyPercentage = Accuracy(p.CorrectMatches, p.TotalMatches)
	p.ConfidenceTier = l.Tier(p.AccuracyPercentage)
	if p.History == nil {
		p.History = model.CorrectionHistory{}
	}
}

// InitRule prepares a new rule with no application history.
func (l *Learner) InitRule(r *model.Rule) {
	r.Effectiveness = Accuracy(r.TimesConfirmed, r.TimesApplied)
	if r.History == nil {
		r.History = model.CorrectionHistory{}
	}
}

// ApplyToMerchant records a correction against a merchant profile.
// Merchants are never disabled; poor accuracy only lowers their tier.
func (l *Learner) ApplyToMerchant(p *model.MerchantProfile, ev model.CorrectionEvent) (Outcome, error) {
	if err := l.check(ev, model.SubjectMerchant, p.ID); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Subject: model.SubjectMerchant, SubjectID: p.ID, PreviousTier: p.ConfidenceTier}

	p.TotalMatches++
	if ev.WasCorrect {
		p.CorrectMatches++
	} else {
		p.IncorrectMatches++
		if p.History == nil {
			p.History = model.CorrectionHistory{}
		}
		out.CorrectionCount = p.History.Record(ev.OldCategory, ev.NewCategory)
	}

	p.AccuracyPercentage = Accuracy(p.CorrectMatches, p.TotalMatches)
	p.ConfidenceTier = l.Tier(p.AccuracyPercentage)
	p.Version++
	p.UpdatedAt = l.now()

	out.Tier = p.ConfidenceTier
	out.Accuracy = p.AccuracyPercentage

	if out.Tier != out.PreviousTier {
		slog.Info("Merchant confidence tier changed",
			"merchant_id", p.ID,
			"merchant", p.Name,
			"from", out.PreviousTier,
			"to", out.Tier,
			"accuracy", p.AccuracyPercentage)
	}

	return out, nil
}

// ApplyToRule records a correction against a rule and auto-disables it when
// its effectiveness drops below the floor after enough applications.
func (l *Learner) ApplyToRule(r *model.Rule, ev model.CorrectionEvent) (Outcome, error) {
	if err := l.check(ev, model.SubjectRule, r.ID); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Subject: model.SubjectRule, SubjectID: r.ID}

	r.TimesApplied++
	if ev.WasCorrect {
		r.TimesConfirmed++
	} else {
		r.TimesCorrected++
		if r.History == nil {
			r.History = model.CorrectionHistory{}
		}
		out.CorrectionCount = r.History.Record(ev.OldCategory, ev.NewCategory)
	}

	r.Effectiveness = Accuracy(r.TimesConfirmed, r.TimesApplied)
	r.Version++
	r.UpdatedAt = l.now()
	out.Accuracy = r.Effectiveness

	if l.ShouldDisable(*r) {
		r.Enabled = false
		r.AutoDisabled = true
		out.AutoDisabled = true
		slog.Warn("Rule auto-disabled",
			"rule_id", r.ID,
			"rule", r.Name,
			"effectiveness", r.Effectiveness,
			"times_applied", r.TimesApplied)
	}

	return out, nil
}

// ShouldDisable reports whether a rule has enough samples and low enough
// effectiveness to be switched off. Pinned rules are never disabled.
func (l *Learner) ShouldDisable(r model.Rule) bool {
	if !r.Enabled || r.Pinned {
		return false
	}
	if r.TimesApplied < l.cfg.MinimumSample {
		return false
	}
	return r.Effectiveness < l.cfg.DisableBelow
}

// Reenable reverses an automatic or manual disable. The rule is pinned so the
// learner will not switch it off again; counters and history are kept.
func (l *Learner) Reenable(r *model.Rule) {
	r.Enabled = true
	r.AutoDisabled = false
	r.Pinned = true
	r.Version++
	r.UpdatedAt = l.now()
}

// Suggest ranks alternative categories by how often corrections moved away
// from current toward them, most frequent first.
func Suggest(history model.CorrectionHistory, current string) model.CategorySuggestions {
	counts := make(map[string]int)
	total := 0
	for change, n := range history {
		if change.To == current || n <= 0 {
			continue
		}
		counts[change.To] += n
		total += n
	}

	out := make(model.CategorySuggestions, 0, len(counts))
	for category, n := range counts {
		out = append(out, model.CategorySuggestion{
			Category: category,
			Count:    n,
			Share:    float64(n) / float64(total),
		})
	}
	out.Sort()
	return out
}

func (l *Learner) check(ev model.CorrectionEvent, subject model.CorrectionSubject, id int64) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid correction event: %w", err)
	}
	if ev.Subject != subject || ev.SubjectID != id {
		return fmt.Errorf("correction for %s %d applied to %s %d", ev.Subject, ev.SubjectID, subject, id)
	}
	return nil
}
