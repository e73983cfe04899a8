package recurring

import (
	"sort"
	"time"

	"github.com/Veraticus/spice-books/internal/match"
	"github.com/Veraticus/spice-books/internal/model"
)

// MissingSeverity grades how overdue an expected occurrence is.
type MissingSeverity string

// Missing severities.
const (
	MissingWarning MissingSeverity = "warning"
	MissingAlert   MissingSeverity = "alert"
)

// MissingOccurrence is an expected recurrence that has not been seen.
type MissingOccurrence struct {
	Severity    MissingSeverity
	Pattern     model.Pattern
	DaysOverdue int
}

// Missing reports active patterns whose next expected date is more than the
// grace period before asOf, most overdue first.
func (d *Detector) Missing(patterns []model.Pattern, asOf time.Time) []MissingOccurrence {
	var out []MissingOccurrence
	for _, p := range patterns {
		if !p.Active || p.DisabledByUser || p.NextExpected.IsZero() {
			continue
		}
		overdue := match.DayDiff(p.NextExpected, asOf)
		if overdue <= d.cfg.GraceDays {
			continue
		}
		severity := MissingWarning
		if overdue >= d.cfg.AlertAfterDays {
			severity = MissingAlert
		}
		out = append(out, MissingOccurrence{Pattern: p, DaysOverdue: overdue, Severity: severity})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysOverdue != out[j].DaysOverdue {
			return out[i].DaysOverdue > out[j].DaysOverdue
		}
		return out[i].Pattern.MerchantKey < out[j].Pattern.MerchantKey
	})
	return out
}
