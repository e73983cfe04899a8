package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/spice-books/internal/match"
	"github.com/Veraticus/spice-books/internal/model"
	"github.com/Veraticus/spice-books/internal/recurring"
)

const dateLayout = "2006-01-02"

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))
	rules := make([]string, len(headers))
	for i, h := range headers {
		rules[i] = strings.Repeat("─", len([]rune(h)))
	}
	_, _ = fmt.Fprintln(tw, strings.Join(rules, "\t"))
	return tw
}

// RenderTransactions prints a transaction table.
func RenderTransactions(w io.Writer, txns []model.Transaction) error {
	tw := newTable(w, "ID", "DATE", "AMOUNT", "DESCRIPTION", "CATEGORY", "SOURCE", "CONF", "DUPLICATE")
	for _, t := range txns {
		dup := string(t.DuplicateStatus)
		if t.DuplicateOf != "" {
			dup += " of " + shortID(t.DuplicateOf)
		}
		category := t.Category
		if t.IsPersonal {
			category += " (personal)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\t%d\t%s\n",
			t.ID, t.Date.Format(dateLayout), t.Amount, truncate(t.Description, 40),
			category, t.Source, t.Confidence, dup)
	}
	return tw.Flush()
}

// RenderDuplicates prints the ranked candidates of every flagged transaction.
func RenderDuplicates(w io.Writer, results []match.Result) error {
	tw := newTable(w, "INCOMING", "EXISTING", "STATUS", "SCORE", "DESC", "AMOUNT", "DATE", "DAYS")
	for _, r := range results {
		for _, c := range r.Candidates {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.0f\t%.0f\t%.0f\t%d\n",
				shortID(r.TransactionID), shortID(c.ExistingID), c.Status, c.Score,
				c.Breakdown.Description, c.Breakdown.Amount, c.Breakdown.Date, c.DayDiff)
		}
	}
	return tw.Flush()
}

// RenderRules prints rules in evaluation order.
func RenderRules(w io.Writer, rules []model.Rule) error {
	tw := newTable(w, "ID", "PRIO", "NAME", "MATCH", "PATTERN", "CATEGORY", "STATE", "APPLIED", "EFFECTIVE")
	for _, r := range rules {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%d\t%.0f%%\n",
			r.ID, r.Priority, r.Name, r.MatchType, truncate(r.Pattern, 30), r.Category,
			ruleState(r), r.TimesApplied, r.Effectiveness)
	}
	return tw.Flush()
}

func ruleState(r model.Rule) string {
	switch {
	case r.AutoDisabled:
		return "auto-disabled"
	case !r.Enabled:
		return "disabled"
	case r.Pinned:
		return "pinned"
	}
	return "enabled"
}

// RenderMerchants prints merchant profiles.
func RenderMerchants(w io.Writer, merchants []model.MerchantProfile) error {
	tw := newTable(w, "ID", "NAME", "CATEGORY", "ALIASES", "MATCHES", "ACCURACY", "TIER")
	for _, m := range merchants {
		category := m.DefaultCategory
		if m.IsPersonal {
			category += " (personal)"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.0f%%\t%d\n",
			m.ID, m.Name, category, truncate(strings.Join(m.Aliases, ", "), 30),
			m.TotalMatches, m.AccuracyPercentage, m.ConfidenceTier)
	}
	return tw.Flush()
}

// RenderPatterns prints recurring patterns.
func RenderPatterns(w io.Writer, patterns []model.Pattern) error {
	tw := newTable(w, "ID", "MERCHANT", "PERIOD", "AMOUNT", "VAR", "SEEN", "LAST", "NEXT", "CONF", "STATE")
	for _, p := range patterns {
		state := "active"
		switch {
		case p.DisabledByUser:
			state = "disabled"
		case !p.Active:
			state = "inactive"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.1f%%\t%d\t%s\t%s\t%.0f\t%s\n",
			p.ID, p.MerchantKey, p.PeriodType, p.ExpectedAmount, p.AmountVariance, p.OccurrenceCount,
			p.LastOccurrence.Format(dateLayout), p.NextExpected.Format(dateLayout), p.Confidence, state)
	}
	return tw.Flush()
}

// RenderRejections prints merchant groups that did not form a pattern.
func RenderRejections(w io.Writer, rejections []recurring.Rejection) error {
	tw := newTable(w, "MERCHANT", "REASON", "SEEN", "MEAN DAYS", "VAR")
	for _, r := range rejections {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%.1f%%\n",
			r.MerchantKey, r.Reason, r.Occurrences, r.MeanInterval, r.AmountVariance)
	}
	return tw.Flush()
}

// RenderMissing prints overdue recurring payments.
func RenderMissing(w io.Writer, missing []recurring.MissingOccurrence) error {
	tw := newTable(w, "SEVERITY", "MERCHANT", "PERIOD", "EXPECTED", "DUE", "OVERDUE")
	for _, m := range missing {
		severity := WarningStyle.Render(string(m.Severity))
		if m.Severity == recurring.MissingAlert {
			severity = ErrorStyle.Render(string(m.Severity))
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%d days\n",
			severity, m.Pattern.MerchantKey, m.Pattern.PeriodType, m.Pattern.ExpectedAmount,
			m.Pattern.NextExpected.Format(dateLayout), m.DaysOverdue)
	}
	return tw.Flush()
}

// RenderFindings prints anomaly findings, one block each.
func RenderFindings(w io.Writer, findings []model.AnomalyFinding) error {
	for _, f := range findings {
		_, err := fmt.Fprintf(w, "[%s] %s %s\n    %s\n    %s %s\n\n",
			FormatSeverity(f.Severity), BoldStyle.Render(f.Finding), SubtleStyle.Render("("+f.Tag+")"),
			f.Detail, InfoIcon, f.Recommendation)
		if err != nil {
			return err
		}
	}
	return nil
}

// RenderSuggestions prints ranked alternative categories.
func RenderSuggestions(w io.Writer, suggestions model.CategorySuggestions) error {
	for i, s := range suggestions {
		if _, err := fmt.Fprintf(w, "  %d. %s %s\n", i+1, s.Category,
			SubtleStyle.Render(fmt.Sprintf("(%d corrections, %.0f%%)", s.Count, s.Share*100))); err != nil {
			return err
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
