// Package anomaly runs statistical audit-risk checks over a reviewed ledger.
// Findings are advisory and recomputed on every run.
package anomaly

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-books/internal/model"
)

// Tags identify which check produced a finding.
const (
	TagCategoryRatio = "category_ratio"
	TagIncomeSpike   = "income_spike"
	TagDuplicates    = "duplicates"
	TagPersonalRatio = "personal_ratio"
	TagZeroActivity  = "zero_activity"
	TagUncategorized = "uncategorized"
)

// Period is an inclusive date range.
type Period struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls on or between the period's days.
func (p Period) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(truncateDay(p.From)) && !d.After(truncateDay(p.To))
}

// Months returns the first day of every calendar month the period touches.
func (p Period) Months() []time.Time {
	var out []time.Time
	if p.To.Before(p.From) {
		return out
	}
	cur := monthStart(p.From)
	last := monthStart(p.To)
	for !cur.After(last) {
		out = append(out, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

// ProgressFunc receives the number of completed checks out of total.
type ProgressFunc func(done, total int)

// Detector runs anomaly checks.
type Detector struct {
	benchmarks map[string]decimal.Decimal
	cfg        Config
}

type check func(ledger []model.Transaction, period Period) []model.AnomalyFinding

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg Config) *Detector {
	benchmarks := make(map[string]decimal.Decimal, len(cfg.Benchmarks))
	for name, share := range cfg.Benchmarks {
		if share <= 0 {
			continue
		}
		benchmarks[strings.ToLower(name)] = decimal.NewFromFloat(share)
	}
	return &Detector{cfg: cfg, benchmarks: benchmarks}
}

// Detect runs every check over the transactions dated inside period and
// returns findings sorted by severity. When ctx is cancelled it stops between
// checks and returns what it has with ctx.Err().
func (d *Detector) Detect(ctx context.Context, ledger []model.Transaction, period Period, progress ProgressFunc) ([]model.AnomalyFinding, error) {
	inPeriod := make([]model.Transaction, 0, len(ledger))
	for _, txn := range ledger {
		if period.Contains(txn.Date) {
			inPeriod = append(inPeriod, txn)
		}
	}

	checks := []check{
		d.categoryRatio,
		d.incomeSpikes,
		d.duplicates,
		d.personalRatio,
		d.zeroActivity,
		d.uncategorized,
	}

	var findings []model.AnomalyFinding
	for i, run := range checks {
		if err := ctx.Err(); err != nil {
			sortFindings(findings)
			return findings, err
		}
		findings = append(findings, run(inPeriod, period)...)
		if progress != nil {
			progress(i+1, len(checks))
		}
	}

	sortFindings(findings)
	return findings, nil
}

func sortFindings(findings []model.AnomalyFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() < findings[j].Severity.Rank()
	})
}

func (d *Detector) categoryRatio(ledger []model.Transaction, _ Period) []model.AnomalyFinding {
	total := decimal.Zero
	byCategory := make(map[string]decimal.Decimal)
	names := make(map[string]string)
	for _, txn := range ledger {
		if !isBusinessExpense(txn) {
			continue
		}
		amount := decimal.NewFromFloat(txn.Amount).Abs()
		total = total.Add(amount)
		key := strings.ToLower(txn.Category)
		byCategory[key] = byCategory[key].Add(amount)
		if _, ok := names[key]; !ok {
			names[key] = txn.Category
		}
	}
	if total.IsZero() {
		return nil
	}

	keys := make([]string, 0, len(byCategory))
	for key := range byCategory {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	multiplier := decimal.NewFromFloat(d.cfg.RatioMultiplier)
	var findings []model.AnomalyFinding
	for _, key := range keys {
		benchmark, ok := d.benchmarks[key]
		if !ok {
			continue
		}
		// category > total × multiplier × benchmark
		limit := total.Mul(multiplier).Mul(benchmark)
		if !byCategory[key].GreaterThan(limit) {
			continue
		}
		share := byCategory[key].Div(total).Mul(decimal.NewFromInt(100))
		findings = append(findings, model.AnomalyFinding{
			Severity: model.SeverityHigh,
			Tag:      TagCategoryRatio,
			Finding:  fmt.Sprintf("%s is %s%% of business expenses", names[key], share.StringFixed(1)),
			Detail: fmt.Sprintf("%s of %s total exceeds %s× the %s%% benchmark",
				byCategory[key].StringFixed(2), total.StringFixed(2), multiplier.String(),
				benchmark.Mul(decimal.NewFromInt(100)).String()),
			Recommendation: "Confirm each entry is an ordinary business expense and keep receipts",
		})
	}
	return findings
}

func (d *Detector) incomeSpikes(ledger []model.Transaction, period Period) []model.AnomalyFinding {
	income := make(map[time.Time]decimal.Decimal)
	for _, txn := range ledger {
		if !txn.IsInflow() || txn.IsPersonal {
			continue
		}
		m := monthStart(txn.Date)
		income[m] = income[m].Add(decimal.NewFromFloat(txn.Amount))
	}

	growth := decimal.NewFromFloat(d.cfg.IncomeSpikeGrowth)
	months := period.Months()
	var findings []model.AnomalyFinding
	for i := 1; i < len(months); i++ {
		prev, cur := income[months[i-1]], income[months[i]]
		if !prev.IsPositive() {
			continue
		}
		if !cur.Sub(prev).GreaterThan(prev.Mul(growth)) {
			continue
		}
		pct := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
		findings = append(findings, model.AnomalyFinding{
			Severity: model.SeverityMedium,
			Tag:      TagIncomeSpike,
			Finding:  fmt.Sprintf("Income rose %s%% in %s", pct.StringFixed(0), months[i].Format("January 2006")),
			Detail: fmt.Sprintf("%s in %s versus %s in %s", cur.StringFixed(2), months[i].Format("Jan 2006"),
				prev.StringFixed(2), months[i-1].Format("Jan 2006")),
			Recommendation: "Verify the deposits are income and not transfers or refunds",
		})
	}
	return findings
}

func (d *Detector) duplicates(ledger []model.Transaction, _ Period) []model.AnomalyFinding {
	count := 0
	for _, txn := range ledger {
		if txn.DuplicateStatus == model.DuplicateExact {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return []model.AnomalyFinding{{
		Severity:       model.SeverityHigh,
		Tag:            TagDuplicates,
		Finding:        fmt.Sprintf("%d exact duplicate transactions in the period", count),
		Detail:         "Identical date, amount, description and account appear more than once",
		Recommendation: "Remove the duplicates before filing",
	}}
}

func (d *Detector) personalRatio(ledger []model.Transaction, _ Period) []model.AnomalyFinding {
	reviewed, personal := 0, 0
	for _, txn := range ledger {
		if !txn.Reviewed {
			continue
		}
		reviewed++
		if txn.IsPersonal {
			personal++
		}
	}
	if reviewed == 0 {
		return nil
	}
	ratio := decimal.NewFromInt(int64(personal)).Div(decimal.NewFromInt(int64(reviewed)))
	if !ratio.GreaterThan(decimal.NewFromFloat(d.cfg.PersonalRatio)) {
		return nil
	}
	return []model.AnomalyFinding{{
		Severity:       model.SeverityMedium,
		Tag:            TagPersonalRatio,
		Finding:        fmt.Sprintf("%s%% of reviewed transactions are personal", ratio.Mul(decimal.NewFromInt(100)).StringFixed(0)),
		Detail:         fmt.Sprintf("%d of %d reviewed transactions are marked personal", personal, reviewed),
		Recommendation: "Consider a separate account for business activity",
	}}
}

func (d *Detector) zeroActivity(ledger []model.Transaction, period Period) []model.AnomalyFinding {
	active := make(map[time.Time]bool)
	for _, txn := range ledger {
		if txn.IsOutflow() {
			active[monthStart(txn.Date)] = true
		}
	}
	var idle []string
	for _, m := range period.Months() {
		if !active[m] {
			idle = append(idle, m.Format("Jan 2006"))
		}
	}
	if len(idle) <= d.cfg.ZeroActivityMonths {
		return nil
	}
	return []model.AnomalyFinding{{
		Severity:       model.SeverityMedium,
		Tag:            TagZeroActivity,
		Finding:        fmt.Sprintf("%d months without any expenses", len(idle)),
		Detail:         strings.Join(idle, ", "),
		Recommendation: "Check for missing statements or an inactive business",
	}}
}

func (d *Detector) uncategorized(ledger []model.Transaction, _ Period) []model.AnomalyFinding {
	count := 0
	for _, txn := range ledger {
		if txn.Reviewed && !txn.IsCategorized() {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return []model.AnomalyFinding{{
		Severity:       model.SeverityLow,
		Tag:            TagUncategorized,
		Finding:        fmt.Sprintf("%d reviewed transactions are still uncategorized", count),
		Detail:         "Uncategorized entries are excluded from the category checks",
		Recommendation: "Assign a category to each reviewed transaction",
	}}
}

func isBusinessExpense(txn model.Transaction) bool {
	return txn.IsOutflow() && !txn.IsPersonal && txn.IsCategorized()
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
