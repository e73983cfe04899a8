// Package recurring infers periodic transaction patterns from reviewed
// history and reports expected occurrences that have not arrived.
package recurring

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/Veraticus/spice-books/internal/match"
	"github.com/Veraticus/spice-books/internal/model"
)

// RejectReason explains why a merchant group produced no pattern.
type RejectReason string

// Reject reasons.
const (
	RejectTooFew    RejectReason = "too_few"
	RejectIrregular RejectReason = "irregular"
	RejectVariance  RejectReason = "variance"
)

// Rejection records a merchant group that was not recurring.
type Rejection struct {
	MerchantKey    string
	Reason         RejectReason
	MeanInterval   float64
	AmountVariance float64
	Occurrences    int
}

// Detection is the outcome of one detection run.
type Detection struct {
	Members    map[string][]string // Merchant key to member transaction IDs
	Patterns   []model.Pattern
	Rejections []Rejection
}

// Detector infers recurring patterns.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Window returns the lookback window ending at asOf.
func (d *Detector) Window(asOf time.Time) (time.Time, time.Time) {
	return asOf.AddDate(0, -d.cfg.LookbackMonths, 0), asOf
}

// Detect groups reviewed transactions inside the lookback window by merchant
// key and emits a pattern for every group with a regular interval and stable
// amount. Results are ordered by merchant key.
func (d *Detector) Detect(ctx context.Context, transactions []model.Transaction, asOf time.Time) (*Detection, error) {
	from, to := d.Window(asOf)

	groups := make(map[string][]model.Transaction)
	for _, txn := range transactions {
		if !txn.Reviewed || txn.Date.Before(from) || txn.Date.After(to) {
			continue
		}
		key := txn.MerchantKey
		if key == "" {
			key = match.MerchantKey(txn.Description)
		}
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], txn)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := &Detection{Members: make(map[string][]string)}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pattern, rejection := d.infer(key, groups[key])
		if rejection != nil {
			result.Rejections = append(result.Rejections, *rejection)
			continue
		}
		result.Patterns = append(result.Patterns, *pattern)
		for _, txn := range groups[key] {
			result.Members[key] = append(result.Members[key], txn.ID)
		}
	}

	return result, nil
}

func (d *Detector) infer(key string, group []model.Transaction) (*model.Pattern, *Rejection) {
	if len(group) < d.cfg.MinOccurrences {
		return nil, &Rejection{MerchantKey: key, Reason: RejectTooFew, Occurrences: len(group)}
	}

	sorted := make([]model.Transaction, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	intervals := Intervals(sorted)
	mean := Mean(intervals)
	period, ok := d.Classify(mean)
	if !ok {
		return nil, &Rejection{MerchantKey: key, Reason: RejectIrregular, MeanInterval: mean, Occurrences: len(sorted)}
	}

	amounts := make([]float64, len(sorted))
	for i, txn := range sorted {
		amounts[i] = txn.Amount
	}
	variance := Variance(amounts)
	if variance > d.cfg.VarianceCeiling {
		return nil, &Rejection{
			MerchantKey:    key,
			Reason:         RejectVariance,
			MeanInterval:   mean,
			AmountVariance: variance,
			Occurrences:    len(sorted),
		}
	}

	last := sorted[len(sorted)-1]
	return &model.Pattern{
		MerchantKey:     key,
		Category:        dominantCategory(sorted),
		PeriodType:      period,
		ExpectedAmount:  Mean(amounts),
		AmountVariance:  variance,
		LastOccurrence:  last.Date,
		NextExpected:    period.Next(last.Date),
		OccurrenceCount: len(sorted),
		Confidence:      Confidence(variance, len(sorted)),
		Active:          true,
	}, nil
}

// Classify maps a mean interval in days to a period type.
func (d *Detector) Classify(meanDays float64) (model.PeriodType, bool) {
	for _, band := range d.cfg.Bands {
		if meanDays >= band.MinDays && meanDays <= band.MaxDays {
			return band.Period, true
		}
	}
	return "", false
}

// Intervals returns the sorted day gaps between consecutive, date-ordered
// occurrences.
func Intervals(sorted []model.Transaction) []float64 {
	if len(sorted) < 2 {
		return nil
	}
	out := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		out = append(out, float64(match.DayDiff(sorted[i-1].Date, sorted[i].Date)))
	}
	sort.Float64s(out)
	return out
}

// Variance returns (max-min)/mean*100 over absolute amounts.
func Variance(amounts []float64) float64 {
	if len(amounts) == 0 {
		return 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	sum := 0.0
	for _, a := range amounts {
		a = math.Abs(a)
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
		sum += a
	}
	mean := sum / float64(len(amounts))
	if mean == 0 {
		return 0
	}
	return (hi - lo) / mean * 100
}

// Confidence averages an amount-consistency term and an occurrence-count term.
func Confidence(variance float64, occurrences int) float64 {
	consistency := 100 - math.Min(variance, 30)
	count := math.Min(100, float64(occurrences)*10)
	return (consistency + count) / 2
}

// Mean returns the arithmetic mean, 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// dominantCategory returns the most common category among the occurrences,
// preferring the alphabetically first on ties.
func dominantCategory(group []model.Transaction) string {
	counts := make(map[string]int)
	for _, txn := range group {
		if txn.Category != "" {
			counts[txn.Category]++
		}
	}
	best, bestCount := "", 0
	for category, n := range counts {
		if n > bestCount || (n == bestCount && category < best) {
			best, bestCount = category, n
		}
	}
	return best
}
