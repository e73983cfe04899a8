package model

import (
	"fmt"
	"time"
)

// PeriodType is the recurrence interval of a pattern.
type PeriodType string

// Period type constants.
const (
	PeriodDaily     PeriodType = "daily"
	PeriodWeekly    PeriodType = "weekly"
	PeriodBiweekly  PeriodType = "biweekly"
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodAnnual    PeriodType = "annual"
)

// Next returns the date one nominal period after from.
func (p PeriodType) Next(from time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return from.AddDate(0, 0, 1)
	case PeriodWeekly:
		return from.AddDate(0, 0, 7)
	case PeriodBiweekly:
		return from.AddDate(0, 0, 14)
	case PeriodMonthly:
		return from.AddDate(0, 1, 0)
	case PeriodQuarterly:
		return from.AddDate(0, 3, 0)
	case PeriodAnnual:
		return from.AddDate(1, 0, 0)
	}
	return from
}

// Valid reports whether p is a known period type.
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodBiweekly, PeriodMonthly, PeriodQuarterly, PeriodAnnual:
		return true
	}
	return false
}

// Pattern is an inferred periodic recurrence for one merchant key.
type Pattern struct {
	LastOccurrence  time.Time
	NextExpected    time.Time
	UpdatedAt       time.Time
	MerchantKey     string
	Category        string
	PeriodType      PeriodType
	ID              int64
	ExpectedAmount  float64
	AmountVariance  float64 // Percentage
	Confidence      float64
	OccurrenceCount int
	Active          bool
	DisabledByUser  bool
}

// Validate ensures the pattern has valid data.
func (p *Pattern) Validate() error {
	if p.MerchantKey == "" {
		return fmt.Errorf("merchant key is required")
	}
	if !p.PeriodType.Valid() {
		return fmt.Errorf("invalid period type %q", p.PeriodType)
	}
	if p.OccurrenceCount < 2 {
		return fmt.Errorf("pattern needs at least 2 occurrences, got %d", p.OccurrenceCount)
	}
	if p.Confidence < 0 || p.Confidence > 100 {
		return fmt.Errorf("confidence must be between 0 and 100, got %.2f", p.Confidence)
	}
	return nil
}
