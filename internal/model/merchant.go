package model

import "time"

// MerchantProfile is learned reference data for a normalized payee.
type MerchantProfile struct {
	UpdatedAt          time.Time
	History            CorrectionHistory
	Name               string
	DefaultCategory    string
	Aliases            []string
	ID                 int64
	TotalMatches       int
	CorrectMatches     int
	IncorrectMatches   int
	ConfidenceTier     int
	AccuracyPercentage float64
	Version            int
	IsPersonal         bool
}
