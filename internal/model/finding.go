package model

// Severity ranks anomaly findings.
type Severity string

// Severity constants.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank orders severities; lower ranks sort first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}

// AnomalyFinding is an advisory audit-risk observation. It is recomputed on
// every detection run and never stored.
type AnomalyFinding struct {
	Severity       Severity
	Tag            string
	Finding        string
	Detail         string
	Recommendation string
}
