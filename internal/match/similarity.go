// Package match detects approximate duplicate transactions and provides the
// string similarity and merchant-key normalization shared by the engine.
package match

import (
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// amountEpsilon guards the relative amount difference against tiny denominators.
const amountEpsilon = 0.01

// Ratio returns the Ratcliff/Obershelp similarity of two strings on a 0-100
// scale after lower-casing and trimming. An empty side scores 0.
func Ratio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio() * 100
}

func splitRunes(s string) []string {
	runes := []rune(s)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

// AmountSimilarity compares a new amount against an existing one on a 0-100 scale.
func AmountSimilarity(incoming, existing float64) float64 {
	if math.IsNaN(incoming) || math.IsNaN(existing) {
		return 0
	}
	if incoming == existing {
		return 100
	}
	if existing == 0 {
		// Only 0 == 0 matches, handled above.
		return 0
	}

	delta := math.Abs(incoming - existing)
	score := 100 * (1 - delta/math.Max(math.Abs(existing), amountEpsilon))
	return clamp(score, 0, 100)
}

// DateProximity scores how close two dates are: 100 on the same day, minus 5
// per day apart, never below zero.
func DateProximity(dayDiff int) float64 {
	if dayDiff < 0 {
		dayDiff = -dayDiff
	}
	return math.Max(0, 100-5*float64(dayDiff))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
