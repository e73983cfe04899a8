package model

import (
	"fmt"
	"sort"
	"time"
)

// CorrectionSubject identifies which registry a correction event updates.
type CorrectionSubject string

// Correction subject constants.
const (
	SubjectMerchant CorrectionSubject = "merchant"
	SubjectRule     CorrectionSubject = "rule"
)

// CorrectionEvent is a closed-loop review outcome for one classification.
type CorrectionEvent struct {
	RecordedAt    time.Time
	Subject       CorrectionSubject
	TransactionID string
	OldCategory   string
	NewCategory   string
	SubjectID     int64
	ID            int64
	WasCorrect    bool
}

// Validate ensures the event can be applied.
func (e *CorrectionEvent) Validate() error {
	switch e.Subject {
	case SubjectMerchant, SubjectRule:
	default:
		return fmt.Errorf("unknown correction subject %q", e.Subject)
	}
	if e.SubjectID <= 0 {
		return fmt.Errorf("subject id must be positive, got %d", e.SubjectID)
	}
	if !e.WasCorrect && e.NewCategory == "" {
		return fmt.Errorf("incorrect classification requires a new category")
	}
	return nil
}

// CategoryChange is one "old → new" category correction.
type CategoryChange struct {
	From string
	To   string
}

// String renders the change as "old→new".
func (c CategoryChange) String() string {
	return c.From + "→" + c.To
}

// CorrectionHistory counts how often each category change was made.
type CorrectionHistory map[CategoryChange]int

// Record increments the count for a change and returns the new count.
func (h CorrectionHistory) Record(from, to string) int {
	key := CategoryChange{From: from, To: to}
	h[key]++
	return h[key]
}

// Total returns the number of recorded corrections.
func (h CorrectionHistory) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// Clone returns an independent copy.
func (h CorrectionHistory) Clone() CorrectionHistory {
	out := make(CorrectionHistory, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Changes returns the recorded changes in a stable order.
func (h CorrectionHistory) Changes() []CategoryChange {
	changes := make([]CategoryChange, 0, len(h))
	for k := range h {
		changes = append(changes, k)
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].From != changes[j].From {
			return changes[i].From < changes[j].From
		}
		return changes[i].To < changes[j].To
	})
	return changes
}
