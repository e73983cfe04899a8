package match

import (
	"time"

	"github.com/Veraticus/spice-books/internal/model"
)

// Index buckets existing transactions by calendar day so a duplicate lookup
// only touches the days inside the match window.
type Index struct {
	buckets map[int64][]*model.Transaction
	size    int
}

// NewIndex builds an index over the given transactions.
func NewIndex(existing []model.Transaction) *Index {
	idx := &Index{buckets: make(map[int64][]*model.Transaction)}
	for i := range existing {
		idx.Add(&existing[i])
	}
	return idx
}

// Add inserts a transaction into its day bucket.
func (idx *Index) Add(txn *model.Transaction) {
	day := dayNumber(txn.Date)
	idx.buckets[day] = append(idx.buckets[day], txn)
	idx.size++
}

// Len returns the number of indexed transactions.
func (idx *Index) Len() int {
	return idx.size
}

// Window returns the indexed transactions dated within windowDays of date.
func (idx *Index) Window(date time.Time, windowDays int) []*model.Transaction {
	center := dayNumber(date)
	var out []*model.Transaction
	for d := center - int64(windowDays); d <= center+int64(windowDays); d++ {
		out = append(out, idx.buckets[d]...)
	}
	return out
}

// dayNumber converts a date to a day count since the Unix epoch, ignoring
// time-of-day and location offsets.
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// DayDiff returns the signed number of calendar days from a to b.
func DayDiff(a, b time.Time) int {
	return int(dayNumber(b) - dayNumber(a))
}
