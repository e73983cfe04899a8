package match

import (
	"context"
	"sort"

	"github.com/Veraticus/spice-books/internal/model"
)

// Breakdown holds the component scores of a candidate, each 0-100.
type Breakdown struct {
	Description float64
	Amount      float64
	Date        float64
}

// Candidate is an existing transaction that may duplicate an incoming one.
type Candidate struct {
	ExistingID string
	Status     model.DuplicateStatus
	Breakdown  Breakdown
	Score      float64
	DayDiff    int
}

// Result lists the ranked candidates for one incoming transaction.
type Result struct {
	TransactionID string
	Candidates    []Candidate
}

// Status derives the duplicate status from the best candidate.
func (r Result) Status() model.DuplicateStatus {
	if len(r.Candidates) == 0 {
		return model.DuplicateNone
	}
	for _, c := range r.Candidates {
		if c.Status == model.DuplicateExact {
			return model.DuplicateExact
		}
	}
	return model.DuplicateFuzzy
}

// Best returns the top-ranked candidate, or nil.
func (r Result) Best() *Candidate {
	if len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}

// ProgressFunc receives the number of processed records out of total.
type ProgressFunc func(done, total int)

// Matcher scores incoming transactions against existing ones. It never
// mutates the transactions it reads.
type Matcher struct {
	cfg Config
}

// NewMatcher creates a matcher with the given configuration.
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() Config {
	return m.cfg
}

// Score computes the composite similarity between an incoming and an existing transaction.
func (m *Matcher) Score(incoming, existing *model.Transaction) Candidate {
	dayDiff := DayDiff(existing.Date, incoming.Date)
	b := Breakdown{
		Description: Ratio(incoming.Description, existing.Description),
		Amount:      AmountSimilarity(incoming.Amount, existing.Amount),
		Date:        DateProximity(dayDiff),
	}

	status := model.DuplicateFuzzy
	if hashOf(incoming) == hashOf(existing) {
		status = model.DuplicateExact
	}

	if dayDiff < 0 {
		dayDiff = -dayDiff
	}

	return Candidate{
		ExistingID: existing.ID,
		Status:     status,
		Breakdown:  b,
		Score: m.cfg.DescriptionWeight*b.Description +
			m.cfg.AmountWeight*b.Amount +
			m.cfg.DateWeight*b.Date,
		DayDiff: dayDiff,
	}
}

// Candidates returns every indexed transaction within the window scoring at or
// above the threshold, ranked best first.
func (m *Matcher) Candidates(incoming *model.Transaction, idx *Index) []Candidate {
	return m.candidates(incoming, idx.Window(incoming.Date, m.cfg.WindowDays))
}

func (m *Matcher) candidates(incoming *model.Transaction, pool []*model.Transaction) []Candidate {
	var out []Candidate
	for _, existing := range pool {
		if existing.ID != "" && existing.ID == incoming.ID {
			continue
		}
		c := m.Score(incoming, existing)
		if c.Score >= m.cfg.Threshold {
			out = append(out, c)
		}
	}
	Rank(out)
	return out
}

// Rank orders candidates by score, then by smaller day difference, then by
// lower existing ID.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DayDiff != b.DayDiff {
			return a.DayDiff < b.DayDiff
		}
		return a.ExistingID < b.ExistingID
	})
}

// FindDuplicates scans a batch of incoming transactions against the index and
// against earlier entries of the same batch. The caller's index is not
// modified. When ctx is cancelled the results gathered so far are returned
// together with the context error.
func (m *Matcher) FindDuplicates(ctx context.Context, incoming []model.Transaction, idx *Index, progress ProgressFunc) ([]Result, error) {
	results := make([]Result, 0, len(incoming))
	batch := NewIndex(nil)

	for i := range incoming {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		txn := &incoming[i]
		pool := idx.Window(txn.Date, m.cfg.WindowDays)
		pool = append(pool, batch.Window(txn.Date, m.cfg.WindowDays)...)

		results = append(results, Result{
			TransactionID: txn.ID,
			Candidates:    m.candidates(txn, pool),
		})
		batch.Add(txn)

		if progress != nil {
			progress(i+1, len(incoming))
		}
	}

	return results, nil
}

func hashOf(txn *model.Transaction) string {
	if txn.Hash != "" {
		return txn.Hash
	}
	return txn.GenerateHash()
}
