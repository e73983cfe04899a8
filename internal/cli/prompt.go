package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/Veraticus/spice-books/internal/model"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// lineReader reads lines while honoring context cancellation. A canceled
// read leaves its goroutine blocked until the next line arrives.
type lineReader struct {
	reader *bufio.Reader
	mu     sync.Mutex
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{reader: bufio.NewReader(r)}
}

func (r *lineReader) ReadLine(ctx context.Context) (string, error) {
	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		value, err := r.reader.ReadString('\n')
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil && !(errors.Is(res.err, io.EOF) && res.value != "") {
			return "", res.err
		}
		return strings.TrimSpace(res.value), nil
	}
}

// Action is what the user chose for one transaction.
type Action int

// Review actions.
const (
	ActionCategorize Action = iota
	ActionSkip
	ActionQuit
)

// Decision is the parsed answer to a review prompt.
type Decision struct {
	Category       string
	Action         Action
	TogglePersonal bool
}

// ReviewPrompter asks the user to confirm or correct classifications.
type ReviewPrompter struct {
	reader *lineReader
	writer io.Writer
}

// NewReviewPrompter creates a prompter reading answers from r.
func NewReviewPrompter(r io.Reader, w io.Writer) *ReviewPrompter {
	return &ReviewPrompter{reader: newLineReader(r), writer: w}
}

// Ask shows a transaction and reads the verdict. Enter accepts the current
// category, a number picks a suggestion, s skips, q quits and p flips the
// personal flag before accepting. Anything else is a new category. End of
// input quits.
func (p *ReviewPrompter) Ask(ctx context.Context, txn model.Transaction, suggestions model.CategorySuggestions) (Decision, error) {
	personal := ""
	if txn.IsPersonal {
		personal = WarningStyle.Render(" personal")
	}
	_, _ = fmt.Fprintf(p.writer, "\n%s  %s  %s\n", BoldStyle.Render(txn.Date.Format(dateLayout)),
		BoldStyle.Render(fmt.Sprintf("%.2f", txn.Amount)), txn.Description)
	_, _ = fmt.Fprintf(p.writer, "  %s %s%s %s\n", InfoIcon, txn.Category, personal,
		SubtleStyle.Render(fmt.Sprintf("(%s, confidence %d)", txn.Source, txn.Confidence)))
	if txn.DuplicateStatus != model.DuplicateNone {
		_, _ = fmt.Fprintln(p.writer, "  "+FormatWarning(fmt.Sprintf("possible %s duplicate of %s", txn.DuplicateStatus, txn.DuplicateOf)))
	}
	if len(suggestions) > 0 {
		_ = RenderSuggestions(p.writer, suggestions)
	}
	_, _ = fmt.Fprint(p.writer, FormatPrompt("Category [enter=accept, #, =name, s=skip, p=personal, q=quit]"))

	line, err := p.reader.ReadLine(ctx)
	if errors.Is(err, io.EOF) {
		return Decision{Action: ActionQuit}, nil
	}
	if err != nil {
		return Decision{}, err
	}
	return ParseDecision(line, txn.Category, suggestions), nil
}

// ParseDecision interprets one line of review input. A leading "=" takes the
// rest of the line as a category name, so categories such as "S" or "2" can
// still be entered.
func ParseDecision(line, current string, suggestions model.CategorySuggestions) Decision {
	if literal, ok := strings.CutPrefix(line, "="); ok {
		if literal = strings.TrimSpace(literal); literal != "" {
			return Decision{Action: ActionCategorize, Category: literal}
		}
		return Decision{Action: ActionCategorize, Category: current}
	}

	switch strings.ToLower(line) {
	case "":
		return Decision{Action: ActionCategorize, Category: current}
	case "s", "skip":
		return Decision{Action: ActionSkip}
	case "q", "quit":
		return Decision{Action: ActionQuit}
	case "p":
		return Decision{Action: ActionCategorize, Category: current, TogglePersonal: true}
	}

	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(suggestions) {
		return Decision{Action: ActionCategorize, Category: suggestions[n-1].Category}
	}
	return Decision{Action: ActionCategorize, Category: line}
}
