package match

import (
	"regexp"
	"strings"
	"unicode"
)

// processorPrefixes are stripped from descriptions before deriving a merchant key.
var processorPrefixes = []string{
	"pos purchase ",
	"purchase authorized on ",
	"debit card purchase ",
	"ach debit ",
	"ach credit ",
	"check card ",
	"visa purchase ",
	"mc purchase ",
	"debit purchase ",
	"recurring payment ",
	"sq *",
	"tst* ",
	"tst*",
	"pp*",
	"paypal *",
}

var leadingDate = regexp.MustCompile(`^\d{1,2}/\d{1,2}\s+`)

// MerchantKey derives the normalized merchant key from a raw description:
// lower-cased, processor prefixes and leading dates removed, tokens carrying
// digits dropped, punctuation stripped, whitespace collapsed.
func MerchantKey(description string) string {
	s := strings.ToLower(strings.TrimSpace(description))
	if s == "" {
		return ""
	}

	for _, prefix := range processorPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	s = leadingDate.ReplaceAllString(s, "")

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '#' && r != '&' && r != '\''
	})

	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.ContainsFunc(f, unicode.IsDigit) {
			continue
		}
		f = strings.Trim(f, "#'")
		if f == "" {
			continue
		}
		kept = append(kept, f)
	}

	if len(kept) == 0 {
		// Purely numeric descriptions keep their raw form so they still group.
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(kept, " ")
}
