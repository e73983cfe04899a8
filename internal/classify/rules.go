package classify

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/spice-books/internal/match"
	"github.com/Veraticus/spice-books/internal/model"
)

// compiledRule holds a rule with its predicate prepared for matching.
type compiledRule struct {
	regex   *regexp.Regexp
	aliases map[string]struct{}
	needle  string
	model.Rule
}

// ValidateRule reports whether a rule's predicate can be compiled.
func ValidateRule(rule model.Rule) error {
	_, err := compileRule(rule)
	return err
}

// compileRule prepares a rule's predicate. Invalid regular expressions and
// empty patterns are reported as errors.
func compileRule(rule model.Rule) (compiledRule, error) {
	c := compiledRule{Rule: rule}

	if strings.TrimSpace(rule.Pattern) == "" {
		return c, fmt.Errorf("rule %d has an empty pattern", rule.ID)
	}

	switch rule.MatchType {
	case model.MatchContains:
		c.needle = strings.ToLower(strings.TrimSpace(rule.Pattern))
	case model.MatchAlias:
		c.aliases = make(map[string]struct{})
		for _, alias := range strings.Split(rule.Pattern, "|") {
			if key := match.MerchantKey(alias); key != "" {
				c.aliases[key] = struct{}{}
			}
		}
		if len(c.aliases) == 0 {
			return c, fmt.Errorf("rule %d has no usable aliases", rule.ID)
		}
	case model.MatchRegex:
		expr := rule.Pattern
		if !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return c, fmt.Errorf("failed to compile rule %d: %w", rule.ID, err)
		}
		c.regex = re
	default:
		return c, fmt.Errorf("rule %d has unknown match type %q", rule.ID, rule.MatchType)
	}

	return c, nil
}

// matches reports whether the rule's predicate accepts the description.
func (c *compiledRule) matches(description, merchantKey string) bool {
	switch c.MatchType {
	case model.MatchContains:
		return strings.Contains(strings.ToLower(description), c.needle)
	case model.MatchAlias:
		_, ok := c.aliases[merchantKey]
		return ok
	case model.MatchRegex:
		return c.regex.MatchString(description)
	}
	return false
}

// compileRules compiles the enabled rules and orders them by ascending
// priority, then ascending ID. Rules that fail to compile are skipped.
func compileRules(rules []model.Rule) []compiledRule {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		c, err := compileRule(rule)
		if err != nil {
			slog.Warn("Skipping invalid rule", "rule_id", rule.ID, "error", err)
			continue
		}
		compiled = append(compiled, c)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].Priority != compiled[j].Priority {
			return compiled[i].Priority < compiled[j].Priority
		}
		return compiled[i].ID < compiled[j].ID
	})

	return compiled
}
