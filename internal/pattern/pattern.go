// Package pattern implements user-authored filter patterns and URL
// substitution rules. Patterns are supplied by end users, so a malformed
// regex never fails a run: it degrades to a literal substring test.
package pattern

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/algiz/internal/models"
)

// MatchesAny reports whether text satisfies at least one pattern. Each
// pattern is tried as a case-insensitive regular expression; a pattern that
// does not compile is tried as a case-insensitive literal substring instead.
// An empty pattern list matches nothing.
func MatchesAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			if containsFold(text, p) {
				return true
			}
			continue
		}
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether text contains at least one of the given
// literals (case-insensitive). Content include-lists use literal matching
// only; regex semantics are reserved for URL and path patterns.
func ContainsAny(text string, literals []string) bool {
	for _, l := range literals {
		if l == "" {
			continue
		}
		if containsFold(text, l) {
			return true
		}
	}
	return false
}

// ApplyRules applies every substitution rule in list order and returns the
// rewritten URL. Regex rules replace globally; literal rules replace every
// occurrence. A rule with an empty find is a no-op, and a rule whose regex
// does not compile is skipped so later rules still apply.
func ApplyRules(url string, rules []models.SubstitutionRule, logger *slog.Logger) string {
	out := url
	for _, r := range rules {
		if r.Find == "" {
			continue
		}
		if r.IsRegex {
			re, err := regexp.Compile(r.Find)
			if err != nil {
				if logger != nil {
					logger.Warn("pattern: skipping invalid substitution rule",
						slog.String("find", r.Find),
						slog.String("error", err.Error()))
				}
				continue
			}
			out = re.ReplaceAllString(out, r.Replace)
			continue
		}
		out = strings.ReplaceAll(out, r.Find, r.Replace)
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
