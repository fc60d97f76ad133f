package pattern

import (
	"testing"

	"github.com/starford/algiz/internal/models"
)

func TestMatchesAny_Regex(t *testing.T) {
	patterns := []string{`^https://example\.com/`, `\.pdf$`}
	if !MatchesAny("https://example.com/page", patterns) {
		t.Error("prefix pattern should match")
	}
	if !MatchesAny("https://other.net/file.PDF", patterns) {
		t.Error("patterns are case-insensitive")
	}
	if MatchesAny("https://other.net/page", patterns) {
		t.Error("no pattern should match")
	}
}

func TestMatchesAny_EmptyListMatchesNothing(t *testing.T) {
	if MatchesAny("anything", nil) {
		t.Error("empty list must match nothing")
	}
	if MatchesAny("anything", []string{""}) {
		t.Error("empty pattern must be ignored")
	}
}

func TestMatchesAny_BadRegexFallsBackToLiteral(t *testing.T) {
	// "c++" is not a valid regex but is a meaningful literal.
	if !MatchesAny("https://example.com/c++/docs", []string{"c++"}) {
		t.Error("bad regex should degrade to substring match")
	}
	if MatchesAny("https://example.com/go/docs", []string{"c++"}) {
		t.Error("literal fallback should still discriminate")
	}
}

func TestContainsAny(t *testing.T) {
	if !ContainsAny("Archive This Page", []string{"archive"}) {
		t.Error("literal match is case-insensitive")
	}
	if ContainsAny("nothing here", []string{"archive"}) {
		t.Error("no literal present")
	}
	// ContainsAny is literal only: regex metacharacters have no meaning.
	if ContainsAny("abc", []string{"a.c"}) {
		t.Error("dot must not act as a wildcard")
	}
}

func TestApplyRules_LiteralAndRegex(t *testing.T) {
	rules := []models.SubstitutionRule{
		{Find: "m.example.com", Replace: "example.com"},
		{Find: `[?&]utm_[^&]+`, Replace: "", IsRegex: true},
	}
	got := ApplyRules("https://m.example.com/page?utm_source=x", rules, nil)
	if got != "https://example.com/page" {
		t.Errorf("got %q", got)
	}
}

func TestApplyRules_InvalidRegexSkipped(t *testing.T) {
	rules := []models.SubstitutionRule{
		{Find: "[invalid", Replace: "x", IsRegex: true},
		{Find: "http://", Replace: "https://"},
	}
	got := ApplyRules("http://example.com", rules, nil)
	if got != "https://example.com" {
		t.Errorf("later rules must still apply, got %q", got)
	}
}

func TestApplyRules_EmptyFindIsNoop(t *testing.T) {
	rules := []models.SubstitutionRule{{Find: "", Replace: "x"}}
	if got := ApplyRules("https://example.com", rules, nil); got != "https://example.com" {
		t.Errorf("got %q", got)
	}
}
