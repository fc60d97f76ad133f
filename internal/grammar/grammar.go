// Package grammar finds hyperlinks in document text. Link forms are matched
// by a small ordered grammar (markdown, HTML anchor, HTML image, bare URL)
// so that format precedence and quoting/nesting edge cases live in one
// place. A scan is stateless: every call re-derives matches from the text
// it is given, and offsets are valid only against that exact text.
package grammar

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/starford/algiz/internal/models"
)

// annotationLookahead bounds how far past a link the adjacent-annotation
// scan looks. Annotations sit immediately after their link; scanning the
// whole remaining document would be slow and would produce false positives
// from unrelated archive links further down.
const annotationLookahead = 256

var (
	htmlAnchorRe = regexp.MustCompile(`(?i)^<a\s+[^>]*href\s*=\s*(?:"([^"]*)"|'([^']*)')[^>]*>(?:[^<]*</a>)?`)
	htmlImageRe  = regexp.MustCompile(`(?i)^<img\s+[^>]*src\s*=\s*(?:"([^"]*)"|'([^']*)')[^>]*/?>`)

	annotationHTMLRe = regexp.MustCompile(`^<a\s+href="https?://web\.archive\.org/web/(\d{14}|\*)/[^"]*"[^>]*>[^<]*</a>`)
)

// FindLinks returns every link occurrence in text, left to right,
// outermost first. Overlapping candidate forms resolve to exactly one
// match per occurrence: the richer syntactic form wins, so a URL inside a
// markdown target or an href attribute is never also reported as a bare
// URL.
func FindLinks(text string) []models.LinkMatch {
	var out []models.LinkMatch
	for i := 0; i < len(text); {
		m, ok := matchAt(text, i)
		if !ok {
			i++
			continue
		}
		out = append(out, m)
		i = m.End()
	}
	return out
}

// matchAt tries each grammar rule at position i, richest form first.
func matchAt(text string, i int) (models.LinkMatch, bool) {
	switch text[i] {
	case '[':
		if m, ok := matchMarkdown(text, i); ok {
			return m, true
		}
	case '<':
		rest := text[i:]
		if loc := htmlAnchorRe.FindStringSubmatch(rest); loc != nil {
			if url := firstNonEmpty(loc[1:]); url != "" {
				return models.LinkMatch{Start: i, Raw: loc[0], URL: url, Format: models.FormatHTMLA}, true
			}
		}
		if loc := htmlImageRe.FindStringSubmatch(rest); loc != nil {
			if url := firstNonEmpty(loc[1:]); url != "" {
				return models.LinkMatch{Start: i, Raw: loc[0], URL: url, Format: models.FormatHTMLImage}, true
			}
		}
	case 'h':
		if m, ok := matchPlainURL(text, i); ok {
			return m, true
		}
	}
	return models.LinkMatch{}, false
}

// matchMarkdown parses [label](target) starting at the opening bracket.
// The target may contain balanced parentheses (Wikipedia-style URLs), so
// it is consumed with a depth counter rather than a regex.
func matchMarkdown(text string, i int) (models.LinkMatch, bool) {
	j := i + 1
	depth := 1
	for ; j < len(text); j++ {
		switch text[j] {
		case '[':
			depth++
		case ']':
			depth--
		}
		if depth == 0 {
			break
		}
	}
	if depth != 0 || j+1 >= len(text) || text[j+1] != '(' {
		return models.LinkMatch{}, false
	}

	k := j + 2
	depth = 1
	for ; k < len(text); k++ {
		switch text[k] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			break
		}
	}
	if depth != 0 {
		return models.LinkMatch{}, false
	}

	target := strings.TrimSpace(text[j+2 : k])
	// An optional quoted title follows the URL: [x](url "title").
	if sp := strings.IndexFunc(target, unicode.IsSpace); sp >= 0 {
		target = target[:sp]
	}
	if target == "" {
		return models.LinkMatch{}, false
	}
	return models.LinkMatch{Start: i, Raw: text[i : k+1], URL: target, Format: models.FormatMarkdown}, true
}

// matchPlainURL matches a bare http(s) URL. A trailing parenthesis is kept
// only while it is balanced within the URL itself; a paren that closes an
// outer construct is excluded.
func matchPlainURL(text string, i int) (models.LinkMatch, bool) {
	rest := text[i:]
	if !strings.HasPrefix(rest, "http://") && !strings.HasPrefix(rest, "https://") {
		return models.LinkMatch{}, false
	}
	end := len(rest)
	for j, r := range rest {
		if unicode.IsSpace(r) || r == '<' || r == '>' || r == '"' || r == '\'' {
			end = j
			break
		}
	}
	url := rest[:end]

	trimming := true
	for trimming && len(url) > 0 {
		last := url[len(url)-1]
		switch {
		case strings.ContainsRune(".,;:!?]}", rune(last)):
			url = url[:len(url)-1]
		case last == ')' && strings.Count(url, ")") > strings.Count(url, "("):
			url = url[:len(url)-1]
		default:
			trimming = false
		}
	}
	if url == "" || url == "http://" || url == "https://" {
		return models.LinkMatch{}, false
	}
	return models.LinkMatch{Start: i, Raw: url, URL: url, Format: models.FormatPlain}, true
}

// AdjacentAnnotation scans a bounded window of text starting at offset for
// an archived-copy link (markdown or HTML). The markdown form is consumed
// with the same balanced-paren scanner as ordinary links, so an archive URL
// that itself contains parentheses spans the whole annotation. The second
// return is false when no annotation immediately follows.
func AdjacentAnnotation(text string, offset int) (models.Annotation, bool) {
	if offset < 0 || offset >= len(text) {
		return models.Annotation{}, false
	}
	window := text[offset:]
	if len(window) > annotationLookahead {
		window = window[:annotationLookahead]
	}
	i := 0
	for i < len(window) && (window[i] == ' ' || window[i] == '\t') {
		i++
	}
	if i == len(window) {
		return models.Annotation{}, false
	}
	switch window[i] {
	case '[':
		m, ok := matchMarkdown(window, i)
		if !ok {
			return models.Annotation{}, false
		}
		ts, ok := snapshotTimestamp(m.URL)
		if !ok {
			return models.Annotation{}, false
		}
		return models.Annotation{Start: offset, Raw: window[:m.End()], Timestamp: ts}, true
	case '<':
		if m := annotationHTMLRe.FindStringSubmatch(window[i:]); m != nil {
			return models.Annotation{Start: offset, Raw: window[:i] + m[0], Timestamp: m[1]}, true
		}
	}
	return models.Annotation{}, false
}

// snapshotTimestamp extracts the capture timestamp from an archive snapshot
// URL: fourteen digits or the wildcard sentinel between /web/ and the
// original URL. Any other target is not an annotation.
func snapshotTimestamp(target string) (string, bool) {
	rest, ok := strings.CutPrefix(target, "https://web.archive.org/web/")
	if !ok {
		rest, ok = strings.CutPrefix(target, "http://web.archive.org/web/")
	}
	if !ok {
		return "", false
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", false
	}
	ts := rest[:slash]
	if ts == models.TimestampWildcard {
		return ts, true
	}
	if len(ts) != len(models.TimestampLayout) {
		return "", false
	}
	for _, r := range ts {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return ts, true
}

func firstNonEmpty(groups []string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}
