// Package locate re-finds a link in possibly-mutated text. A link's offset
// is captured before a slow network round trip; by the time a patch must be
// applied the document may have shifted or the link may be gone. The only
// safe strategy is to re-scan the latest text and never trust a stale
// offset across a suspension point.
package locate

import (
	"github.com/starford/algiz/internal/grammar"
	"github.com/starford/algiz/internal/models"
)

// NotFound is returned by Locate when the target URL no longer occurs in
// the text. It is an expected outcome (the user deleted the link), not an
// error.
const NotFound = -1

// Locate returns the current match for targetURL in latestText that lies
// nearest to the approximate pre-mutation offset. Matching is by exact
// string equality against the URL as it appears in the document; documents
// may contain duplicate links to the same URL, and nearest-by-original-
// position is the disambiguation heuristic.
func Locate(latestText, targetURL string, approxOffset int) (models.LinkMatch, int) {
	best := models.LinkMatch{}
	bestDist := -1
	for _, m := range grammar.FindLinks(latestText) {
		if m.URL != targetURL {
			continue
		}
		d := m.Start - approxOffset
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best = m
			bestDist = d
		}
	}
	if bestDist < 0 {
		return models.LinkMatch{}, NotFound
	}
	return best, best.Start
}
