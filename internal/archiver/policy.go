package archiver

import (
	"time"

	"github.com/starford/algiz/internal/models"
)

// Decision is the freshness verdict for one link.
type Decision struct {
	ShouldProcess   bool
	ReplaceExisting bool
}

// EvaluateFreshness decides what to do about an existing annotation
// timestamp given the freshness window:
//
//   - no annotation (hasAnnotation false): process, plain insertion
//   - wildcard or unparseable timestamp: age unknown, treat as stale
//   - younger than the window: skip entirely
//   - older than the window: stale, process and replace
//
// A window of zero or less means annotations never go stale: any parseable
// timestamp is fresh. Force mode bypasses this policy entirely at the call
// sites.
func EvaluateFreshness(timestamp string, hasAnnotation bool, windowDays int, now time.Time) Decision {
	if !hasAnnotation {
		return Decision{ShouldProcess: true}
	}
	if timestamp == models.TimestampWildcard || timestamp == "" {
		return Decision{ShouldProcess: true, ReplaceExisting: true}
	}
	captured, err := time.Parse(models.TimestampLayout, timestamp)
	if err != nil {
		return Decision{ShouldProcess: true, ReplaceExisting: true}
	}
	if windowDays <= 0 {
		return Decision{}
	}
	if now.Sub(captured) < time.Duration(windowDays)*24*time.Hour {
		return Decision{}
	}
	return Decision{ShouldProcess: true, ReplaceExisting: true}
}

// cacheEntry is one per-run archival result. The cache lives only for the
// lifetime of a single orchestrator invocation and is never persisted.
type cacheEntry struct {
	result models.ArchiveResult
	at     time.Time
}

// valid reports whether the entry may still short-circuit a submission.
// Entries expire on the same window the freshness policy uses; a window of
// zero keeps them for the whole run.
func (e cacheEntry) valid(windowDays int, now time.Time) bool {
	if e.result.Status == models.StatusFailed {
		return false
	}
	if windowDays <= 0 {
		return true
	}
	return now.Sub(e.at) < time.Duration(windowDays)*24*time.Hour
}
