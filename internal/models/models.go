// Package models defines the domain types for Algiz.
package models

import "time"

// LinkFormat identifies the syntactic form a link was found in.
type LinkFormat string

// Link formats, richest first.
const (
	FormatMarkdown  LinkFormat = "markdown"
	FormatHTMLA     LinkFormat = "html-anchor"
	FormatHTMLImage LinkFormat = "html-image"
	FormatPlain     LinkFormat = "plain"
)

// TimestampLayout is the wire format of archive capture timestamps.
const TimestampLayout = "20060102150405"

// TimestampWildcard is the sentinel for an unknown capture time.
const TimestampWildcard = "*"

// LinkMatch is one located link occurrence. Offsets are valid only against
// the exact text blob the match was computed from; a match must never be
// reused across a document mutation.
type LinkMatch struct {
	Start  int
	Raw    string
	URL    string
	Format LinkFormat
}

// End returns the offset just past the matched text.
func (m LinkMatch) End() int { return m.Start + len(m.Raw) }

// Annotation is an existing archived-copy link found immediately after a
// LinkMatch. Timestamp is in TimestampLayout form, TimestampWildcard, or
// empty when the archive URL carries no timestamp at all.
type Annotation struct {
	Start     int // offset of the annotation (including leading whitespace)
	Raw       string
	Timestamp string
}

// End returns the offset just past the annotation text.
func (a Annotation) End() int { return a.Start + len(a.Raw) }

// ArchiveStatus classifies the outcome of one archival attempt.
type ArchiveStatus string

// Archival outcomes.
const (
	StatusArchived    ArchiveStatus = "archived"
	StatusRateLimited ArchiveStatus = "rate_limited"
	StatusFailed      ArchiveStatus = "failed"
)

// ArchiveResult is the outcome of attempting to archive one URL.
// ArchiveURL is set for StatusArchived and StatusRateLimited (the exact
// snapshot, or a best-effort fallback). Detail is set for StatusFailed.
type ArchiveResult struct {
	Status     ArchiveStatus
	ArchiveURL string
	Detail     string
}

// FailedArchive is one durable ledger entry. At most one entry exists per
// (URL, FilePath) pair; repeat failures overwrite the previous detail.
type FailedArchive struct {
	URL        string    `json:"url"`
	FilePath   string    `json:"filePath"`
	Timestamp  time.Time `json:"timestamp"`
	Error      string    `json:"error"`
	RetryCount int       `json:"retryCount"`
}

// SubstitutionRule is one ordered find/replace transform applied to a URL
// before submission.
type SubstitutionRule struct {
	Find    string `yaml:"find" json:"find"`
	Replace string `yaml:"replace" json:"replace"`
	IsRegex bool   `yaml:"is_regex" json:"isRegex"`
}

// Profile is one named configuration bundle. The orchestrator receives a
// profile by value per invocation; mutating the source config mid-run has
// no effect on an in-flight pass.
type Profile struct {
	DateFormat     string             `yaml:"date_format" json:"dateFormat"`
	Label          string             `yaml:"label" json:"label"`
	IgnoreURLs     []string           `yaml:"ignore_urls" json:"ignoreUrls"`
	IncludeURLs    []string           `yaml:"include_urls" json:"includeUrls"`
	IncludePaths   []string           `yaml:"include_paths" json:"includePaths"`
	IncludeContent []string           `yaml:"include_content" json:"includeContent"`
	Substitutions  []SubstitutionRule `yaml:"substitutions" json:"substitutions"`
	FreshnessDays  int                `yaml:"freshness_days" json:"freshnessDays"`
}

// DocumentMetadata is a lightweight representation returned by vault listings.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunSummary aggregates per-link outcomes of one orchestrator pass.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Documents int    `json:"documents"`
	Archived  int    `json:"archived"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Add folds another summary into s (vault passes accumulate per document).
func (s *RunSummary) Add(o RunSummary) {
	s.Documents += o.Documents
	s.Archived += o.Archived
	s.Failed += o.Failed
	s.Skipped += o.Skipped
}
