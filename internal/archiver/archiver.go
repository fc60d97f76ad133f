// Package archiver coordinates link archival for one text blob, one
// document, or a whole vault. For every eligible link it consults a
// per-run result cache or submits to the archival client, then re-locates
// the link in the current document content before patching, because the
// document may have been edited during the network wait. Hard failures go
// to the failure ledger; the run always continues with the remaining links.
package archiver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/algiz/internal/grammar"
	"github.com/starford/algiz/internal/ledger"
	"github.com/starford/algiz/internal/locate"
	"github.com/starford/algiz/internal/models"
	"github.com/starford/algiz/internal/notify"
	"github.com/starford/algiz/internal/pattern"
	"github.com/starford/algiz/internal/storage"
	"github.com/starford/algiz/internal/wayback"
)

// Service is the archival orchestrator. The profile is captured by value
// at construction: mutating the source configuration mid-run has no effect
// on an in-flight pass.
type Service struct {
	store   storage.Provider
	client  wayback.Archiver
	rec     ledger.Recorder
	profile models.Profile
	logger  *slog.Logger
	notify  notify.Notifier
	now     func() time.Time
}

// New creates an orchestrator. A nil logger defaults to slog.Default and a
// nil notifier discards events.
func New(store storage.Provider, client wayback.Archiver, rec ledger.Recorder, profile models.Profile, logger *slog.Logger, n notify.Notifier) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Service{
		store:   store,
		client:  client,
		rec:     rec,
		profile: profile,
		logger:  logger,
		notify:  n,
		now:     time.Now,
	}
}

// run holds the state of one orchestrator invocation. The result cache
// lives here and nowhere else: it is never consulted across runs.
type run struct {
	*Service
	force bool
	cache map[string]cacheEntry
	sum   models.RunSummary
}

func (s *Service) newRun(force bool) *run {
	return &run{
		Service: s,
		force:   force,
		cache:   make(map[string]cacheEntry),
		sum:     models.RunSummary{RunID: uuid.NewString()},
	}
}

// document abstracts the content being patched so text-blob and file-backed
// scopes share one algorithm. load is called again before every patch: a
// suspension point sits between scanning and patching, and offsets measured
// before it must never be trusted.
type document interface {
	path() string
	load() (string, error)
	save(text string) error
}

type fileDocument struct {
	store storage.Provider
	rel   string
}

func (d *fileDocument) path() string { return d.rel }

func (d *fileDocument) load() (string, error) {
	data, err := d.store.Read(d.rel)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *fileDocument) save(text string) error {
	return d.store.Write(d.rel, []byte(text))
}

type textDocument struct {
	text *string
}

func (d *textDocument) path() string { return "" }

func (d *textDocument) load() (string, error) { return *d.text, nil }

func (d *textDocument) save(text string) error {
	*d.text = text
	return nil
}

// ArchiveText processes a raw text blob (a selection handed over by a host
// editor) and returns the patched text alongside the run summary.
func (s *Service) ArchiveText(ctx context.Context, text string, force bool) (string, models.RunSummary) {
	r := s.newRun(force)
	s.notify.RunStarted(r.sum.RunID, "text")
	if err := r.processDocument(ctx, &textDocument{text: &text}); err != nil {
		s.logger.Warn("archiver: text pass interrupted", slog.String("error", err.Error()))
	}
	s.notify.RunCompleted(r.sum)
	return text, r.sum
}

// ArchiveDocument processes a single vault document.
func (s *Service) ArchiveDocument(ctx context.Context, path string, force bool) (models.RunSummary, error) {
	r := s.newRun(force)
	s.notify.RunStarted(r.sum.RunID, path)
	err := r.processDocument(ctx, &fileDocument{store: s.store, rel: path})
	s.notify.RunCompleted(r.sum)
	return r.sum, err
}

// ArchiveVault processes every eligible document in the vault, one at a
// time. A document must satisfy all configured include dimensions (path
// patterns and content literals) to be processed at all. A document whose
// I/O fails is abandoned for the pass; the remaining documents continue.
func (s *Service) ArchiveVault(ctx context.Context, force bool) (models.RunSummary, error) {
	r := s.newRun(force)
	s.notify.RunStarted(r.sum.RunID, "vault")

	metas, err := s.store.List("")
	if err != nil {
		return r.sum, err
	}
	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return r.sum, err
		}
		ok, err := r.documentEligible(meta.Path)
		if err != nil {
			s.logger.Warn("archiver: skipping unreadable document",
				slog.String("path", meta.Path),
				slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}
		if err := r.processDocument(ctx, &fileDocument{store: s.store, rel: meta.Path}); err != nil {
			if ctx.Err() != nil {
				return r.sum, err
			}
			s.logger.Warn("archiver: document abandoned",
				slog.String("path", meta.Path),
				slog.String("error", err.Error()))
		}
	}
	s.notify.RunCompleted(r.sum)
	return r.sum, nil
}

// documentEligible applies the vault-wide include filters.
func (r *run) documentEligible(path string) (bool, error) {
	if len(r.profile.IncludePaths) > 0 && !pattern.MatchesAny(path, r.profile.IncludePaths) {
		return false, nil
	}
	if len(r.profile.IncludeContent) > 0 {
		data, err := r.store.Read(path)
		if err != nil {
			return false, err
		}
		if !pattern.ContainsAny(string(data), r.profile.IncludeContent) {
			return false, nil
		}
	}
	return true, nil
}

// processDocument runs the per-link algorithm over one document. Links are
// resolved strictly one at a time, so by the time link N's patch applies,
// link N-1's patch has already landed and relocation against current
// content is well-defined.
func (r *run) processDocument(ctx context.Context, doc document) error {
	r.sum.Documents++
	text, err := doc.load()
	if err != nil {
		return err
	}

	for _, m := range grammar.FindLinks(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.eligible(m.URL) {
			r.skip(doc.path(), m.URL, "filtered")
			continue
		}
		if !r.force {
			ann, ok := grammar.AdjacentAnnotation(text, m.End())
			d := EvaluateFreshness(ann.Timestamp, ok, r.profile.FreshnessDays, r.now())
			if !d.ShouldProcess {
				r.skip(doc.path(), m.URL, "already archived")
				continue
			}
		}

		res := r.archive(ctx, m.URL)
		if res.Status == models.StatusFailed {
			r.recordFailure(doc.path(), m.URL, res.Detail)
			continue
		}

		changed, err := r.patchDocument(doc, m, res.ArchiveURL)
		if err != nil {
			return err
		}
		if changed {
			r.sum.Archived++
			r.notify.Link(notify.KindArchived, doc.path(), m.URL, "")
		} else {
			r.skip(doc.path(), m.URL, "link gone or already fresh")
		}
	}
	return nil
}

// eligible applies the per-URL filters. Archive-service URLs themselves are
// never processed, so annotations inserted by a previous pass are not
// re-archived.
func (r *run) eligible(url string) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	if strings.Contains(url, "web.archive.org/web/") {
		return false
	}
	if pattern.MatchesAny(url, r.profile.IgnoreURLs) {
		return false
	}
	if len(r.profile.IncludeURLs) > 0 && !pattern.MatchesAny(url, r.profile.IncludeURLs) {
		return false
	}
	return true
}

// archive returns the cached result for url when one is still valid,
// otherwise asks the client. Failed results are never cached: a later
// occurrence of the same URL deserves a fresh attempt.
func (r *run) archive(ctx context.Context, url string) models.ArchiveResult {
	if e, ok := r.cache[url]; ok && e.valid(r.profile.FreshnessDays, r.now()) {
		return e.result
	}
	res := r.client.Archive(ctx, url)
	if res.Status != models.StatusFailed {
		r.cache[url] = cacheEntry{result: res, at: r.now()}
	}
	return res
}

// patchDocument re-reads the document, re-locates the link, and applies
// the annotation edit. A false return with nil error means the patch was
// safely skipped (the link vanished, or a concurrent edit already left a
// fresh annotation).
func (r *run) patchDocument(doc document, m models.LinkMatch, archiveURL string) (bool, error) {
	text, err := doc.load()
	if err != nil {
		return false, err
	}
	patched, changed := r.patchText(text, m.URL, m.Start, archiveURL)
	if !changed {
		return false, nil
	}
	if err := doc.save(patched); err != nil {
		return false, err
	}
	return true, nil
}

// patchText inserts or replaces the annotation for url in text. The link
// is re-located by identity and proximity, and adjacency is re-judged at
// the live location: the world may have changed again during the wait.
func (r *run) patchText(text, url string, approxOffset int, archiveURL string) (string, bool) {
	live, off := locate.Locate(text, url, approxOffset)
	if off == locate.NotFound {
		return text, false
	}
	label := renderLabel(r.profile, r.now())
	insert := renderAnnotation(live.Format, archiveURL, label)

	if ann, ok := grammar.AdjacentAnnotation(text, live.End()); ok {
		if !r.force {
			d := EvaluateFreshness(ann.Timestamp, true, r.profile.FreshnessDays, r.now())
			if !d.ShouldProcess {
				return text, false
			}
		}
		return text[:ann.Start] + insert + text[ann.End():], true
	}
	return text[:live.End()] + insert + text[live.End():], true
}

func (r *run) skip(path, url, reason string) {
	r.sum.Skipped++
	r.notify.Link(notify.KindSkipped, path, url, reason)
}

func (r *run) recordFailure(path, url, detail string) {
	e := models.FailedArchive{
		URL:       url,
		FilePath:  path,
		Timestamp: r.now(),
		Error:     detail,
	}
	if err := r.rec.Append(e); err != nil {
		r.logger.Warn("archiver: ledger append failed",
			slog.String("url", url),
			slog.String("error", err.Error()))
	}
	r.sum.Failed++
	r.notify.Link(notify.KindFailed, path, url, detail)
}
