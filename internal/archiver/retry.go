package archiver

import (
	"context"
	"log/slog"

	"github.com/starford/algiz/internal/grammar"
	"github.com/starford/algiz/internal/ledger"
	"github.com/starford/algiz/internal/locate"
	"github.com/starford/algiz/internal/models"
	"github.com/starford/algiz/internal/notify"
)

// RetryOptions configures a retry pass. An empty SnapshotPath retries the
// live ledger; otherwise entries are read from the snapshot file and the
// updated list is persisted back to it in the same format (the file is
// deleted when the list drains).
type RetryOptions struct {
	SnapshotPath string
	Force        bool
}

// RetryFailures replays previously failed archive attempts. Entries whose
// document already carries a fresh annotation (added by a later, unrelated
// run) are silently dropped without calling the archival service; the rest
// are submitted with no freshness gate, since each entry already represents
// a known failure. Successful retries are removed from the ledger and the
// original document is patched best-effort.
func (s *Service) RetryFailures(ctx context.Context, opts RetryOptions) (models.RunSummary, error) {
	r := s.newRun(opts.Force)

	var (
		entries  []models.FailedArchive
		format   ledger.Format
		fromFile = opts.SnapshotPath != ""
		err      error
	)
	if fromFile {
		entries, format, err = ledger.ReadSnapshot(opts.SnapshotPath)
		if err != nil {
			return r.sum, err
		}
		s.notify.RunStarted(r.sum.RunID, "retry "+opts.SnapshotPath)
	} else {
		entries, err = s.rec.All()
		if err != nil {
			return r.sum, err
		}
		s.notify.RunStarted(r.sum.RunID, "retry")
	}

	var remaining []models.FailedArchive
	for i, e := range entries {
		if ctx.Err() != nil {
			remaining = append(remaining, entries[i:]...)
			break
		}

		if !opts.Force && r.annotationFresh(e) {
			r.dropEntry(e)
			r.sum.Skipped++
			continue
		}

		res := s.client.Archive(ctx, e.URL)
		if res.Status == models.StatusFailed {
			e.RetryCount++
			e.Error = res.Detail
			e.Timestamp = s.now()
			// Snapshot entries may not exist in the live ledger, so they
			// go through the upsert; live entries bump in place.
			var uerr error
			if fromFile {
				uerr = s.rec.Append(e)
			} else {
				uerr = s.rec.IncrementRetry(e.URL, e.FilePath, res.Detail, e.Timestamp)
			}
			if uerr != nil {
				s.logger.Warn("archiver: retry ledger update failed",
					slog.String("url", e.URL),
					slog.String("error", uerr.Error()))
			}
			remaining = append(remaining, e)
			r.sum.Failed++
			s.notify.Link(notify.KindFailed, e.FilePath, e.URL, res.Detail)
			continue
		}

		r.dropEntry(e)
		r.patchAfterRetry(e, res.ArchiveURL)
		r.sum.Archived++
		s.notify.Link(notify.KindArchived, e.FilePath, e.URL, "")
	}

	if fromFile {
		if err := ledger.WriteSnapshot(opts.SnapshotPath, format, remaining); err != nil {
			return r.sum, err
		}
	}
	s.notify.RunCompleted(r.sum)
	return r.sum, nil
}

func (r *run) dropEntry(e models.FailedArchive) {
	if err := r.rec.Remove(e.URL, e.FilePath); err != nil {
		r.logger.Warn("archiver: ledger remove failed",
			slog.String("url", e.URL),
			slog.String("error", err.Error()))
	}
}

// annotationFresh reports whether the entry's document already carries a
// fresh annotation for its URL. Any read or locate miss reads as "not
// fresh", so the entry is retried rather than dropped.
func (r *run) annotationFresh(e models.FailedArchive) bool {
	if e.FilePath == "" {
		return false
	}
	data, err := r.store.Read(e.FilePath)
	if err != nil {
		return false
	}
	text := string(data)
	m, off := locate.Locate(text, e.URL, 0)
	if off == locate.NotFound {
		return false
	}
	ann, ok := grammar.AdjacentAnnotation(text, m.End())
	if !ok {
		return false
	}
	d := EvaluateFreshness(ann.Timestamp, true, r.profile.FreshnessDays, r.now())
	return !d.ShouldProcess
}

// patchAfterRetry is the best-effort document edit after a successful
// retry: the document or the link may be long gone, which is logged and
// otherwise ignored.
func (r *run) patchAfterRetry(e models.FailedArchive, archiveURL string) {
	if e.FilePath == "" {
		return
	}
	doc := &fileDocument{store: r.store, rel: e.FilePath}
	text, err := doc.load()
	if err != nil {
		r.logger.Warn("archiver: retry patch skipped",
			slog.String("path", e.FilePath),
			slog.String("error", err.Error()))
		return
	}
	patched, changed := r.patchText(text, e.URL, 0, archiveURL)
	if !changed {
		return
	}
	if err := doc.save(patched); err != nil {
		r.logger.Warn("archiver: retry patch write failed",
			slog.String("path", e.FilePath),
			slog.String("error", err.Error()))
	}
}
