package ledger

import (
	"fmt"
	"time"

	"github.com/starford/algiz/internal/models"
)

// Recorder defines the ledger operations the orchestrator and retry pass
// depend on. Consumers should depend on this interface rather than the
// concrete *Store type to facilitate testing with mocks.
type Recorder interface {
	Append(e models.FailedArchive) error
	All() ([]models.FailedArchive, error)
	Remove(url, filePath string) error
	IncrementRetry(url, filePath, detail string, at time.Time) error
	Clear() error
	Count() (int, error)
	Close() error
}

// Verify *Store satisfies Recorder at compile time.
var _ Recorder = (*Store)(nil)

// Append inserts a failure, or refreshes the timestamp and error detail of
// the existing entry for the same (url, file path). The retry counter never
// moves backwards: a fresh failure from a normal run keeps the existing
// count, while the retry protocol appends with an advanced count.
func (s *Store) Append(e models.FailedArchive) error {
	_, err := s.conn.Exec(`
		INSERT INTO failures (url, file_path, ts, error, retry_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url, file_path) DO UPDATE SET
			ts          = excluded.ts,
			error       = excluded.error,
			retry_count = MAX(failures.retry_count, excluded.retry_count)
	`, e.URL, e.FilePath, e.Timestamp, e.Error, e.RetryCount)
	if err != nil {
		return fmt.Errorf("ledger: append: %w", err)
	}
	return nil
}

// All returns every entry ordered by file path, then URL.
func (s *Store) All() ([]models.FailedArchive, error) {
	rows, err := s.conn.Query(`
		SELECT url, file_path, ts, error, retry_count
		FROM failures
		ORDER BY file_path, url
	`)
	if err != nil {
		return nil, fmt.Errorf("ledger: all: %w", err)
	}
	defer rows.Close()

	var out []models.FailedArchive
	for rows.Next() {
		var e models.FailedArchive
		if err := rows.Scan(&e.URL, &e.FilePath, &e.Timestamp, &e.Error, &e.RetryCount); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Remove deletes the entry for (url, filePath). Removing a missing entry is
// not an error.
func (s *Store) Remove(url, filePath string) error {
	if _, err := s.conn.Exec(`DELETE FROM failures WHERE url = ? AND file_path = ?`, url, filePath); err != nil {
		return fmt.Errorf("ledger: remove: %w", err)
	}
	return nil
}

// IncrementRetry bumps the retry counter and records the latest failure
// detail for an entry that failed again.
func (s *Store) IncrementRetry(url, filePath, detail string, at time.Time) error {
	_, err := s.conn.Exec(`
		UPDATE failures
		SET retry_count = retry_count + 1, error = ?, ts = ?
		WHERE url = ? AND file_path = ?
	`, detail, at, url, filePath)
	if err != nil {
		return fmt.Errorf("ledger: increment retry: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	if _, err := s.conn.Exec(`DELETE FROM failures`); err != nil {
		return fmt.Errorf("ledger: clear: %w", err)
	}
	return nil
}

// Count returns the number of entries.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM failures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger: count: %w", err)
	}
	return n, nil
}
