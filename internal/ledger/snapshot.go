package ledger

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/starford/algiz/internal/apperr"
	"github.com/starford/algiz/internal/models"
)

// Format identifies a ledger snapshot file format.
type Format string

// Snapshot formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var csvHeader = []string{"url", "filePath", "timestamp", "error", "retryCount"}

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("ledger: unknown snapshot format %q", s)
	}
}

// DetectFormat picks a format from a file extension, defaulting to JSON.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

// Export writes entries to w in the given format.
func Export(w io.Writer, format Format, entries []models.FailedArchive) error {
	switch format {
	case FormatCSV:
		return exportCSV(w, entries)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []models.FailedArchive{}
		}
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("ledger: export json: %w", err)
		}
		return nil
	}
}

func exportCSV(w io.Writer, entries []models.FailedArchive) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("ledger: export csv: %w", err)
	}
	for _, e := range entries {
		rec := []string{
			e.URL,
			e.FilePath,
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Error,
			strconv.Itoa(e.RetryCount),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("ledger: export csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("ledger: export csv: %w", err)
	}
	return nil
}

// Import parses a snapshot from r. A snapshot that does not parse reports
// apperr.ErrMalformedSnapshot; callers abort the retry for that file rather
// than operate on a partial read.
func Import(r io.Reader, format Format) ([]models.FailedArchive, error) {
	switch format {
	case FormatCSV:
		return importCSV(r)
	default:
		var entries []models.FailedArchive
		if err := json.NewDecoder(r).Decode(&entries); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrMalformedSnapshot, err)
		}
		return entries, nil
	}
}

func importCSV(r io.Reader) ([]models.FailedArchive, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrMalformedSnapshot, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records[0]) != len(csvHeader) || !strings.EqualFold(records[0][0], "url") {
		return nil, fmt.Errorf("%w: unexpected csv header", apperr.ErrMalformedSnapshot)
	}

	var out []models.FailedArchive
	for _, rec := range records[1:] {
		ts, err := time.Parse(time.RFC3339, rec[2])
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp %q", apperr.ErrMalformedSnapshot, rec[2])
		}
		retries, err := strconv.Atoi(rec[4])
		if err != nil {
			return nil, fmt.Errorf("%w: bad retry count %q", apperr.ErrMalformedSnapshot, rec[4])
		}
		out = append(out, models.FailedArchive{
			URL:        rec[0],
			FilePath:   rec[1],
			Timestamp:  ts,
			Error:      rec[3],
			RetryCount: retries,
		})
	}
	return out, nil
}

// ReadSnapshot loads a snapshot file, detecting the format by extension.
func ReadSnapshot(path string) ([]models.FailedArchive, Format, error) {
	format := DetectFormat(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, format, fmt.Errorf("ledger: open snapshot: %w", err)
	}
	defer f.Close()
	entries, err := Import(f, format)
	return entries, format, err
}

// WriteSnapshot persists entries back to path in the given format. A
// drained snapshot removes the file entirely rather than writing an empty
// one.
func WriteSnapshot(path string, format Format, entries []models.FailedArchive) error {
	if len(entries) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("ledger: remove drained snapshot: %w", err)
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ledger: create snapshot: %w", err)
	}
	defer f.Close()
	return Export(f, format, entries)
}
