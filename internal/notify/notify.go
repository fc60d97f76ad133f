// Package notify handles user-facing reporting of archival runs: console
// output for CLI invocations and a pluggable interface for other surfaces.
package notify

import (
	"fmt"

	"github.com/starford/algiz/internal/models"
)

// Link event kinds.
const (
	KindArchived = "archived"
	KindFailed   = "failed"
	KindSkipped  = "skipped"
)

// Notifier receives progress and summary events from the orchestrator.
// Implementations must be cheap: they are called inline from the single
// processing thread.
type Notifier interface {
	RunStarted(runID, scope string)
	Link(kind, path, url, detail string)
	RunCompleted(summary models.RunSummary)
}

// Nop discards every event.
type Nop struct{}

func (Nop) RunStarted(string, string) {}

func (Nop) Link(string, string, string, string) {}

func (Nop) RunCompleted(models.RunSummary) {}

// Console prints run progress to stdout.
type Console struct {
	// Verbose also prints archived and skipped links, not just failures.
	Verbose bool
}

func (c Console) RunStarted(runID, scope string) {
	fmt.Printf("Archiving %s (run %s)...\n", scope, runID)
}

func (c Console) Link(kind, path, url, detail string) {
	switch kind {
	case KindFailed:
		if detail != "" {
			fmt.Printf("  FAILED  %s (%s): %s\n", url, path, detail)
		} else {
			fmt.Printf("  FAILED  %s (%s)\n", url, path)
		}
	case KindArchived:
		if c.Verbose {
			fmt.Printf("  archived %s (%s)\n", url, path)
		}
	case KindSkipped:
		if c.Verbose {
			fmt.Printf("  skipped  %s (%s)\n", url, path)
		}
	}
}

func (c Console) RunCompleted(s models.RunSummary) {
	fmt.Println("-------------------------------------------")
	fmt.Printf("Run %s complete: %d archived, %d failed, %d skipped across %d document(s).\n",
		s.RunID, s.Archived, s.Failed, s.Skipped, s.Documents)
	fmt.Println("-------------------------------------------")
}
