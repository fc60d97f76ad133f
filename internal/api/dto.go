package api

import (
	"github.com/starford/algiz/internal/models"
)

// ArchiveDocumentRequest is the request body for archiving one document.
type ArchiveDocumentRequest struct {
	Path  string `json:"path" example:"notes/reading.md" validate:"required"`
	Force bool   `json:"force" example:"false"`
}

// ArchiveTextRequest is the request body for archiving a raw text blob.
type ArchiveTextRequest struct {
	Text  string `json:"text" validate:"required"`
	Force bool   `json:"force" example:"false"`
}

// ArchiveVaultRequest is the request body for a vault-wide run.
type ArchiveVaultRequest struct {
	Force bool `json:"force" example:"false"`
}

// RetryRequest is the request body for replaying ledger failures.
type RetryRequest struct {
	Force bool `json:"force" example:"false"`
}

// RunSummary is the per-run outcome response (aliased from the domain layer).
type RunSummary = models.RunSummary

// ArchiveTextResponse carries the patched text alongside the summary.
type ArchiveTextResponse struct {
	Text    string     `json:"text" validate:"required"`
	Summary RunSummary `json:"summary" validate:"required"`
}

// FailureListResponse wraps the ledger contents.
type FailureListResponse struct {
	Failures []models.FailedArchive `json:"failures" validate:"required"`
	Total    int                    `json:"total" example:"3" validate:"required"`
}
