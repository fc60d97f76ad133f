package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/starford/algiz/internal/archiver"
	"github.com/starford/algiz/internal/ledger"
	"github.com/starford/algiz/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	arch        *archiver.Service
	rec         ledger.Recorder
	credentials func() error
}

// NewHandler creates a new Handler. credentials is consulted before any
// run that submits captures; read-only routes work without credentials.
func NewHandler(arch *archiver.Service, rec ledger.Recorder, credentials func() error) *Handler {
	if credentials == nil {
		credentials = func() error { return nil }
	}
	return &Handler{arch: arch, rec: rec, credentials: credentials}
}

// ArchiveDocument handles POST /api/archive/document.
//
//	@Summary		Archive every eligible link in one vault document
//	@Tags			archive
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ArchiveDocumentRequest	true	"Document to process"
//	@Success		200		{object}	RunSummary
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archive/document [post]
func (h *Handler) ArchiveDocument(w http.ResponseWriter, r *http.Request) {
	var req ArchiveDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.credentials(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}

	sum, err := h.arch.ArchiveDocument(r.Context(), req.Path, req.Force)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("archive document failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ArchiveText handles POST /api/archive/text.
//
//	@Summary		Archive links in a raw text blob and return the patched text
//	@Tags			archive
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ArchiveTextRequest	true	"Text to process"
//	@Success		200		{object}	ArchiveTextResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archive/text [post]
func (h *Handler) ArchiveText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req ArchiveTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	if err := h.credentials(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}

	patched, sum := h.arch.ArchiveText(r.Context(), req.Text, req.Force)
	writeJSON(w, http.StatusOK, ArchiveTextResponse{Text: patched, Summary: sum})
}

// ArchiveVault handles POST /api/archive/vault.
//
//	@Summary		Archive every eligible link across the whole vault
//	@Tags			archive
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ArchiveVaultRequest	false	"Run options"
//	@Success		200		{object}	RunSummary
//	@Security		BearerAuth
//	@Router			/archive/vault [post]
func (h *Handler) ArchiveVault(w http.ResponseWriter, r *http.Request) {
	var req ArchiveVaultRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}
	if err := h.credentials(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}

	sum, err := h.arch.ArchiveVault(r.Context(), req.Force)
	if err != nil {
		slog.Error("archive vault failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ListFailures handles GET /api/failures.
//
//	@Summary		List failure-ledger entries
//	@Tags			failures
//	@Produce		json
//	@Success		200	{object}	FailureListResponse
//	@Security		BearerAuth
//	@Router			/failures [get]
func (h *Handler) ListFailures(w http.ResponseWriter, r *http.Request) {
	entries, err := h.rec.All()
	if err != nil {
		slog.Error("list failures failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if entries == nil {
		entries = []models.FailedArchive{}
	}
	writeJSON(w, http.StatusOK, FailureListResponse{Failures: entries, Total: len(entries)})
}

// ExportFailures handles GET /api/failures/export?format=json|csv.
//
//	@Summary		Export the failure ledger as a snapshot file
//	@Tags			failures
//	@Produce		json
//	@Param			format	query	string	false	"Snapshot format"	Enums(json, csv)
//	@Success		200
//	@Security		BearerAuth
//	@Router			/failures/export [get]
func (h *Handler) ExportFailures(w http.ResponseWriter, r *http.Request) {
	format := ledger.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		var err error
		format, err = ledger.ParseFormat(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown format"))
			return
		}
	}
	entries, err := h.rec.All()
	if err != nil {
		slog.Error("export failures failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if format == ledger.FormatCSV {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	if err := ledger.Export(w, format, entries); err != nil {
		slog.Error("export failures failed", slog.String("error", err.Error()))
	}
}

// RetryFailures handles POST /api/failures/retry.
//
//	@Summary		Replay failed archive attempts from the ledger
//	@Tags			failures
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RetryRequest	false	"Retry options"
//	@Success		200		{object}	RunSummary
//	@Security		BearerAuth
//	@Router			/failures/retry [post]
func (h *Handler) RetryFailures(w http.ResponseWriter, r *http.Request) {
	var req RetryRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}
	if err := h.credentials(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}

	sum, err := h.arch.RetryFailures(r.Context(), archiver.RetryOptions{Force: req.Force})
	if err != nil {
		slog.Error("retry failures failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ClearFailures handles DELETE /api/failures.
//
//	@Summary		Clear the failure ledger
//	@Tags			failures
//	@Success		204
//	@Security		BearerAuth
//	@Router			/failures [delete]
func (h *Handler) ClearFailures(w http.ResponseWriter, r *http.Request) {
	if err := h.rec.Clear(); err != nil {
		slog.Error("clear failures failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
