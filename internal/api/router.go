package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/algiz/internal/archiver"
	"github.com/starford/algiz/internal/ledger"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// credentials gates the routes that submit captures.
func NewRouter(arch *archiver.Service, rec ledger.Recorder, authEnabled bool, token string, sseHandler http.Handler, credentials func() error) chi.Router {
	h := NewHandler(arch, rec, credentials)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Archival runs.
	r.Post("/archive/document", h.ArchiveDocument)
	r.Post("/archive/text", h.ArchiveText)
	r.Post("/archive/vault", h.ArchiveVault)

	// Failure ledger.
	r.Get("/failures", h.ListFailures)
	r.Get("/failures/export", h.ExportFailures)
	r.Post("/failures/retry", h.RetryFailures)
	r.Delete("/failures", h.ClearFailures)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
