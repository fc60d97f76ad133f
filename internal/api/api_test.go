package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/algiz/internal/apperr"
	"github.com/starford/algiz/internal/archiver"
	"github.com/starford/algiz/internal/ledger"
	"github.com/starford/algiz/internal/models"
	"github.com/starford/algiz/internal/storage"
	"github.com/starford/algiz/internal/testutil"
)

// okClient archives every URL with a fixed snapshot timestamp.
type okClient struct{}

func (okClient) Archive(_ context.Context, url string) models.ArchiveResult {
	return models.ArchiveResult{
		Status:     models.StatusArchived,
		ArchiveURL: "https://web.archive.org/web/20240601000000/" + url,
	}
}

func (okClient) LatestSnapshot(context.Context, string) (string, bool) { return "", false }

func newAPI(t *testing.T, credentials func() error) (http.Handler, storage.Provider, *ledger.Store) {
	t.Helper()
	_, store := testutil.TestVault(t)
	rec := testutil.TestLedger(t)
	svc := archiver.New(store, okClient{}, rec, models.Profile{FreshnessDays: 90}, nil, nil)
	return NewRouter(svc, rec, false, "", nil, credentials), store, rec
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestArchiveDocument_OK(t *testing.T) {
	h, store, _ := newAPI(t, nil)
	if err := store.Write("doc.md", []byte("see [x](https://example.com) done")); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, h, http.MethodPost, "/archive/document", `{"path":"doc.md"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var sum models.RunSummary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Archived != 1 {
		t.Errorf("Archived = %d, want 1", sum.Archived)
	}

	data, _ := store.Read("doc.md")
	if !strings.Contains(string(data), "web.archive.org") {
		t.Errorf("document not patched: %q", data)
	}
}

func TestArchiveDocument_MissingPath(t *testing.T) {
	h, _, _ := newAPI(t, nil)
	w := doJSON(t, h, http.MethodPost, "/archive/document", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestArchiveDocument_NotFound(t *testing.T) {
	h, _, _ := newAPI(t, nil)
	w := doJSON(t, h, http.MethodPost, "/archive/document", `{"path":"missing.md"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestArchiveDocument_MissingCredentials(t *testing.T) {
	h, _, _ := newAPI(t, func() error { return apperr.ErrMissingCredentials })
	w := doJSON(t, h, http.MethodPost, "/archive/document", `{"path":"doc.md"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestArchiveText_OK(t *testing.T) {
	h, _, _ := newAPI(t, nil)
	w := doJSON(t, h, http.MethodPost, "/archive/text", `{"text":"see [x](https://example.com) done"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp ArchiveTextResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Text, "web.archive.org") {
		t.Errorf("text not patched: %q", resp.Text)
	}
	if resp.Summary.Archived != 1 {
		t.Errorf("Archived = %d, want 1", resp.Summary.Archived)
	}
}

func TestArchiveText_EmptyText(t *testing.T) {
	h, _, _ := newAPI(t, nil)
	w := doJSON(t, h, http.MethodPost, "/archive/text", `{"text":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestArchiveVault_OK(t *testing.T) {
	h, store, _ := newAPI(t, nil)
	_ = store.Write("a.md", []byte("[x](https://example.com/a)"))
	_ = store.Write("b.md", []byte("[y](https://example.com/b)"))

	w := doJSON(t, h, http.MethodPost, "/archive/vault", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var sum models.RunSummary
	_ = json.Unmarshal(w.Body.Bytes(), &sum)
	if sum.Documents != 2 || sum.Archived != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestListFailures_Empty(t *testing.T) {
	h, _, _ := newAPI(t, nil)
	w := doJSON(t, h, http.MethodGet, "/failures", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"failures":[]`) {
		t.Errorf("empty ledger must serialize as an array: %s", body)
	}
	if !strings.Contains(body, `"total":0`) {
		t.Errorf("total missing: %s", body)
	}
}

func TestExportFailures_CSV(t *testing.T) {
	h, _, rec := newAPI(t, nil)
	err := rec.Append(models.FailedArchive{URL: "https://example.com", FilePath: "doc.md", Timestamp: time.Now(), Error: "timeout"})
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, h, http.MethodGet, "/failures/export?format=csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "url,filePath,timestamp,error,retryCount") {
		t.Errorf("csv header missing: %s", w.Body.String())
	}
}

func TestExportFailures_UnknownFormat(t *testing.T) {
	h, _, _ := newAPI(t, nil)
	w := doJSON(t, h, http.MethodGet, "/failures/export?format=xml", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestClearFailures(t *testing.T) {
	h, _, _ := newAPI(t, nil)
	w := doJSON(t, h, http.MethodDelete, "/failures", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestRetryFailures_OK(t *testing.T) {
	h, _, _ := newAPI(t, nil)
	w := doJSON(t, h, http.MethodPost, "/failures/retry", `{"force":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, store := testutil.TestVault(t)
	rec := testutil.TestLedger(t)
	svc := archiver.New(store, okClient{}, rec, models.Profile{FreshnessDays: 90}, nil, nil)
	h := NewRouter(svc, rec, true, "secret", nil, nil)

	w := doJSON(t, h, http.MethodGet, "/failures", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/failures", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/failures", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
