package wayback

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/algiz/internal/models"
)

func testClient(srv *httptest.Server) *Client {
	return New(Options{
		BaseURL:        srv.URL,
		AccessKey:      "ak",
		SecretKey:      "sk",
		HTTPClient:     srv.Client(),
		MaxPollRetries: 3,
	})
}

func TestArchive_SuccessAfterPoll(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/save/":
			if got := r.Header.Get("Authorization"); got != "LOW ak:sk" {
				t.Errorf("Authorization = %q", got)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatal(err)
			}
			if got := r.PostForm.Get("url"); got != "https://example.com" {
				t.Errorf("submitted url = %q", got)
			}
			if got := r.PostForm.Get("skip_first_archive"); got != "1" {
				t.Errorf("skip_first_archive = %q", got)
			}
			fmt.Fprint(w, `{"job_id":"job-1"}`)
		case r.URL.Path == "/save/status/job-1":
			polls++
			if polls < 2 {
				fmt.Fprint(w, `{"status":"pending"}`)
				return
			}
			fmt.Fprint(w, `{"status":"success","timestamp":"20240601000000","original_url":"https://example.com"}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	res := testClient(srv).Archive(context.Background(), "https://example.com")
	if res.Status != models.StatusArchived {
		t.Fatalf("Status = %q, Detail = %q", res.Status, res.Detail)
	}
	want := "https://web.archive.org/web/20240601000000/https://example.com"
	if res.ArchiveURL != want {
		t.Errorf("ArchiveURL = %q, want %q", res.ArchiveURL, want)
	}
}

func TestArchive_SnapshotHostIndependentOfBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/save/" {
			fmt.Fprint(w, `{"job_id":"job-1"}`)
			return
		}
		fmt.Fprint(w, `{"status":"success","timestamp":"20240601000000","original_url":"https://example.com"}`)
	}))
	defer srv.Close()

	// The endpoint is the test server, but the snapshot URL written into
	// documents must stay on the canonical host so later passes recognize
	// it as an annotation.
	res := testClient(srv).Archive(context.Background(), "https://example.com")
	if res.Status != models.StatusArchived {
		t.Fatalf("Status = %q, Detail = %q", res.Status, res.Detail)
	}
	if !strings.HasPrefix(res.ArchiveURL, "https://web.archive.org/web/") {
		t.Errorf("ArchiveURL = %q, want canonical host", res.ArchiveURL)
	}
}

func TestArchive_JobError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/save/" {
			fmt.Fprint(w, `{"job_id":"job-1"}`)
			return
		}
		fmt.Fprint(w, `{"status":"error","status_ext":"error:blocked-url"}`)
	}))
	defer srv.Close()

	res := testClient(srv).Archive(context.Background(), "https://example.com")
	if res.Status != models.StatusFailed {
		t.Fatalf("Status = %q", res.Status)
	}
	if res.Detail != "error:blocked-url" {
		t.Errorf("Detail = %q", res.Detail)
	}
}

func TestArchive_PollBudgetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/save/" {
			fmt.Fprint(w, `{"job_id":"job-1"}`)
			return
		}
		fmt.Fprint(w, `{"status":"pending"}`)
	}))
	defer srv.Close()

	res := testClient(srv).Archive(context.Background(), "https://example.com")
	if res.Status != models.StatusFailed {
		t.Fatalf("Status = %q", res.Status)
	}
	if !strings.Contains(res.Detail, "timed out after 4 status checks") {
		t.Errorf("Detail = %q", res.Detail)
	}
}

func TestArchive_RateLimitedFallsBackToCDX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/save/":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/cdx/search/cdx":
			fmt.Fprint(w, `[["timestamp"],["20230515120000"]]`)
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	res := testClient(srv).Archive(context.Background(), "https://example.com")
	if res.Status != models.StatusRateLimited {
		t.Fatalf("Status = %q", res.Status)
	}
	want := "https://web.archive.org/web/20230515120000/https://example.com"
	if res.ArchiveURL != want {
		t.Errorf("ArchiveURL = %q, want %q", res.ArchiveURL, want)
	}
}

func TestArchive_RateLimitedNoSnapshotUsesWildcard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/save/":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/cdx/search/cdx":
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	res := testClient(srv).Archive(context.Background(), "https://example.com")
	if res.Status != models.StatusRateLimited {
		t.Fatalf("Status = %q", res.Status)
	}
	want := "https://web.archive.org/web/*/https://example.com"
	if res.ArchiveURL != want {
		t.Errorf("ArchiveURL = %q, want %q", res.ArchiveURL, want)
	}
}

func TestArchive_DuplicateCaptureTreatedAsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/save/":
			fmt.Fprint(w, `{"message":"The same snapshot had been made 2 minutes ago."}`)
		case "/cdx/search/cdx":
			fmt.Fprint(w, `[["timestamp"],["20240601000000"]]`)
		}
	}))
	defer srv.Close()

	res := testClient(srv).Archive(context.Background(), "https://example.com")
	if res.Status != models.StatusRateLimited {
		t.Fatalf("Status = %q, Detail = %q", res.Status, res.Detail)
	}
}

func TestArchive_SubmitErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":"You need to be logged in."}`)
	}))
	defer srv.Close()

	res := testClient(srv).Archive(context.Background(), "https://example.com")
	if res.Status != models.StatusFailed {
		t.Fatalf("Status = %q", res.Status)
	}
	if res.Detail != "You need to be logged in." {
		t.Errorf("Detail = %q", res.Detail)
	}
}

func TestArchive_SubstitutionAppliedBeforeSubmit(t *testing.T) {
	var submitted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/save/" {
			_ = r.ParseForm()
			submitted = r.PostForm.Get("url")
			fmt.Fprint(w, `{"job_id":"job-1"}`)
			return
		}
		fmt.Fprint(w, `{"status":"success","timestamp":"20240601000000","original_url":"https://example.com/amp"}`)
	}))
	defer srv.Close()

	c := New(Options{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Substitutions: []models.SubstitutionRule{
			{Find: "m.example.com", Replace: "example.com"},
		},
	})
	c.Archive(context.Background(), "https://m.example.com/amp")
	if submitted != "https://example.com/amp" {
		t.Errorf("submitted = %q", submitted)
	}
}

func TestLatestSnapshot_ParsesCDXRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "1" {
			t.Errorf("limit = %q", got)
		}
		fmt.Fprint(w, `[["timestamp"],["20230515120000"]]`)
	}))
	defer srv.Close()

	ts, ok := testClient(srv).LatestSnapshot(context.Background(), "https://example.com")
	if !ok || ts != "20230515120000" {
		t.Errorf("ts = %q, ok = %v", ts, ok)
	}
}

func TestLatestSnapshot_MalformedRows(t *testing.T) {
	cases := []string{`[]`, `not json`, `[["timestamp"],["short"]]`}
	for _, body := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))
		if _, ok := testClient(srv).LatestSnapshot(context.Background(), "https://example.com"); ok {
			t.Errorf("body %q should read as no snapshot", body)
		}
		srv.Close()
	}
}

func TestArchive_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"job_id":"job-1"}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := testClient(srv).Archive(ctx, "https://example.com")
	if res.Status != models.StatusFailed {
		t.Errorf("Status = %q", res.Status)
	}
}
