// Package wayback talks to the Internet Archive's Save Page Now v2 API and
// its CDX query API. One archival attempt walks a small state machine:
// submit, then poll the returned job until it reports success or error, or
// the poll budget is exhausted. Rate-limited and duplicate-capture
// responses are not failures: they downgrade to a best-effort lookup of the
// latest existing snapshot.
package wayback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/algiz/internal/models"
	"github.com/starford/algiz/internal/pattern"
)

// snapshotHost is the public host snapshot URLs are rendered on. The
// transport base URL may point elsewhere (a proxy, a self-hosted gateway,
// a test server), but annotations written into documents always reference
// the canonical archive host so later passes recognize and skip them.
const snapshotHost = "https://web.archive.org"

// Archiver is the interface the orchestrator and retry pass depend on.
// Consumers should depend on this interface rather than the concrete
// *Client type to facilitate testing with stubs.
type Archiver interface {
	// Archive submits url for capture and blocks until a terminal outcome.
	Archive(ctx context.Context, url string) models.ArchiveResult
	// LatestSnapshot returns the newest known capture timestamp for url,
	// or false when none is known. It never fails: any transport or parse
	// problem reads as "no snapshot".
	LatestSnapshot(ctx context.Context, url string) (string, bool)
}

var _ Archiver = (*Client)(nil)

// Options configures a Client.
type Options struct {
	// BaseURL is the API endpoint for SPN2 and CDX requests; it defaults
	// to https://web.archive.org. Snapshot URLs handed back to callers are
	// always rendered on the canonical host, whatever the endpoint.
	BaseURL string
	AccessKey  string
	SecretKey  string
	HTTPClient *http.Client
	Logger     *slog.Logger

	// RequestDelay is waited unconditionally before every external call.
	// This is pacing to respect provider rate limits, not backoff.
	RequestDelay   time.Duration
	MaxPollRetries int

	CaptureScreenshot bool
	CaptureAll        bool
	CaptureOutlinks   bool
	ForceGet          bool
	JSTimeoutSeconds  int

	// FreshnessDays > 0 asks the service to skip the capture when a
	// snapshot younger than the window already exists.
	FreshnessDays int

	// Substitutions are applied to every URL before submission.
	Substitutions []models.SubstitutionRule
}

// Client implements Archiver against the live service.
type Client struct {
	baseURL        string
	accessKey      string
	secretKey      string
	httpClient     *http.Client
	logger         *slog.Logger
	requestDelay   time.Duration
	maxPollRetries int
	screenshot     bool
	captureAll     bool
	outlinks       bool
	forceGet       bool
	jsTimeout      int
	freshnessDays  int
	subs           []models.SubstitutionRule

	now func() time.Time
}

// New creates a Client from opts, filling in defaults.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://web.archive.org"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPollRetries := opts.MaxPollRetries
	if maxPollRetries <= 0 {
		maxPollRetries = 12
	}
	return &Client{
		baseURL:        baseURL,
		accessKey:      opts.AccessKey,
		secretKey:      opts.SecretKey,
		httpClient:     httpClient,
		logger:         logger,
		requestDelay:   opts.RequestDelay,
		maxPollRetries: maxPollRetries,
		screenshot:     opts.CaptureScreenshot,
		captureAll:     opts.CaptureAll,
		outlinks:       opts.CaptureOutlinks,
		forceGet:       opts.ForceGet,
		jsTimeout:      opts.JSTimeoutSeconds,
		freshnessDays:  opts.FreshnessDays,
		subs:           opts.Substitutions,
		now:            time.Now,
	}
}

type saveResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type statusResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	OriginalURL string `json:"original_url"`
	StatusExt   string `json:"status_ext"`
	Message     string `json:"message"`
}

var duplicateRe = regexp.MustCompile(`(?i)same snapshot|already been captured|capture.*recently`)

// Archive submits rawURL (after substitution rules) and drives the job to a
// terminal outcome. HTTP 429 and duplicate-capture responses downgrade to a
// rate-limited outcome carrying the newest existing snapshot, or the
// wildcard snapshot URL when none is known; they are never hard failures.
func (c *Client) Archive(ctx context.Context, rawURL string) models.ArchiveResult {
	target := pattern.ApplyRules(rawURL, c.subs, c.logger)

	if err := c.pace(ctx); err != nil {
		return failed(err.Error())
	}

	form := url.Values{}
	form.Set("url", target)
	form.Set("capture_outlinks", boolField(c.outlinks))
	form.Set("capture_screenshot", boolField(c.screenshot))
	form.Set("force_get", boolField(c.forceGet))
	form.Set("capture_all", boolField(c.captureAll))
	form.Set("skip_first_archive", "1")
	if c.jsTimeout > 0 {
		form.Set("js_behavior_timeout", strconv.Itoa(c.jsTimeout))
	}
	if c.freshnessDays > 0 {
		form.Set("if_not_archived_within", strconv.Itoa(c.freshnessDays*24*60*60))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/save/", strings.NewReader(form.Encode()))
	if err != nil {
		return failed(fmt.Sprintf("build submit request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failed(fmt.Sprintf("submit: %v", err))
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return c.rateLimited(ctx, target)
	}
	if readErr != nil {
		return failed(fmt.Sprintf("submit: read response: %v", readErr))
	}
	if resp.StatusCode != http.StatusOK {
		return failed(fmt.Sprintf("submit: unexpected status %d", resp.StatusCode))
	}

	var sr saveResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return failed(fmt.Sprintf("submit: decode response: %v", err))
	}
	if sr.JobID == "" {
		if duplicateRe.MatchString(sr.Message) {
			return c.rateLimited(ctx, target)
		}
		if sr.Message != "" {
			return failed(sr.Message)
		}
		return failed("submit: no job id in response")
	}

	c.logger.Debug("wayback: capture submitted",
		slog.String("url", target),
		slog.String("job_id", sr.JobID))

	return c.poll(ctx, sr.JobID, target)
}

// poll checks job status until success, error, or the retry budget runs
// out. Transient transport failures count against the same budget.
func (c *Client) poll(ctx context.Context, jobID, target string) models.ArchiveResult {
	for attempt := 0; attempt <= c.maxPollRetries; attempt++ {
		if err := c.pace(ctx); err != nil {
			return failed(err.Error())
		}

		st, err := c.jobStatus(ctx, jobID)
		if err != nil {
			c.logger.Warn("wayback: poll failed",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()))
			continue
		}

		switch st.Status {
		case "success":
			ts := st.Timestamp
			if ts == "" {
				ts = c.now().UTC().Format(models.TimestampLayout)
			}
			original := st.OriginalURL
			if original == "" {
				original = target
			}
			return models.ArchiveResult{
				Status:     models.StatusArchived,
				ArchiveURL: fmt.Sprintf("%s/web/%s/%s", snapshotHost, ts, original),
			}
		case "error":
			detail := st.StatusExt
			if detail == "" {
				detail = st.Message
			}
			if detail == "" {
				detail = "capture failed"
			}
			return failed(detail)
		}
		// Still pending: try again.
	}
	return failed(fmt.Sprintf("timed out after %d status checks", c.maxPollRetries+1))
}

func (c *Client) jobStatus(ctx context.Context, jobID string) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/save/status/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("wayback: build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wayback: status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wayback: status: unexpected status %d", resp.StatusCode)
	}
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("wayback: status: decode: %w", err)
	}
	return &st, nil
}

// rateLimited builds the outcome for a throttled or duplicate submission:
// the newest known snapshot if the CDX index has one, otherwise the
// wildcard snapshot URL. The link still gets an annotation either way.
func (c *Client) rateLimited(ctx context.Context, target string) models.ArchiveResult {
	if ts, ok := c.LatestSnapshot(ctx, target); ok {
		return models.ArchiveResult{
			Status:     models.StatusRateLimited,
			ArchiveURL: fmt.Sprintf("%s/web/%s/%s", snapshotHost, ts, target),
		}
	}
	return models.ArchiveResult{
		Status:     models.StatusRateLimited,
		ArchiveURL: fmt.Sprintf("%s/web/%s/%s", snapshotHost, models.TimestampWildcard, target),
	}
}

// LatestSnapshot queries the CDX index for the newest HTTP 200 capture of
// target. It swallows every failure mode and reports absence instead.
func (c *Client) LatestSnapshot(ctx context.Context, target string) (string, bool) {
	if err := c.pace(ctx); err != nil {
		return "", false
	}

	q := url.Values{}
	q.Set("url", target)
	q.Set("output", "json")
	q.Set("fl", "timestamp")
	q.Set("filter", "statuscode:200")
	q.Set("sort", "reverse")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cdx/search/cdx?"+q.Encode(), nil)
	if err != nil {
		return "", false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return "", false
	}
	if len(rows) < 2 || len(rows[1]) < 1 {
		return "", false
	}
	ts := rows[1][0]
	if len(ts) != len(models.TimestampLayout) {
		return "", false
	}
	return ts, true
}

// pace waits the configured inter-request delay. Every external call is
// preceded by this wait, regardless of how the previous call went.
func (c *Client) pace(ctx context.Context) error {
	if c.requestDelay <= 0 {
		return nil
	}
	t := time.NewTimer(c.requestDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) authHeader() string {
	return fmt.Sprintf("LOW %s:%s", c.accessKey, c.secretKey)
}

func failed(detail string) models.ArchiveResult {
	return models.ArchiveResult{Status: models.StatusFailed, Detail: detail}
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
