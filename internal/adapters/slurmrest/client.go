// Package slurmrest implements the REST port of the clusterview backend:
// per-host job snapshots, targeted job fetches, and the thin job-control
// plumbing (output, script, cancel, watchers).
package slurmrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/clusterview/clusterview/internal/core"
	"github.com/clusterview/clusterview/internal/domain/model"
	apperrors "github.com/clusterview/clusterview/internal/errors"
	"github.com/clusterview/clusterview/internal/observability/statsd"
)

// Options configures the REST client.
type Options struct {
	BaseURL    string       // Required: e.g. "https://clusterview.example.com"
	APIKey     string       // Optional: sent as X-API-Key on every request
	HTTPClient *http.Client // Optional: defaults to a 15s-timeout client
	Logger     *slog.Logger // Optional: structured logger
	Metrics    statsd.Sink  // Optional: metrics sink
}

// Client is the concrete SchedulerAPI implementation.
type Client struct {
	base    *url.URL
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	metrics statsd.Sink
}

var _ core.SchedulerAPI = (*Client)(nil)

// NewClient validates the base URL and constructs a Client.
func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", base.Scheme)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    base,
		apiKey:  opts.APIKey,
		http:    hc,
		logger:  logger.With("component", "slurmrest"),
		metrics: opts.Metrics,
	}, nil
}

// Hosts lists the configured SLURM hosts.
func (c *Client) Hosts(ctx context.Context) ([]string, error) {
	var resp model.HostsResponse
	if err := c.get(ctx, "/api/hosts", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Hosts, nil
}

// Status fetches the full job snapshot for one host.
func (c *Client) Status(ctx context.Context, hostname string, query model.StatusQuery) (*model.StatusResponse, error) {
	if hostname == "" {
		return nil, apperrors.Validation("hostname is required")
	}

	q := url.Values{}
	q.Set("host", hostname)
	if query.User != "" {
		q.Set("user", query.User)
	}
	if query.Since != "" {
		q.Set("since", query.Since)
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.State != "" {
		q.Set("state", string(query.State))
	}
	if query.ActiveOnly {
		q.Set("active_only", "true")
	}
	if query.CompletedOnly {
		q.Set("completed_only", "true")
	}

	var resp model.StatusResponse
	if err := c.get(ctx, "/api/status", q, hostname, &resp); err != nil {
		return nil, err
	}
	if resp.Hostname == "" {
		resp.Hostname = hostname
	}
	// The server omits hostname on embedded records; stamp it so keys are
	// complete.
	for i := range resp.Jobs {
		if resp.Jobs[i].Hostname == "" {
			resp.Jobs[i].Hostname = hostname
		}
	}
	return &resp, nil
}

// Job fetches one job directly, outside the snapshot cadence.
func (c *Client) Job(ctx context.Context, jobID, hostname string) (*model.JobRecord, error) {
	if jobID == "" || hostname == "" {
		return nil, apperrors.Validation("job id and hostname are required")
	}

	q := url.Values{}
	q.Set("host", hostname)

	var rec model.JobRecord
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(jobID), q, hostname, &rec); err != nil {
		return nil, err
	}
	if rec.Hostname == "" {
		rec.Hostname = hostname
	}
	return &rec, nil
}

// JobOutput fetches the captured stdout/stderr for one job.
func (c *Client) JobOutput(ctx context.Context, jobID, hostname string) (string, error) {
	q := url.Values{}
	q.Set("host", hostname)
	var resp model.JobOutputResponse
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(jobID)+"/output", q, hostname, &resp); err != nil {
		return "", err
	}
	return resp.Output, nil
}

// JobScript fetches the submission script for one job.
func (c *Client) JobScript(ctx context.Context, jobID, hostname string) (string, error) {
	q := url.Values{}
	q.Set("host", hostname)
	var resp model.JobScriptResponse
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(jobID)+"/script", q, hostname, &resp); err != nil {
		return "", err
	}
	return resp.Script, nil
}

// CancelJob asks the scheduler to cancel one job. Errors surface directly to
// the caller; retrying is the caller's decision.
func (c *Client) CancelJob(ctx context.Context, jobID, hostname string) (*model.CancelResponse, error) {
	q := url.Values{}
	q.Set("host", hostname)
	var resp model.CancelResponse
	if err := c.post(ctx, "/api/jobs/"+url.PathEscape(jobID)+"/cancel", q, hostname, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateWatcher registers an output watcher for one job.
func (c *Client) CreateWatcher(ctx context.Context, req model.CreateWatcherRequest) error {
	if req.JobID == "" || req.Hostname == "" {
		return apperrors.Validation("job id and hostname are required")
	}
	if req.Pattern == "" {
		return apperrors.Validation("pattern is required")
	}
	return c.post(ctx, "/api/watchers", nil, req.Hostname, req, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, hostname string, out any) error {
	return c.do(ctx, http.MethodGet, path, query, hostname, nil, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, hostname string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, query, hostname, body, out)
}

// do issues one request and decodes the response, translating transport and
// status failures into the AppError taxonomy.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, hostname string, body, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeValidation, "encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.observe(method, path, start, err)
	if err != nil {
		return classifyTransportError(err, hostname, method+" "+path)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, hostname, method+" "+path); err != nil {
		return err
	}
	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.WithHost(
			apperrors.Wrapf(err, apperrors.ErrCodeProtocol, "decode %s %s response", method, path),
			hostname)
	}
	return nil
}

// classifyTransportError maps a transport failure into the error taxonomy:
// deadline and net timeouts become Timeout, cancellation becomes Canceled,
// everything else is a Network failure.
func classifyTransportError(err error, hostname, op string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return apperrors.WithHost(apperrors.Wrap(err, apperrors.ErrCodeCanceled, op+" canceled"), hostname)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.WithHost(apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "%s timed out", op), hostname)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.WithHost(apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "%s timed out", op), hostname)
	}
	return apperrors.WithHost(apperrors.Wrapf(err, apperrors.ErrCodeNetwork, "%s failed", op), hostname)
}

// checkStatus maps non-2xx responses into the error taxonomy.
func checkStatus(resp *http.Response, hostname, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	// Read a bounded amount of body for the error message.
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(detail))
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.WithHost(apperrors.Auth(msg), hostname)
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.WithHost(apperrors.NotFound(msg), hostname)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return apperrors.WithHost(apperrors.Timeoutf("%s: %s", op, msg), hostname)
	default:
		return apperrors.WithHost(apperrors.Internalf("%s: unexpected status %d: %s", op, resp.StatusCode, msg), hostname)
	}
}

func (c *Client) observe(method, path string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	tags := map[string]string{"method": method, "path": path}
	c.metrics.Timing("rest.request.duration", time.Since(start), tags)
	if err != nil {
		c.metrics.Count("rest.request.errors", 1, tags)
	}
}
