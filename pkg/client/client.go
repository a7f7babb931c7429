package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stevedore-io/stevedore/pkg/catalog"
	"github.com/stevedore-io/stevedore/pkg/journal"
	"github.com/stevedore-io/stevedore/pkg/types"
)

// Client talks to a running scheduler daemon for the CLI.
type Client struct {
	base string
	http *http.Client
}

// New builds a client for the given base URL, e.g. http://127.0.0.1:8780.
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status int
	Kind   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Detail)
}

// Report pushes a capability report.
func (c *Client) Report(ctx context.Context, report *types.CapabilityReport) (*types.HostState, error) {
	var state types.HostState
	if err := c.do(ctx, http.MethodPost, "/v1/reports", report, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Place submits a placement request and returns the first dispatch.
func (c *Client) Place(ctx context.Context, spec *types.RequestSpec) (*types.Placement, error) {
	var p types.Placement
	if err := c.do(ctx, http.MethodPost, "/v1/placements", spec, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// OutcomeResult is the retry-machine transition an outcome caused.
type OutcomeResult struct {
	RequestID string           `json:"request_id"`
	State     string           `json:"state"`
	Placement *types.Placement `json:"placement,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// ReportOutcome delivers a worker verdict and returns the transition.
func (c *Client) ReportOutcome(ctx context.Context, o *types.Outcome) (*OutcomeResult, error) {
	var res OutcomeResult
	if err := c.do(ctx, http.MethodPost, "/v1/outcomes", o, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Backends lists every known backend, stale and disabled included.
func (c *Client) Backends(ctx context.Context) ([]*types.HostState, error) {
	var states []*types.HostState
	if err := c.do(ctx, http.MethodGet, "/v1/backends", nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// Backend fetches one backend's latest state including capabilities.
func (c *Client) Backend(ctx context.Context, host, pool string) (*types.HostState, error) {
	path := "/v1/backends/" + url.PathEscape(host)
	if pool != "" {
		path += "?pool=" + url.QueryEscape(pool)
	}
	var state types.HostState
	if err := c.do(ctx, http.MethodGet, path, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SetBackendDisabled disables or enables all pools of a host.
func (c *Client) SetBackendDisabled(ctx context.Context, host string, disabled bool) error {
	action := "enable"
	if disabled {
		action = "disable"
	}
	path := fmt.Sprintf("/v1/backends/%s/%s", url.PathEscape(host), action)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// AddVolume registers a placed volume in the catalog.
func (c *Client) AddVolume(ctx context.Context, rec *catalog.VolumeRecord) error {
	return c.do(ctx, http.MethodPost, "/v1/volumes", rec, nil)
}

// Decisions fetches the most recent journal entries, newest first.
func (c *Client) Decisions(ctx context.Context, limit int) ([]journal.Entry, error) {
	var entries []journal.Entry
	path := fmt.Sprintf("/v1/decisions?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
		var parsed struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
			apiErr.Detail = parsed.Error
			apiErr.Kind = parsed.Kind
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
