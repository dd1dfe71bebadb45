package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rollcall api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Conflict reports whether the write lost a race twice and may be resent.
func (e *APIError) Conflict() bool { return e.Status == http.StatusConflict }

// Client talks to the HTTP API. A scanning session uses it as both its
// dispatcher and its status reporter.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL. A nil hc gets a 10s timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) Submit(ctx context.Context, req types.EventRequest) (types.EventResponse, error) {
	var resp types.EventResponse
	err := c.do(ctx, http.MethodPost, "/v1/attendance/events", req, &resp)
	return resp, err
}

func (c *Client) Heartbeat(ctx context.Context, req types.ScannerHeartbeatRequest) (types.ScannerHeartbeatResponse, error) {
	var resp types.ScannerHeartbeatResponse
	err := c.do(ctx, http.MethodPost, "/v1/scanners/heartbeat", req, &resp)
	return resp, err
}

func (c *Client) Roster(ctx context.Context, siteID string) (types.Roster, error) {
	var resp types.Roster
	err := c.do(ctx, http.MethodGet, "/v1/sites/"+url.PathEscape(siteID)+"/roster", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb errorBody
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxRequestBody)).Decode(&eb); err == nil {
			apiErr.Code = eb.Error.Code
			apiErr.Message = eb.Error.Message
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
