package wialon

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

	"go.uber.org/zap"
)

const (
	ajaxPath = "/wialon/ajax.html"

	// codeInvalidSession is the provider error code for an expired or
	// unknown session id.
	codeInvalidSession = 1
)

// ErrAuthFailed indicates the login call returned no session id.
var ErrAuthFailed = errors.New("wialon: authorization failed")

// APIError is a provider-level error embedded in an otherwise valid
// HTTP 200 response body.
type APIError struct {
	Code   int    `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("wialon: api error %d (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("wialon: api error %d", e.Code)
}

// InvalidSession reports whether the error denotes an expired session.
func (e *APIError) InvalidSession() bool {
	return e.Code == codeInvalidSession
}

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client sends single Wialon RPC calls over HTTP. Session handling and
// retries live in Session; Client only speaks the wire envelope.
type Client struct {
	baseURL string
	client  HTTPDoer
	logger  *zap.Logger
}

// NewClient builds a client against the given Wialon host.
func NewClient(baseURL string, client HTTPDoer, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// NewDefaultHTTPClient returns *http.Client with timeout.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Call issues one RPC as a form-encoded POST {svc, params, sid} and returns
// the raw JSON body. A non-zero embedded error code is returned as *APIError
// alongside the body so callers can inspect the code.
func (c *Client) Call(ctx context.Context, svc string, params any, sid string) (json.RawMessage, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("wialon: encode params: %w", err)
	}

	form := url.Values{}
	form.Set("svc", svc)
	form.Set("params", string(payload))
	if sid != "" {
		form.Set("sid", sid)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ajaxPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("wialon request failed", zap.String("svc", svc), zap.Error(err))
		return nil, fmt.Errorf("wialon: %s: %w", svc, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wialon: %s: read body: %w", svc, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("wialon: %s: unexpected status %d", svc, resp.StatusCode)
	}

	if apiErr := decodeAPIError(body); apiErr != nil {
		return body, apiErr
	}
	return body, nil
}

// decodeAPIError probes an object body for the provider error convention.
// Array bodies (get_result_rows) never carry error codes.
func decodeAPIError(body []byte) *APIError {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var apiErr APIError
	if err := json.Unmarshal(trimmed, &apiErr); err != nil {
		return nil
	}
	if apiErr.Code == 0 {
		return nil
	}
	return &apiErr
}
