// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"purchase-fulfillment/internal/common/errors"
)

// maxErrorBody bounds how much of a failed response is kept for logs.
const maxErrorBody = 4096

// Response is what callers may need from a successful call besides the body.
type Response struct {
	StatusCode int
	Header     http.Header
}

// Client talks JSON to one named upstream. Every failure comes back as a
// StandardError carrying that name.
type Client struct {
	service    string
	httpClient *http.Client
}

func NewClient(service string, timeout time.Duration) *Client {
	return &Client{
		service: service,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// DoJSON sends body (if non-nil) as JSON and decodes a 2xx response into out
// (if non-nil).
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, body, out interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, headers, out)
}

// PostForm sends form url-encoded and decodes a 2xx JSON response into out.
func (c *Client) PostForm(ctx context.Context, endpoint string, headers map[string]string, form url.Values, out interface{}) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req, headers, out)
}

func (c *Client) send(req *http.Request, headers map[string]string, out interface{}) (*Response, error) {
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
			return nil, errors.NewTimeoutError(c.service, err)
		}
		return nil, errors.NewExternalServiceError(c.service, err)
	}
	defer resp.Body.Close()

	result := &Response{StatusCode: resp.StatusCode, Header: resp.Header}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return result, c.statusError(req, resp.StatusCode, string(raw))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			stdErr := errors.NewExternalServiceError(c.service, fmt.Errorf("failed to decode response: %w", err))
			stdErr.Retryable = false
			return result, stdErr
		}
	}
	return result, nil
}

// statusError maps a non-2xx answer onto the error taxonomy. Rate limits and
// server errors are retryable; other client errors are not.
func (c *Client) statusError(req *http.Request, status int, body string) *errors.StandardError {
	detail := fmt.Sprintf("%s %s: status %d: %s", req.Method, req.URL.Path, status, body)

	var stdErr *errors.StandardError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		stdErr = errors.NewAuthenticationError(c.service + ": " + detail)
	case status == http.StatusNotFound:
		stdErr = errors.NewResourceNotFoundError(c.service, detail)
	case status == http.StatusConflict:
		stdErr = errors.NewConflictError(c.service, detail)
	default:
		stdErr = errors.NewExternalServiceError(c.service, stderrors.New(detail))
		stdErr.Retryable = status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
	}
	return stdErr.WithMetadata("statusCode", status)
}
