package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

// HTTPClient sends JSON requests to one base URL, retrying on 429 and 5xx.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	headers http.Header
}

type ClientOptions struct {
	BaseURL  string
	RetryMax int
	Timeout  time.Duration
	Headers  http.Header
}

func NewHTTPClient(opts ClientOptions) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	client := rc.StandardClient()
	client.Timeout = opts.Timeout

	headers := opts.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	return &HTTPClient{client: client, baseURL: opts.BaseURL, headers: headers}
}

// Do sends a request. payload, when non-nil, is encoded as the JSON body.
func (c *HTTPClient) Do(ctx context.Context, method, endpoint string, query url.Values, payload any) (*Response, error) {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().
		Str("method", method).
		Str("url", target).
		Msg("making HTTP request")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().
			Str("method", method).
			Str("url", target).
			Err(err).
			Msg("HTTP request failed")
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return c.handleResponse(resp)
}

func (c *HTTPClient) handleResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug().
		Int("status_code", resp.StatusCode).
		Int("body_length", len(body)).
		Msg("received HTTP response")

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) UnmarshalJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// StatusError is a non-2xx answer. Message comes from a JSON "message" field
// of the body when present.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("http status %d", e.StatusCode)
}

func statusError(r *Response) *StatusError {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(r.Body, &body)
	return &StatusError{StatusCode: r.StatusCode, Message: body.Message}
}
