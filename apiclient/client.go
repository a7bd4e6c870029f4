// Package apiclient issues authenticated requests to the contractor backend.
// Every call carries a bearer credential and the session cookie; a 401 is
// answered with exactly one forced credential refresh and retry.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-contractor-session/credential"
	"github.com/jrsteele09/go-contractor-session/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "go-contractor-session"
	requestIDHeader  = "X-Request-ID"

	// maxErrorBody bounds how much of a failure body is read.
	maxErrorBody = 64 << 10
)

// CredentialSource hands out bearer credentials. *credential.Provider
// satisfies it.
type CredentialSource interface {
	GetValidCredential(ctx context.Context, forceRefresh bool) (credential.Credential, error)
}

// Interceptor inspects backend failures after the retry decision and may
// return a replacement error. Returning nil keeps the original.
type Interceptor interface {
	Intercept(ctx context.Context, failure *BackendError) error
}

// Client is the authenticated request client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	credentials  CredentialSource
	interceptors []Interceptor
	metrics      *metrics.Metrics
	userAgent    string
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Use NewHTTPClient so the session
// cookie is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithInterceptor(i Interceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, i)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func New(baseURL string, credentials CredentialSource, options ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		userAgent:   defaultUserAgent,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(defaultTimeout)
	}
	return c
}

// pendingRequest is one outbound call plus its retry state. refreshed
// flips once, which bounds the call to a single refresh-and-retry.
type pendingRequest struct {
	method    string
	path      string
	payload   []byte
	refreshed bool
}

// Call sends the request and returns the 2xx response. Non-2xx responses
// become *BackendError (or whatever an interceptor replaces it with) and
// transport failures become *NetworkError.
func (c *Client) Call(ctx context.Context, method, path string, body any) (*Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Call] encodeBody")
	}
	req := &pendingRequest{method: method, path: path, payload: payload}

	cred, err := c.credentials.GetValidCredential(ctx, false)
	if err != nil {
		return nil, err
	}

	for {
		resp, err := c.send(ctx, req, cred)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized && !req.refreshed {
			req.refreshed = true
			c.metrics.IncrementUnauthorizedRetry()
			log.Debug().Str("method", method).Str("path", path).Msg("Unauthorized, refreshing credential and retrying once")

			if cred, err = c.credentials.GetValidCredential(ctx, true); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, c.intercept(ctx, parseBackendError(resp.StatusCode, resp.Body))
		}
		return resp, nil
	}
}

// CallJSON is Call plus decoding of a JSON success body into out. A
// non-JSON body leaves out untouched.
func (c *Client) CallJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.Call(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || !resp.IsJSON() {
		return nil
	}
	return resp.Decode(out)
}

func (c *Client) send(ctx context.Context, req *pendingRequest, cred credential.Credential) (*Response, error) {
	var body io.Reader
	if req.payload != nil {
		body = bytes.NewReader(req.payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.send] NewRequestWithContext")
	}
	httpReq.Header.Set("Authorization", cred.BearerHeader())
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(requestIDHeader, uuid.New().String())
	if req.payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Method: req.method, Path: req.path, Err: err}
	}
	defer httpResp.Body.Close()

	reader := io.Reader(httpResp.Body)
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		reader = io.LimitReader(httpResp.Body, maxErrorBody)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &NetworkError{Method: req.method, Path: req.path, Err: err}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (c *Client) intercept(ctx context.Context, failure *BackendError) error {
	for _, i := range c.interceptors {
		if replaced := i.Intercept(ctx, failure); replaced != nil {
			return replaced
		}
	}
	return failure
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(body)
	}
}
