// Package client is a typed HTTP client for the CollabNotes REST API.
//
// [Client] mirrors the server's endpoint structure: authentication under
// /api/auth, notes under /api/notes, public read-only notes under
// /api/public/notes and account settings under /api/users. Request and
// response bodies use the entities of
// [github.com/collabnotes/collabnotes.go/pkg/models].
//
// # Authentication
//
// Authenticated calls carry the bearer token installed with
// [Client.SetAuthToken]. The client never installs a token on its own; the
// session store does that after a login or a successful restore. An
// authenticated call made without a token fails with [KindMissingCredential]
// and no request is sent.
//
// # Errors
//
// Every failure is an [*Error] with an explicit [Kind]. The kind is taken from
// the optional "code" field of the error body, falling back to the status code
// and the endpoint: a 404 from the share endpoint means the target user does
// not exist, and a 400 from it means the note was shared with its owner.
// errors.Is matches the sentinels of
// [github.com/collabnotes/collabnotes.go/pkg/constants].
//
// # Usage
//
//	c := client.New("http://localhost:8000", client.WithTimeout(10*time.Second))
//	tok, err := c.Login(ctx, models.Credentials{Email: "ada@example.com", Password: "secret"})
//	if err != nil {
//		return err
//	}
//	c.SetAuthToken(tok.AccessToken)
//	notes, err := c.ListNotes(ctx, models.NoteFilter{Visibility: "PRIVATE"})
//
// Client instances are safe for concurrent use by multiple goroutines.
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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/collabnotes/collabnotes.go/pkg/constants"
)

// RequestIDHeader carries a fresh UUID on every request.
const RequestIDHeader = "X-Request-ID"

// Client provides strongly-typed access to the CollabNotes REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger

	mu        sync.RWMutex
	authToken string
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit spaces requests to at most perSecond per second. Requests are
// delayed, never dropped. Zero or less disables the limiter.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for baseURL, which should include the scheme and host
// (e.g. "http://localhost:8000") and no API path prefix.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: constants.DefaultTimeout,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAuthToken sets the bearer token for authenticated calls. An empty token
// clears it.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// request describes one call to the API.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	// auth requires a bearer token.
	auth bool
}

// doRequest performs an HTTP request with proper headers.
func (c *Client) doRequest(ctx context.Context, r request) (*http.Response, string, error) {
	if c.baseURL == "" {
		return nil, "", NewError(r.op, KindTransport, constants.ErrNoBaseURL)
	}

	token := c.AuthToken()
	if r.auth && token == "" {
		return nil, "", NewError(r.op, KindMissingCredential, constants.ErrNoToken)
	}

	var bodyReader io.Reader
	if r.body != nil {
		jsonBody, err := json.Marshal(r.body)
		if err != nil {
			return nil, "", NewError(r.op, KindGeneric, fmt.Errorf("failed to marshal request body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, bodyReader)
	if err != nil {
		return nil, "", NewError(r.op, KindGeneric, fmt.Errorf("failed to create request: %w", err))
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, requestID, &Error{Op: r.op, Kind: KindTransport, RequestID: requestID, Err: err}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("method", r.method).
			Str("path", r.path).
			Str("request_id", requestID).
			Msg("request failed")
		return nil, requestID, &Error{Op: r.op, Kind: KindTransport, RequestID: requestID, Err: err}
	}
	c.logger.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", requestID).
		Msg("request")
	return resp, requestID, nil
}

// decodeResponse decodes the JSON response into target, or turns an error
// status into an *Error.
func decodeResponse(op, requestID string, resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		detail, code := parseErrorBody(data)
		kind, ok := kindFromCode(code)
		if !ok {
			kind = kindFromStatus(op, resp.StatusCode)
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return &Error{
			Op:         op,
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Detail:     detail,
			Code:       code,
			RequestID:  requestID,
		}
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return &Error{
				Op:         op,
				Kind:       KindDecode,
				StatusCode: resp.StatusCode,
				RequestID:  requestID,
				Err:        fmt.Errorf("failed to decode response: %w", err),
			}
		}
	}

	return nil
}

// call runs r and decodes the response into target.
func (c *Client) call(ctx context.Context, r request, target any) error {
	resp, requestID, err := c.doRequest(ctx, r)
	if err != nil {
		return err
	}
	return decodeResponse(r.op, requestID, resp, target)
}

// ServiceInfo is the API root document.
type ServiceInfo struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
}

// Info fetches the API root document. It needs no credential.
func (c *Client) Info(ctx context.Context) (*ServiceInfo, error) {
	var result ServiceInfo
	if err := c.call(ctx, request{op: OpInfo, method: http.MethodGet, path: "/"}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
