package api

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
	"sync"
	"time"

	"storefront/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 15 * time.Second

	headerRequestID   = "X-Request-ID"
	headerCartSession = "X-Cart-Session"
)

// Credentials supplies the identity attached to outgoing requests.
type Credentials interface {
	Token() string
	CartSessionID() string
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// SkipUnauthorizedHook leaves a 401 to the caller, e.g. a login attempt.
	SkipUnauthorizedHook bool
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter

	mu             sync.RWMutex
	creds          Credentials
	onUnauthorized func(ctx context.Context)
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTransport installs a RoundTripper such as the offline cache.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithRateLimit paces outgoing calls to rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			burst := int(rps * 2)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// ----------------- Constructor -----------------

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

// OnUnauthorized registers the global 401 policy.
func (c *Client) OnUnauthorized(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// HTTPClient exposes the underlying client so tests can swap the transport.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// ----------------- Verbs -----------------

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// ----------------- Do -----------------

func (c *Client) Do(ctx context.Context, r Request, out any) error {
	reqID := logger.RequestIDFrom(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
		ctx = logger.WithRequestID(ctx, reqID)
	}

	log := logger.FromCtx(ctx).With(
		zap.String("method", r.Method),
		zap.String("path", r.Path),
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			log.Warn("request dropped by rate limiter", zap.Error(err))
			return &Error{Kind: ErrNetwork, Err: err}
		}
	}

	var body io.Reader
	if r.Body != nil {
		jsonBody, err := json.Marshal(r.Body)
		if err != nil {
			log.Error("failed to marshal request body", zap.Error(err))
			return &Error{Kind: ErrValidation, Err: err}
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.endpoint(r.Path, r.Query), body)
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return &Error{Kind: ErrUnknown, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerRequestID, reqID)
	c.attachCredentials(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("backend request failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return &Error{Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read response body", zap.Error(err))
		return &Error{Kind: ErrNetwork, Status: resp.StatusCode, Err: err}
	}

	log = log.With(
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := classify(resp.StatusCode, bodyBytes)
		if resp.StatusCode >= 500 {
			log.Error("backend returned error", zap.String("code", apiErr.Code))
		} else {
			log.Warn("backend rejected request", zap.String("code", apiErr.Code))
		}

		if resp.StatusCode == http.StatusUnauthorized && !r.SkipUnauthorizedHook {
			c.unauthorized(ctx)
		}
		return apiErr
	}

	log.Info("backend request completed")

	if out == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		log.Error("failed decoding response", zap.Error(err))
		return &Error{Kind: ErrServer, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) attachCredentials(req *http.Request) {
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()
	if creds == nil {
		return
	}

	if token := creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		return
	}
	if sid := creds.CartSessionID(); sid != "" {
		req.Header.Set(headerCartSession, sid)
	}
}

func (c *Client) unauthorized(ctx context.Context) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn(ctx)
	}
}

// ----------------- Classification -----------------

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func classify(status int, body []byte) *Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	msg := eb.Error
	if msg == "" {
		msg = eb.Message
	}

	e := &Error{Status: status, Code: eb.Code, Message: msg}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = ErrNotAuthenticated
	case status == http.StatusNotFound:
		e.Kind = ErrNotFound
	case isOutOfStock(eb):
		e.Kind = ErrOutOfStock
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status == http.StatusConflict:
		e.Kind = ErrValidation
	case status == http.StatusTooManyRequests:
		e.Kind = ErrNetwork
	case status >= 500:
		e.Kind = ErrServer
		// 5xx bodies are not user-facing
		e.Message = ""
	default:
		e.Kind = ErrUnknown
	}
	return e
}

func isOutOfStock(eb errorBody) bool {
	if eb.Code == CodeOutOfStock {
		return true
	}
	text := strings.ToLower(eb.Error + " " + eb.Message)
	return strings.Contains(text, "out of stock") || strings.Contains(text, "insufficient stock")
}

// IsTimeout reports whether err came from the request deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
