package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/reconweb/internal/scope"
)

const (
	// DefaultMaxBodySize is the body limit used when none is configured.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// defaultMaxRedirects applies when the HTTP client has no redirect policy.
	defaultMaxRedirects = 10
)

// Dispatcher issues scope-gated HTTP requests.
// It is safe for concurrent use.
type Dispatcher struct {
	client      *http.Client
	gate        scope.Gate
	headers     map[string]string
	limiter     *rate.Limiter
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the HTTP client used for requests.
// The client is copied; its redirect policy is wrapped with a scope check.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithDefaultHeaders sets headers sent with every request.
// Keys are canonicalized; per-request headers override them.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(d *Dispatcher) {
		for k, v := range headers {
			d.headers[textproto.CanonicalMIMEHeaderKey(k)] = v
		}
	}
}

// WithUserAgent sets the default User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(d *Dispatcher) {
		if userAgent != "" {
			d.headers["User-Agent"] = userAgent
		}
	}
}

// WithRateLimit limits outbound requests to rps requests per second.
// Zero or a negative value disables the limit.
func WithRateLimit(rps float64) Option {
	return func(d *Dispatcher) {
		if rps <= 0 {
			d.limiter = nil
			return
		}
		burst := max(1, int(math.Ceil(rps)))
		d.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxBodySize limits the number of body bytes read into a Response.
func WithMaxBodySize(n int64) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxBodySize = n
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a Dispatcher that consults gate before every request.
// A nil gate accepts every target.
func NewDispatcher(gate scope.Gate, opts ...Option) *Dispatcher {
	if gate == nil {
		gate = scope.All()
	}
	d := &Dispatcher{
		client:      &http.Client{Timeout: 30 * time.Second},
		gate:        gate,
		headers:     make(map[string]string),
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	// Redirects are requests too: never follow one out of scope.
	client := *d.client
	next := client.CheckRedirect
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !d.gate.InScope(req.URL.String()) {
			d.logger.Warn("redirect target is out of scope", "url", req.URL.String())
			return http.ErrUseLastResponse
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= defaultMaxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}
	d.client = &client

	return d
}

// Headers returns a copy of the default headers.
func (d *Dispatcher) Headers() map[string]string {
	return maps.Clone(d.headers)
}

// InScope reports whether target passes the Dispatcher's scope gate.
func (d *Dispatcher) InScope(target string) bool {
	return d.gate.InScope(target)
}

// Request builds a Request for rawURL from opts and dispatches it.
func (d *Dispatcher) Request(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	req := Request{URL: rawURL}
	for _, opt := range opts {
		opt(&req)
	}
	return d.Dispatch(ctx, req)
}

// Dispatch sends req and reads the response body.
//
// Out-of-scope targets produce a synthetic Response with OutOfScope set and
// a nil error; nothing is sent. Transport failures return a nil Response and
// an error wrapping ErrTransport. Any HTTP status is a normal Response.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, target, err := d.open(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return newOutOfScopeResponse(target), nil
	}
	defer resp.Body.Close()

	// One byte past the limit tells a body that fits from one that was cut.
	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body of %s: %w", ErrTransport, target, err)
	}
	truncated := int64(len(body)) > d.maxBodySize
	if truncated {
		body = body[:d.maxBodySize]
		d.logger.Warn("response body truncated", "url", target, "limit", d.maxBodySize)
	}

	elapsed := time.Since(start)
	d.logger.Debug("request completed",
		"method", req.method(),
		"url", target,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", elapsed,
	)

	return &Response{
		URL:        target,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Elapsed:    elapsed,
		Truncated:  truncated,
	}, nil
}

// open resolves the request URL, checks the scope and sends the request.
// It returns a nil *http.Response with a nil error when the target is out of
// scope. On success the caller must close the response body.
func (d *Dispatcher) open(ctx context.Context, req Request) (*http.Response, string, error) {
	u, err := buildURL(req.URL, req.Params)
	if err != nil {
		return nil, req.URL, err
	}
	target := u.String()

	if !d.gate.InScope(target) {
		d.logger.Warn("request target is out of scope", "url", target)
		return nil, target, nil
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method(), target, body)
	if err != nil {
		return nil, target, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	d.mergeHeaders(httpReq.Header, req.Headers)

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, target, fmt.Errorf("%w: %s: %w", ErrTransport, target, err)
		}
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.logger.Debug("request failed", "method", req.method(), "url", target, "error", err)
		return nil, target, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.method(), target, err)
	}
	return resp, target, nil
}

// mergeHeaders sets the default headers, then the custom ones. Custom keys
// are applied in sorted order so that two keys differing only in case
// resolve the same way on every call.
func (d *Dispatcher) mergeHeaders(dst http.Header, custom map[string]string) {
	for k, v := range d.headers {
		dst.Set(k, v)
	}
	for _, k := range slices.Sorted(maps.Keys(custom)) {
		dst.Set(k, custom[k])
	}
}

// buildURL parses rawURL and appends params to its query.
func buildURL(rawURL string, params url.Values) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidURL, rawURL)
	}
	if len(params) > 0 {
		query := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		u.RawQuery = query.Encode()
	}
	return u, nil
}
