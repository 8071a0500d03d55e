package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// checkProxyTimeout is the timeout for checking if the proxy is available.
// We use a short timeout here because this is just a connectivity check,
// not an actual request through the proxy.
const checkProxyTimeout = 2 * time.Second

// DefaultMaxRedirects is the redirect limit of clients built by NewHTTPClient.
const DefaultMaxRedirects = 10

// Client provides outbound connectivity.
// It wraps either a direct dialer or a SOCKS5 dialer and provides methods
// for creating HTTP clients and raw TCP connections.
type Client struct {
	// proxyAddress is the SOCKS5 proxy address in "host:port" format.
	// Empty means direct connections.
	proxyAddress string

	// dialer is cached to avoid recreating it for each connection.
	dialer proxy.Dialer

	// timeout bounds each phase of an exchange: dialing, the TLS handshake,
	// waiting for response headers and every single read of the body.
	timeout time.Duration

	// sslVerify enables TLS certificate verification.
	sslVerify bool

	// maxRedirects is the redirect limit of HTTP clients.
	maxRedirects int
}

// Option configures a Client.
type Option func(*Client)

// WithProxy routes all connections through the SOCKS5 proxy at address.
// An empty address keeps direct connections.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithSSLVerify enables or disables TLS certificate verification.
func WithSSLVerify(verify bool) Option {
	return func(c *Client) {
		c.sslVerify = verify
	}
}

// WithMaxRedirects sets the number of redirects HTTP clients follow.
// 0 disables redirects.
func WithMaxRedirects(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// NewClient creates a new Client with the given timeout.
//
// When a proxy is configured, its address is validated but the proxy is not
// contacted. Call CheckConnection() to verify it is reachable.
func NewClient(timeout time.Duration, opts ...Option) (*Client, error) {
	c := &Client{
		timeout:      timeout,
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}

	direct := &net.Dialer{Timeout: timeout}
	if c.proxyAddress == "" {
		c.dialer = direct
		return c, nil
	}

	if !isValidProxyAddress(c.proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// nil auth: Tor's SOCKS port and most local proxies don't require it.
	dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	c.dialer = dialer
	return c, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format
// with a non-empty host and a port between 1 and 65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// SOCKS5 protocol constants
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5TestHost is a name under the reserved .invalid TLD. The proxy is
	// expected to answer the CONNECT with a failure code; we only verify that
	// it processes SOCKS5 requests.
	socks5TestHost = "reconweb-proxy-check.invalid"
)

// CheckConnection verifies that the configured proxy is running and speaks
// SOCKS5 without authentication. It returns ProxyStatusDirect when no proxy
// is configured.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	if c.proxyAddress == "" {
		return ProxyStatusDirect
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Version negotiation: we offer "no authentication" only.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if authResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	// socks5AuthNoAccept means the proxy insists on credentials.
	if authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	// CONNECT request: version + cmd + reserved + addr type + addr + port
	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00,
		socks5AddrTypeDomID,
		byte(len(socks5TestHost)),
	}
	connectReq = append(connectReq, socks5TestHost...)
	connectReq = append(connectReq, 0x00, 80)

	if _, err := conn.Write(connectReq); err != nil {
		return ProxyStatusCannotConnect
	}

	// version + reply + reserved + addr type; the reply code itself is ignored.
	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

// NewHTTPClient creates an HTTP client that dials through this Client.
//
// Design decisions:
//   - No overall deadline: a download that keeps receiving data may take as
//     long as it needs. The timeout applies per phase instead (dial, TLS
//     handshake, response headers) and to every read, so a stalled peer
//     still fails after one timeout of silence
//   - TLS verification follows the ssl_verify setting; recon targets often
//     serve self-signed certificates, so it is off by default
//   - Cookies are kept in a public-suffix aware jar so a session set by one
//     host never leaks to an unrelated registrable domain
//   - Redirects are limited to prevent loops
func (c *Client) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:           c.dialIdle,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: !c.sslVerify}, //nolint:gosec // configurable via ssl_verify
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   c.timeout,
		ResponseHeaderTimeout: c.timeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     c.proxyAddress == "",
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck // cookiejar.New never fails

	maxRedirects := c.maxRedirects
	return &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// dialIdle dials like DialContext and arms a read deadline of one timeout
// before every read on the returned connection.
func (c *Client) dialIdle(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := c.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if c.timeout <= 0 {
		return conn, nil
	}
	return &idleConn{Conn: conn, timeout: c.timeout}, nil
}

// idleConn fails a read that receives nothing for timeout.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

// Dial establishes a TCP connection to the given address.
func (c *Client) Dial(network, address string) (net.Conn, error) {
	return c.dialer.Dial(network, address)
}

// DialContext establishes a connection with context support.
//
// Both net.Dialer and the x/net SOCKS5 dialer implement proxy.ContextDialer.
// For any other dialer we dial in a goroutine; if the context is cancelled
// the underlying attempt may continue briefly.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProxyAddress returns the configured proxy address, or "" for direct.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// Timeout returns the configured timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}
