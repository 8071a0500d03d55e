package transport

import "errors"

// Transport errors.
// These errors are returned when there are problems configuring or reaching
// the outbound proxy.
var (
	// ErrProxyNotSOCKS5 is returned when the configured proxy address responds
	// but does not speak SOCKS5 without authentication. This typically happens
	// when pointing at an HTTP proxy or a different service on that port.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when we cannot establish a TCP connection
	// to the proxy address. This usually means the proxy is not running or the
	// address is incorrect.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the connection to the proxy times out.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrTorNotRunning is returned when a client is requested from an embedded
	// Tor daemon that has not been started.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus represents the result of checking the proxy connection.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy is a working SOCKS5 proxy.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates the connection succeeded but the peer
	// did not answer like a SOCKS5 proxy.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates we could not establish a connection.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the connection attempt timed out.
	ProxyStatusTimeout

	// ProxyStatusDirect indicates no proxy is configured.
	ProxyStatusDirect
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	case ProxyStatusDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// Error returns the appropriate error for this status, or nil if the
// client can be used.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK, ProxyStatusDirect:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
