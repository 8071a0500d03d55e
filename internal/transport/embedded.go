package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// defaultStartupTimeout matches config.DefaultTorStartupTimeout.
const defaultStartupTimeout = 3 * time.Minute

// EmbeddedTor is the Tor daemon reconweb starts for --tor (use_tor in the
// config file). helpers.New starts it before building the dispatcher, and
// every request, cache download and interactsh call then dials through its
// SOCKS5 port. helpers.Close stops it.
//
// Bootstrap usually takes one to three minutes, bounded by
// tor_startup_timeout.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout bounds the bootstrap. Non-positive values keep the
// default.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor returns a stopped daemon handle. Nothing is launched until
// Start.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: defaultStartupTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the daemon on OS-assigned ports and blocks until it has
// bootstrapped. Calling Start on a running daemon is a no-op.
//
// tornago cannot be interrupted mid-bootstrap, so ctx is checked before the
// launch and again once the daemon is up; a daemon that finishes after ctx
// is done is stopped and ctx.Err() returned.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	if e.IsRunning() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // the caller already gave up
		return err
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts the daemon down. It is safe to call on a stopped daemon.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	return err
}

// SocksAddr returns the SOCKS5 listener of the running daemon, or "".
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// NewClient returns a Client that dials every connection through the
// daemon. A WithProxy option in opts is overridden.
func (e *EmbeddedTor) NewClient(timeout time.Duration, opts ...Option) (*Client, error) {
	if !e.IsRunning() {
		return nil, ErrTorNotRunning
	}
	return NewClient(timeout, append(opts, WithProxy(e.socksAddr))...)
}
