package helpers

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/nao1215/reconweb/internal/config"
	"github.com/nao1215/reconweb/internal/database"
	"github.com/nao1215/reconweb/internal/interactsh"
	"github.com/nao1215/reconweb/internal/scope"
	"github.com/nao1215/reconweb/internal/transport"
	"github.com/nao1215/reconweb/internal/web"
)

// Helpers is the facade over the HTTP helper components.
// It is safe for concurrent use. Close releases the index and stops the
// embedded Tor daemon if one was started.
type Helpers struct {
	cfg        *config.Config
	gate       scope.Gate
	transport  *transport.Client
	tor        *transport.EmbeddedTor
	dispatcher *web.Dispatcher
	cache      *web.Cache
	index      *database.Index
	logger     *slog.Logger
}

// Option configures Helpers.
type Option func(*Helpers)

// WithGate sets the scope gate. Without it the gate is built from
// config.Config.Scope, and an empty scope allows every target.
func WithGate(gate scope.Gate) Option {
	return func(h *Helpers) {
		h.gate = gate
	}
}

// WithLogger sets the logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Helpers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New builds Helpers from cfg.
//
// When cfg.UseTor is set an embedded Tor daemon is started first, which can
// take minutes; ctx bounds the bootstrap. When cfg.DBDir is empty the cache
// runs without its SQLite index.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Helpers, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	h := &Helpers{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.gate == nil {
		gate, err := newGate(cfg.Scope)
		if err != nil {
			return nil, err
		}
		h.gate = gate
	}

	if err := h.openTransport(ctx); err != nil {
		return nil, err
	}

	h.dispatcher = web.NewDispatcher(h.gate,
		web.WithHTTPClient(h.transport.NewHTTPClient()),
		web.WithDefaultHeaders(cfg.Headers()),
		web.WithRateLimit(cfg.RateLimit),
		web.WithMaxBodySize(cfg.MaxBodySize),
		web.WithLogger(h.logger),
	)

	cacheOpts := []web.CacheOption{
		web.WithTTL(cfg.CacheTTL),
		web.WithCacheLogger(h.logger),
	}
	if cfg.DBDir != "" {
		idx, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			h.closeTor()
			return nil, fmt.Errorf("failed to open cache index: %w", err)
		}
		h.index = idx
		cacheOpts = append(cacheOpts, web.WithIndex(idx))
	}

	cache, err := web.NewCache(cfg.CacheDir, h.dispatcher, cacheOpts...)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	h.cache = cache

	return h, nil
}

// newGate builds the gate for the configured scope.
func newGate(entries []string) (scope.Gate, error) {
	target, err := scope.NewTarget(entries...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	if target.Len() == 0 {
		return scope.All(), nil
	}
	return target, nil
}

func (h *Helpers) openTransport(ctx context.Context) error {
	opts := []transport.Option{transport.WithSSLVerify(h.cfg.SSLVerify)}

	if h.cfg.UseTor {
		tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(h.cfg.TorStartupTimeout))
		h.logger.Info("starting embedded tor")
		if err := tor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start embedded tor: %w", err)
		}
		h.tor = tor
		h.logger.Info("embedded tor ready", "socks", tor.SocksAddr())

		client, err := tor.NewClient(h.cfg.Timeout, opts...)
		if err != nil {
			h.closeTor()
			return err
		}
		h.transport = client
		return nil
	}

	if h.cfg.ProxyAddress != "" {
		opts = append(opts, transport.WithProxy(h.cfg.ProxyAddress))
	}
	client, err := transport.NewClient(h.cfg.Timeout, opts...)
	if err != nil {
		return err
	}
	h.transport = client
	return nil
}

// Request issues a scope-gated HTTP request.
func (h *Helpers) Request(ctx context.Context, url string, opts ...web.RequestOption) (*web.Response, error) {
	return h.dispatcher.Request(ctx, url, opts...)
}

// Download fetches url into the cache and returns the file path.
func (h *Helpers) Download(ctx context.Context, url string) (string, bool) {
	return h.cache.Download(ctx, url)
}

// IsCached reports whether url has a fresh cache entry.
func (h *Helpers) IsCached(url string) bool {
	return h.cache.IsCached(url)
}

// Wordlist downloads a wordlist into the cache.
func (h *Helpers) Wordlist(ctx context.Context, url string) (string, bool) {
	return h.cache.Wordlist(ctx, url)
}

// Lines iterates over the non-blank lines of a wordlist file.
func (h *Helpers) Lines(path string) (iter.Seq[string], error) {
	return web.Lines(path, web.WithLinesLogger(h.logger))
}

// Pages iterates over a paginated API.
func (h *Helpers) Pages(ctx context.Context, template string, pageSize int, jsonMode bool, opts ...web.PageOption) *web.PageIterator {
	return h.dispatcher.Pages(ctx, template, pageSize, jsonMode, opts...)
}

// NewInteractionClient returns an unregistered interactsh client using the
// configured providers and token. Collaborator providers are not recon
// targets, so this traffic bypasses the scope gate but still uses the
// configured proxy.
func (h *Helpers) NewInteractionClient() *interactsh.Client {
	return interactsh.NewClient(
		interactsh.WithServers(h.cfg.InteractshServers...),
		interactsh.WithToken(h.cfg.InteractshToken),
		interactsh.WithHTTPClient(h.transport.NewHTTPClient()),
		interactsh.WithLogger(h.logger),
	)
}

// CacheEntries lists the cache contents.
func (h *Helpers) CacheEntries(ctx context.Context) ([]database.CacheEntry, error) {
	return h.cache.Entries(ctx)
}

// RemoveCached deletes the cache entry for url.
func (h *Helpers) RemoveCached(ctx context.Context, url string) error {
	return h.cache.Remove(ctx, url)
}

// PurgeCache deletes every cache entry and returns the number of files removed.
func (h *Helpers) PurgeCache(ctx context.Context) (int, error) {
	return h.cache.Purge(ctx)
}

// Interactions lists recorded interactions. An empty correlationID lists all.
func (h *Helpers) Interactions(ctx context.Context, correlationID string) ([]database.InteractionRecord, error) {
	if h.index == nil {
		return nil, ErrNoIndex
	}
	return h.index.ListInteractions(ctx, correlationID)
}

// CheckConnection reports the state of the outbound proxy.
func (h *Helpers) CheckConnection(ctx context.Context) transport.ProxyStatus {
	return h.transport.CheckConnection(ctx)
}

// Gate returns the scope gate.
func (h *Helpers) Gate() scope.Gate {
	return h.gate
}

// Dispatcher returns the request dispatcher.
func (h *Helpers) Dispatcher() *web.Dispatcher {
	return h.dispatcher
}

// Cache returns the download cache.
func (h *Helpers) Cache() *web.Cache {
	return h.cache
}

// Close releases the index and stops the embedded Tor daemon.
func (h *Helpers) Close() error {
	var errs []error
	if h.index != nil {
		if err := h.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache index: %w", err))
		}
		h.index = nil
	}
	if err := h.closeTor(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (h *Helpers) closeTor() error {
	if h.tor == nil {
		return nil
	}
	err := h.tor.Stop()
	h.tor = nil
	if err != nil {
		return fmt.Errorf("failed to stop embedded tor: %w", err)
	}
	return nil
}
