package config

import (
	"net/textproto"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "reconweb"

	// DefaultUserAgent is sent with every request unless a caller overrides it.
	// Recon traffic blends in better with a browser-like User-Agent; operators
	// who want to be identifiable can set their own in the config file.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// DefaultTimeout bounds connecting, the TLS handshake, waiting for
	// response headers and each read of a body. A transfer that keeps
	// receiving data is never cut off, however long it takes.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize limits the response body read into memory by
	// Request and page iteration. Downloads stream to disk and are not limited.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultPageSize is the page size used by page iteration when none is given.
	DefaultPageSize = 100

	// DefaultPollInterval is the delay between interactsh polls in the oob command.
	DefaultPollInterval = 5 * time.Second

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// DefaultInteractshServers is the built-in list of public interactsh providers.
// It is used when the configuration file does not supply its own list.
var DefaultInteractshServers = []string{
	"oast.pro",
	"oast.live",
	"oast.site",
	"oast.online",
	"oast.fun",
	"oast.me",
}

// Config holds all configuration options for reconweb.
// This struct is populated from defaults, the YAML configuration file and
// CLI flags (in that order) and passed down via dependency injection.
type Config struct {
	// UserAgent is the default User-Agent header.
	UserAgent string

	// HTTPHeaders are additional default headers sent with every request.
	// Per-request headers override these on a key-by-key basis.
	HTTPHeaders map[string]string

	// Timeout is the longest a request may wait in one phase: connecting,
	// the TLS handshake, response headers, or silence while reading the body.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes read into memory.
	// Set to 0 to use the default (10MB).
	MaxBodySize int64

	// RateLimit is the maximum number of outbound requests per second.
	// 0 disables rate limiting.
	RateLimit float64

	// SSLVerify enables TLS certificate verification. Recon targets often
	// serve self-signed or mismatched certificates, so it is off by default.
	SSLVerify bool

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UseTor routes all traffic through an embedded Tor daemon.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap. Only used when UseTor is true.
	TorStartupTimeout time.Duration

	// CacheDir is the directory holding downloaded artifacts.
	// Defaults to the XDG cache directory (~/.cache/reconweb on Linux).
	CacheDir string

	// CacheTTL is the maximum age of a cache entry. Older entries are treated
	// as absent and downloaded again. 0 keeps entries forever.
	CacheTTL time.Duration

	// DBDir is the directory holding the SQLite cache index.
	// Defaults to the XDG data directory. Empty disables the index.
	DBDir string

	// Scope lists the targets (hosts, domains, IPs, CIDRs) requests may reach.
	// An empty scope allows every target.
	Scope []string

	// InteractshServers is the process-wide list of interactsh providers.
	InteractshServers []string

	// InteractshToken is an optional auth token for self-hosted providers.
	InteractshToken string

	// PollInterval is the delay between interactsh polls.
	PollInterval time.Duration

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .reconweb in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, provider list).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		UserAgent:         DefaultUserAgent,
		HTTPHeaders:       make(map[string]string),
		Timeout:           DefaultTimeout,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		CacheDir:          XDGCacheDir(),
		DBDir:             XDGDataDir(),
		InteractshServers: slices.Clone(DefaultInteractshServers),
		PollInterval:      DefaultPollInterval,
	}
}

// XDGDataDir returns the XDG data directory for reconweb.
// On Linux: ~/.local/share/reconweb
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for reconweb.
// On Linux: ~/.config/reconweb
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for reconweb.
// On Linux: ~/.cache/reconweb
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.CacheTTL < 0 {
		return ErrInvalidCacheTTL
	}

	if c.CacheDir == "" {
		return ErrNoCacheDir
	}

	if len(c.InteractshServers) == 0 {
		return ErrNoInteractshServers
	}

	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.ProxyAddress != "" && c.UseTor {
		return ErrConflictingProxy
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// Headers returns the default header set: the User-Agent first, then the
// configured extra headers. Keys are canonicalized, so an extra "user-agent"
// entry overrides UserAgent. The returned map is a copy.
func (c *Config) Headers() map[string]string {
	headers := make(map[string]string, len(c.HTTPHeaders)+1)
	if c.UserAgent != "" {
		headers["User-Agent"] = c.UserAgent
	}
	for k, v := range c.HTTPHeaders {
		headers[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	return headers
}
