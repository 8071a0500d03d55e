package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".reconweb"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .reconweb configuration file.
// Zero values mean "not set" and leave the corresponding default untouched.
type File struct {
	UserAgent   string            `yaml:"user_agent,omitempty"`
	HTTPHeaders map[string]string `yaml:"http_headers,omitempty"`
	HTTPTimeout time.Duration     `yaml:"http_timeout,omitempty"`
	HTTPProxy   string            `yaml:"http_proxy,omitempty"`

	// SSLVerify is a pointer so that an explicit "false" can be told apart
	// from an absent key.
	SSLVerify   *bool   `yaml:"ssl_verify,omitempty"`
	RateLimit   float64 `yaml:"rate_limit,omitempty"`
	MaxBodySize int64   `yaml:"max_body_size,omitempty"`

	CacheDir string        `yaml:"cache_dir,omitempty"`
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`

	Scope []string `yaml:"scope,omitempty"`

	Interactsh InteractshFile `yaml:"interactsh,omitempty"`
}

// InteractshFile holds the interactsh section of the configuration file.
type InteractshFile struct {
	// Servers replaces DefaultInteractshServers when non-empty.
	Servers []string `yaml:"servers,omitempty"`

	// Token is sent as the Authorization header to self-hosted providers.
	Token string `yaml:"token,omitempty"`

	// PollInterval is the delay between polls in the oob command.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.HTTPHeaders == nil {
		cf.HTTPHeaders = make(map[string]string)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .reconweb in the current directory
// 3. Look for .reconweb in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// Apply overlays the values set in the file onto cfg.
// Header maps are merged key by key with file headers winning.
func (cf *File) Apply(cfg *Config) {
	if cf.UserAgent != "" {
		cfg.UserAgent = cf.UserAgent
	}
	if len(cf.HTTPHeaders) > 0 {
		if cfg.HTTPHeaders == nil {
			cfg.HTTPHeaders = make(map[string]string, len(cf.HTTPHeaders))
		}
		for k, v := range cf.HTTPHeaders {
			cfg.HTTPHeaders[k] = v
		}
	}
	if cf.HTTPTimeout != 0 {
		cfg.Timeout = cf.HTTPTimeout
	}
	if cf.HTTPProxy != "" {
		cfg.ProxyAddress = cf.HTTPProxy
	}
	if cf.SSLVerify != nil {
		cfg.SSLVerify = *cf.SSLVerify
	}
	if cf.RateLimit != 0 {
		cfg.RateLimit = cf.RateLimit
	}
	if cf.MaxBodySize != 0 {
		cfg.MaxBodySize = cf.MaxBodySize
	}
	if cf.CacheDir != "" {
		cfg.CacheDir = cf.CacheDir
	}
	if cf.CacheTTL != 0 {
		cfg.CacheTTL = cf.CacheTTL
	}
	if len(cf.Scope) > 0 {
		cfg.Scope = append(cfg.Scope, cf.Scope...)
	}
	if len(cf.Interactsh.Servers) > 0 {
		cfg.InteractshServers = append([]string(nil), cf.Interactsh.Servers...)
	}
	if cf.Interactsh.Token != "" {
		cfg.InteractshToken = cf.Interactsh.Token
	}
	if cf.Interactsh.PollInterval != 0 {
		cfg.PollInterval = cf.Interactsh.PollInterval
	}
}
