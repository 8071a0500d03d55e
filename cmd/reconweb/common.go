package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/reconweb/internal/config"
	"github.com/nao1215/reconweb/internal/helpers"
	reconlog "github.com/nao1215/reconweb/internal/log"
	"github.com/nao1215/reconweb/internal/report"
)

// errInvalidHeader is returned for --header values without a colon.
var errInvalidHeader = errors.New(`invalid header: expected "Name: value"`)

// buildConfig builds the configuration in three layers: defaults, the
// configuration file, then flags the user actually set.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path was given, silently run on defaults when no file is found.
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}

	targets, err := flags.GetStringSlice("target")
	if err != nil {
		return nil, err
	}
	cfg.Scope = append(cfg.Scope, targets...)

	headers, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidHeader, h)
		}
		cfg.HTTPHeaders[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("tor") {
		if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("rate-limit") {
		if cfg.RateLimit, err = flags.GetFloat64("rate-limit"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("ssl-verify") {
		if cfg.SSLVerify, err = flags.GetBool("ssl-verify"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("cache-dir") {
		if cfg.CacheDir, err = flags.GetString("cache-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("data-dir") {
		if cfg.DBDir, err = flags.GetString("data-dir"); err != nil {
			return nil, err
		}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger creates a structured logger that redacts secrets.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return reconlog.NewSecureLogger(w, verbose)
}

// newWriter selects the report writer for the configured format.
func newWriter(cfg *config.Config, w io.Writer, opts ...report.TextWriterOption) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w)
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewTextWriter(w, opts...)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// session bundles what every command needs.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	helpers *helpers.Helpers
	writer  report.Writer
}

// openSession builds configuration, logger and helpers for cmd.
// The caller must call close.
func openSession(ctx context.Context, cmd *cobra.Command, opts ...report.TextWriterOption) (*session, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	h, err := helpers.New(ctx, cfg, helpers.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	if cfg.ProxyAddress != "" {
		if status := h.CheckConnection(ctx); status.Error() != nil {
			_ = h.Close()
			return nil, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
				status, cfg.ProxyAddress, status.Error())
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	return &session{
		cfg:     cfg,
		logger:  logger,
		helpers: h,
		writer:  newWriter(cfg, cmd.OutOrStdout(), opts...),
	}, nil
}

func (s *session) close() {
	if err := s.helpers.Close(); err != nil {
		s.logger.Error("failed to release resources", "error", err)
	}
}
