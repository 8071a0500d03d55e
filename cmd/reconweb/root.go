package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for reconweb.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconweb",
		Short: "Scope-aware HTTP helpers for reconnaissance",
		Long: `reconweb provides the HTTP plumbing of a reconnaissance workflow.

Every request is checked against the configured scope first; out-of-scope
targets are never contacted. Downloads are cached on disk, paginated APIs
can be walked page by page, and interactsh providers capture out-of-band
DNS, HTTP and SMTP interactions.

Settings are read from .reconweb (see "reconweb init"); flags override it.`,
		Version:       currentBuild().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.StringP("config", "c", "", "Path to configuration file (default: .reconweb in current or home directory)")
	flags.StringSliceP("target", "t", nil, "Scope entry (host, domain, IP or CIDR); repeatable. Empty scope allows everything")
	flags.String("proxy", "", "Route traffic through a SOCKS5 proxy (host:port)")
	flags.Bool("tor", false, "Route traffic through an embedded Tor daemon")
	flags.StringArrayP("header", "H", nil, `Default request header ("Name: value"); repeatable`)
	flags.Duration("timeout", 0, "Timeout per request phase and per body read (default 10s)")
	flags.Float64("rate-limit", 0, "Maximum requests per second (0 = unlimited)")
	flags.Bool("ssl-verify", false, "Verify TLS certificates")
	flags.String("cache-dir", "", "Download cache directory (default: XDG cache directory)")
	flags.String("data-dir", "", "Directory of the SQLite index (default: XDG data directory)")
	flags.Bool("json", false, "Output results in JSON format")
	flags.Bool("markdown", false, "Output results in Markdown format")

	// Add subcommands
	cmd.AddCommand(NewRequestCmd())
	cmd.AddCommand(NewDownloadCmd())
	cmd.AddCommand(NewWordlistCmd())
	cmd.AddCommand(NewPagesCmd())
	cmd.AddCommand(NewOOBCmd())
	cmd.AddCommand(NewCacheCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
