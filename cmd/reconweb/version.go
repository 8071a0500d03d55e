package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildInfo describes the running reconweb binary.
type buildInfo struct {
	Version string
	Commit  string
	Date    string
	Dirty   bool
}

// currentBuild resolves the build description of this binary.
func currentBuild() buildInfo {
	info, _ := debug.ReadBuildInfo()
	return resolveBuild(version, commit, date, info)
}

// resolveBuild merges linker-provided values with module build info.
// Linker values win; the VCS stamp fills the gaps, then placeholders.
func resolveBuild(ldVersion, ldCommit, ldDate string, info *debug.BuildInfo) buildInfo {
	b := buildInfo{Version: ldVersion, Commit: ldCommit, Date: ldDate}

	if info != nil {
		if b.Version == "" && info.Main.Version != "" {
			b.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = shortRevision(s.Value)
				}
			case "vcs.time":
				if b.Date == "" {
					b.Date = s.Value
				}
			case "vcs.modified":
				b.Dirty = s.Value == "true"
			}
		}
	}

	if b.Version == "" {
		b.Version = "(devel)"
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.Date == "" {
		b.Date = "unknown"
	}
	return b
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, build date and Go toolchain of reconweb.`,
		Run: func(cmd *cobra.Command, _ []string) {
			b := currentBuild()
			rev := b.Commit
			if b.Dirty {
				rev += " (modified)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reconweb version %s\n", b.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", rev)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", b.Date)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
