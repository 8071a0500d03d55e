package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/reconweb/internal/config"
)

//go:embed templates/reconweb.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new reconweb configuration file",
		Long: `Initialize creates a new .reconweb configuration file in the current directory.

The generated file includes:
- Default request settings (timeout, rate limit, TLS verification)
- Commented examples for headers, proxy and scope
- Interactsh provider settings

Examples:
  # Create .reconweb in current directory
  reconweb init

  # Create config file at a specific path
  reconweb init -o myconfig.yaml

  # Force overwrite existing file
  reconweb init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/reconweb.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - Default headers and API tokens")
	fmt.Fprintln(out, "  - The scope of hosts that may be contacted")
	fmt.Fprintln(out, "  - Self-hosted interactsh providers")

	return nil
}
