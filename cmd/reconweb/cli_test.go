package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// testEnv isolates a CLI run from the user's configuration and cache.
// Runs sharing a testEnv share the cache and the index.
type testEnv struct {
	t        *testing.T
	config   string
	cacheDir string
	dataDir  string
}

func newTestEnv(t *testing.T, configYAML string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "reconweb.yaml")
	if err := os.WriteFile(configPath, []byte(configYAML), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return &testEnv{
		t:        t,
		config:   configPath,
		cacheDir: filepath.Join(dir, "cache"),
		dataDir:  filepath.Join(dir, "data"),
	}
}

// run executes the root command with args followed by the isolation flags.
func (e *testEnv) run(args ...string) (string, string, error) {
	e.t.Helper()

	args = append(args,
		"--config", e.config,
		"--cache-dir", e.cacheDir,
		"--data-dir", e.dataDir,
	)

	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(e.t.Context())
	return stdout.String(), stderr.String(), err
}
