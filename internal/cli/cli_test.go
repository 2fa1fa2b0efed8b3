package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icl "assetmanifest/internal/cli"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func run(t *testing.T, args ...string) (icl.CLIResult, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	res, err := icl.Run(context.Background(), args, &stdout, &stderr)
	return res, stdout.String(), err
}

func chunkStats(name, file string) string {
	return `{"chunks": [{"id": "` + name + `", "name": "` + name + `", "hash": "h", "initial": true, "files": ["` + file + `"]}]}`
}

func TestBuild_TwoPassesOneManifest(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "dist", "web.json"), chunkStats("one", "one.h1.js"))
	writeFile(t, filepath.Join(workDir, "dist", "ssr.json"), chunkStats("two", "two.h2.js"))

	res, out, err := run(t,
		"build",
		"--workdir", workDir,
		"--stats", "dist/web.json",
		"--stats", "dist/ssr.json",
		"--base-path", "/app/",
	)
	require.NoError(t, err)
	assert.Equal(t, icl.ExitSuccess, res.ExitCode)
	assert.Contains(t, out, "wrote ")

	b, err := os.ReadFile(filepath.Join(workDir, "dist", "manifest.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"/app/one.js":"one.h1.js","/app/two.js":"two.h2.js"}`, string(b))
}

func TestBuild_IdenticalRunsIdenticalManifest(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "stats.json"), chunkStats("main", "main.js"))
	args := []string{"build", "-C", workDir, "-s", "stats.json", "--sort", "key"}

	_, _, err := run(t, args...)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(workDir, "manifest.json"))
	require.NoError(t, err)

	_, _, err = run(t, args...)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(workDir, "manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuild_ConfigFileAndDryRun(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "out", "stats.json"), chunkStats("main", "main.js"))
	writeFile(t, filepath.Join(workDir, "assetmanifest.yaml"), `
publicPath: https://cdn.example.com/
seed:
  version: "1"
targets:
  - id: web
    stats: out/stats.json
`)

	res, out, err := run(t, "build", "--workdir", workDir, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, icl.ExitSuccess, res.ExitCode)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]any{"version": "1", "main.js": "https://cdn.example.com/main.js"}, got)
	_, statErr := os.Stat(filepath.Join(workDir, "out", "manifest.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuild_FailedPassExitCode(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "stats.json"), `{"chunks": [], "errors": ["Module not found"]}`)

	res, _, err := run(t, "build", "--workdir", workDir, "--stats", "stats.json")
	require.Error(t, err)
	assert.Equal(t, icl.ExitBuildFailure, res.ExitCode)

	res, out, err := run(t, "history", "--workdir", workDir)
	require.NoError(t, err)
	assert.Equal(t, icl.ExitSuccess, res.ExitCode)
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "PassFailed")
}

func TestInvocationErrors(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "stats.json"), chunkStats("main", "main.js"))

	testCases := map[string][]string{
		"unknown flag":    {"build", "--workdir", workDir, "--bogus"},
		"unknown command": {"deploy"},
		"missing stats":   {"build", "--workdir", workDir},
		"stats not found": {"build", "--workdir", workDir, "--stats", "nope.json"},
		"bad workdir":     {"build", "--workdir", filepath.Join(workDir, "missing"), "--stats", "stats.json"},
		"positional args": {"build", "--workdir", workDir, "extra"},
	}
	for name, args := range testCases {
		t.Run(name, func(t *testing.T) {
			res, _, err := run(t, args...)
			require.Error(t, err)
			assert.Equal(t, icl.ExitInvalidInvocation, res.ExitCode, "err: %v", err)
		})
	}
}

func TestConfigErrorExitCode(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "stats.json"), chunkStats("main", "main.js"))

	res, _, err := run(t, "build", "--workdir", workDir, "--stats", "stats.json", "--filter", "sometimes")
	require.Error(t, err)
	assert.Equal(t, icl.ExitConfigError, res.ExitCode)

	writeFile(t, filepath.Join(workDir, "assetmanifest.jsonc"), `{"fileNmae": "x.json"}`)
	res, _, err = run(t, "build", "--workdir", workDir, "--stats", "stats.json")
	require.Error(t, err)
	assert.Equal(t, icl.ExitConfigError, res.ExitCode)
}

func TestHistory_ListsCompletedRounds(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "stats.json"), chunkStats("main", "main.js"))

	for i := 0; i < 2; i++ {
		_, _, err := run(t, "build", "--workdir", workDir, "--stats", "stats.json")
		require.NoError(t, err)
	}
	_, _, err := run(t, "build", "--workdir", workDir, "--stats", "stats.json", "--no-history")
	require.NoError(t, err)

	_, out, err := run(t, "history", "--workdir", workDir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Contains(t, l, "complete\tmanifest.json\t")
	}

	_, out, err = run(t, "history", "--workdir", workDir, "-n", "1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}
