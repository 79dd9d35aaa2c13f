package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"microscope/internal/core/config"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func testProject(t *testing.T) string {
	return writeProject(t, map[string]string{
		"composer.json": `{"autoload": {"psr-4": {"App\\": "app/"}}}`,
		config.DefaultFile: `
scan_paths = ["app"]

[oracle]
sqlite_path = ".microscope/index.db"
`,
		"app/Models/User.php": "<?php\nnamespace App\\Models;\n\nclass User\n{\n}\n",
		"app/Http/Controllers/HomeController.php": `<?php
namespace App\Http\Controllers;

use App\Models\User;
use App\Models\Ghost;

class HomeController
{
}
`,
	})
}

// execute runs the root command in the project directory and restores the
// working directory afterwards.
func execute(t *testing.T, dir string, args ...string) (int, string) {
	t.Helper()
	t.Chdir(dir)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd.PersistentFlags())
		for _, cmd := range rootCmd.Commands() {
			resetFlags(cmd.Flags())
		}
	})
	return Execute(), out.String()
}

func resetFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func TestLoadConfigFindsProjectFile(t *testing.T) {
	root := testProject(t)
	t.Chdir(filepath.Join(root, "app", "Models"))

	loaded, gotRoot, path, err := loadConfig("", "")
	require.NoError(t, err)
	assert.Equal(t, root, gotRoot)
	assert.Equal(t, filepath.Join(root, config.DefaultFile), path)
	assert.Equal(t, []string{"app"}, loaded.ScanPaths)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, root, cwd)
}

func TestLoadConfigDefaults(t *testing.T) {
	root := writeProject(t, map[string]string{"composer.json": "{}"})
	t.Chdir(root)

	loaded, gotRoot, path, err := loadConfig("", root)
	require.NoError(t, err)
	assert.Equal(t, root, gotRoot)
	assert.Empty(t, path)
	assert.Equal(t, config.FormatText, loaded.Output.Format)
}

func TestCheckCommandReportsProblems(t *testing.T) {
	root := testProject(t)

	code, out := execute(t, root, "check", "-q", "--format", "json")
	assert.Equal(t, 1, code)

	var report struct {
		Summary struct {
			Files int `json:"files"`
		} `json:"summary"`
		Diagnostics []struct {
			Kind   string `json:"kind"`
			File   string `json:"file"`
			Line   int    `json:"line"`
			Symbol string `json:"symbol"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Summary.Files)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "UnresolvedImport", report.Diagnostics[0].Kind)
	assert.Equal(t, "app/Http/Controllers/HomeController.php", report.Diagnostics[0].File)
	assert.Equal(t, 5, report.Diagnostics[0].Line)
	assert.Equal(t, `App\Models\Ghost`, report.Diagnostics[0].Symbol)

	_, err := os.Stat(filepath.Join(root, ".microscope", "index.db"))
	assert.NoError(t, err, "index should be persisted")
}

func TestNamespacesCommandFixes(t *testing.T) {
	root := writeProject(t, map[string]string{
		"composer.json":     `{"autoload": {"psr-4": {"App\\": "app/"}}}`,
		"app/Jobs/Mail.php": "<?php\nnamespace App\\Job;\n\nclass Mail\n{\n}\n",
	})

	code, out := execute(t, root, "namespaces", "-q", "--fix", "--no-color")
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, "1 fixed")

	data, err := os.ReadFile(filepath.Join(root, "app", "Jobs", "Mail.php"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "namespace App\\Jobs;")
}

func TestIndexCommandWritesManifest(t *testing.T) {
	root := testProject(t)

	code, out := execute(t, root, "index", "-q", "--manifest-out", "symbols.yaml")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Indexed ")

	data, err := os.ReadFile(filepath.Join(root, "symbols.yaml"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `App\Models\User`), string(data))
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewObservabilityServer("", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, 200, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "up", status.Status)
	assert.NotEmpty(t, status.Version)
	assert.Positive(t, status.Memory.Goroutines)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
}

func TestSymbolCountWithoutIndex(t *testing.T) {
	rt := &runtime{}
	n, err := rt.symbolCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
