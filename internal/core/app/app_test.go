package app

import (
	"context"
	"fmt"
	"microscope/internal/core/errors"
	"microscope/internal/core/fixer"
	"microscope/internal/core/ports"
	"microscope/internal/engine/diagnostic"
	"microscope/internal/engine/namespace"
	"microscope/internal/engine/resolver"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu    sync.Mutex
	diags []diagnostic.Diagnostic
	fixer ports.FixApplier
}

func (r *recordingReporter) Report(d diagnostic.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
}

func (r *recordingReporter) ApplyNamespaceFix(ctx context.Context, fix diagnostic.Fix) error {
	if r.fixer == nil {
		return fmt.Errorf("fixes disabled")
	}
	return r.fixer.Apply(ctx, fix)
}

type failingOracle struct{}

func (failingOracle) Resolves(context.Context, string) (bool, error) {
	return false, fmt.Errorf("index unavailable")
}

func (failingOracle) FunctionExists(context.Context, string) (bool, error) {
	return false, fmt.Errorf("index unavailable")
}

func (failingOracle) MethodExists(context.Context, string, string) (bool, error) {
	return false, fmt.Errorf("index unavailable")
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func projectIndex() *resolver.Index {
	ix := resolver.NewIndex()
	ix.Add(resolver.Symbol{Name: `App\Models\User`, Kind: resolver.SymbolClass})
	ix.Add(resolver.Symbol{Name: `App\Jobs\SendMail`, Kind: resolver.SymbolClass, Methods: []string{"handle"}})
	return ix
}

func TestCheckReferencesSkipsFilesWithoutOpenTag(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "notes.php", "just some text\n")

	rep := &recordingReporter{}
	run, err := New(projectIndex(), rep, Options{Workers: 2}).CheckReferences(context.Background(), []string{path})
	require.NoError(t, err)

	require.Len(t, run.Files, 1)
	assert.Equal(t, StateSkipped, run.Files[0].State)
	assert.Equal(t, errors.CodeNotSourceFile, run.Files[0].SkipCode)
	assert.Empty(t, rep.diags)
	assert.NotEmpty(t, run.ID)
}

func TestCheckReferencesCleanType(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "app/Models/User.php", "<?php\nnamespace App\\Models;\n\nclass User\n{\n}\n")

	rep := &recordingReporter{}
	run, err := New(projectIndex(), rep, Options{}).CheckReferences(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Equal(t, StateDone, run.Files[0].State)
	assert.Empty(t, rep.diags)
}

func TestCheckReferencesSkipsFilesWithoutType(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "routes/web.php", "<?php\n\nRoute::get('/', fn () => view('welcome'));\n")

	run, err := New(projectIndex(), &recordingReporter{}, Options{}).CheckReferences(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, errors.CodeNoTypeDeclaration, run.Files[0].SkipCode)
}

func TestCheckReferencesUnresolvedImports(t *testing.T) {
	root := t.TempDir()
	src := `<?php
namespace App\Http;

use App\Models\User;
use App\Models\Missing;
use Illuminate\Gone;

class Kernel
{
    public function handle(User $user) {}
}
`
	path := writeFile(t, root, "app/Http/Kernel.php", src)

	rep := &recordingReporter{}
	_, err := New(projectIndex(), rep, Options{}).CheckReferences(context.Background(), []string{path})
	require.NoError(t, err)

	require.Len(t, rep.diags, 2)
	diagnostic.Sort(rep.diags)
	assert.Equal(t, diagnostic.UnresolvedImport, rep.diags[0].Kind)
	assert.Equal(t, 5, rep.diags[0].Line)
	assert.Equal(t, `App\Models\Missing`, rep.diags[0].Symbol)
	assert.Equal(t, 6, rep.diags[1].Line)
	assert.Equal(t, `Illuminate\Gone`, rep.diags[1].Symbol)
}

func TestCheckReferencesCallables(t *testing.T) {
	root := t.TempDir()
	src := `<?php
namespace App\Http;

class Routes
{
    public function map()
    {
        return [
            'App\Jobs\SendMail@handle',
            'App\Jobs\SendMail@missing',
            'NoSeparatorHere@run',
            'App\Jobs\Ghost@run',
        ];
    }
}
`
	path := writeFile(t, root, "app/Http/Routes.php", src)

	rep := &recordingReporter{}
	_, err := New(projectIndex(), rep, Options{Callables: true}).CheckReferences(context.Background(), []string{path})
	require.NoError(t, err)

	require.Len(t, rep.diags, 2)
	diagnostic.Sort(rep.diags)
	byKind := map[diagnostic.Kind]diagnostic.Diagnostic{}
	for _, d := range rep.diags {
		byKind[d.Kind] = d
	}
	assert.Equal(t, `App\Jobs\SendMail@missing`, byKind[diagnostic.UnresolvedCallableMethod].Symbol)
	assert.Equal(t, 10, byKind[diagnostic.UnresolvedCallableMethod].Line)
	assert.Equal(t, `App\Jobs\Ghost`, byKind[diagnostic.UnresolvedCallableClass].Symbol)

	rep = &recordingReporter{}
	_, err = New(projectIndex(), rep, Options{}).CheckReferences(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Empty(t, rep.diags, "callables are only checked when enabled")
}

func TestCheckReferencesOracleFailureSkipsFile(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "app/Http/Kernel.php", "<?php\nnamespace App\\Http;\n\nuse App\\Models\\User;\n\nclass Kernel {}\n")

	rep := &recordingReporter{}
	run, err := New(failingOracle{}, rep, Options{}).CheckReferences(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Equal(t, StateSkipped, run.Files[0].State)
	assert.Equal(t, errors.CodeOracle, run.Files[0].SkipCode)
	assert.Empty(t, rep.diags, "an oracle failure is never reported as unresolved")
}

func TestCheckReferencesCancelled(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "app/A.php", "<?php\nclass A {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(projectIndex(), &recordingReporter{}, Options{}).CheckReferences(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}

func namespaceOptions(root string, autoFix bool) Options {
	return Options{
		Mappings: []namespace.Mapping{
			{SourceRoot: filepath.Join(root, "app"), RootNamespace: "App"},
			{SourceRoot: filepath.Join(root, "database"), RootNamespace: "Database"},
		},
		Policy: namespace.Policy{
			MigrationDirs:   []string{filepath.Join(root, "database", "migrations")},
			ReservedParents: []string{"Migration"},
		},
		AutoFix: autoFix,
	}
}

func TestCheckNamespacesSkipsMigrations(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "database/migrations/2020_01_01_create_users_table.php",
		"<?php\n\nuse Illuminate\\Database\\Migrations\\Migration;\n\nclass CreateUsersTable extends Migration\n{\n}\n")

	rep := &recordingReporter{}
	run, err := New(projectIndex(), rep, namespaceOptions(root, true)).CheckNamespaces(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Empty(t, rep.diags)
	assert.Equal(t, StateSkipped, run.Files[0].State)
	assert.Empty(t, run.Files[0].SkipCode)
}

func TestCheckNamespacesFixRoundTrip(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "app/Services/Billing.php", "<?php\n\nnamespace App\\Service;\n\nclass Billing\n{\n}\n")

	var (
		mu     sync.Mutex
		events []ports.Event
	)
	rep := &recordingReporter{fixer: fixer.NewRewriter()}
	a := New(projectIndex(), rep, namespaceOptions(root, true))
	a.SetEventSink(ports.EventFunc(func(e ports.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))

	run, err := a.CheckNamespaces(context.Background(), []string{path})
	require.NoError(t, err)

	require.Len(t, rep.diags, 1)
	assert.Equal(t, diagnostic.NamespaceMismatch, rep.diags[0].Kind)
	assert.Equal(t, path, rep.diags[0].FilePath)
	assert.Equal(t, 3, rep.diags[0].Line)
	assert.True(t, run.Files[0].Fixed)
	applied, failed := run.Fixes()
	assert.Equal(t, 1, applied)
	assert.Zero(t, failed)
	assert.Zero(t, run.Outstanding())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<?php\n\nnamespace App\\Services;\n\nclass Billing\n{\n}\n", string(got))

	kinds := make([]ports.EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []ports.EventKind{ports.NamespaceFixing, ports.NamespaceFixed, ports.FileTapped}, kinds)

	rep = &recordingReporter{fixer: fixer.NewRewriter()}
	_, err = New(projectIndex(), rep, namespaceOptions(root, true)).CheckNamespaces(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Empty(t, rep.diags, "a fixed file is consistent")
}

func TestCheckNamespacesReportsWithoutAutoFix(t *testing.T) {
	root := t.TempDir()
	src := "<?php\n\nclass Invoice\n{\n}\n"
	path := writeFile(t, root, "app/Models/Invoice.php", src)

	rep := &recordingReporter{}
	run, err := New(projectIndex(), rep, namespaceOptions(root, false)).CheckNamespaces(context.Background(), []string{path})
	require.NoError(t, err)

	require.Len(t, rep.diags, 1)
	require.NotNil(t, run.Files[0].Fix)
	assert.True(t, run.Files[0].Fix.Insert)
	assert.Equal(t, `namespace App\Models;`, run.Files[0].Fix.NewText)
	assert.False(t, run.Files[0].Fixed)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, src, string(got))
}

func TestRunMergesPasses(t *testing.T) {
	root := t.TempDir()
	kernel := writeFile(t, root, "app/Http/Kernel.php", "<?php\nnamespace App\\Http;\n\nuse App\\Models\\Missing;\n\nclass Kernel {}\n")
	wrong := writeFile(t, root, "app/Models/Post.php", "<?php\nnamespace App\\Model;\n\nclass Post {}\n")
	text := writeFile(t, root, "app/readme.php", "no code here\n")

	var (
		mu     sync.Mutex
		tapped int
	)
	rep := &recordingReporter{}
	a := New(projectIndex(), rep, namespaceOptions(root, false))
	a.SetEventSink(ports.EventFunc(func(e ports.Event) {
		if e.Kind == ports.FileTapped {
			mu.Lock()
			tapped++
			mu.Unlock()
		}
	}))

	run, err := a.Run(context.Background(), []string{kernel, wrong, text})
	require.NoError(t, err)

	assert.Equal(t, 6, tapped)
	require.Len(t, run.Files, 3)
	assert.Equal(t, StateDone, run.Files[0].State)
	assert.Equal(t, StateDone, run.Files[1].State)
	assert.Equal(t, StateSkipped, run.Files[2].State)

	diags := run.Diagnostics()
	require.Len(t, diags, 2)
	kinds := map[diagnostic.Kind]string{}
	for _, d := range diags {
		kinds[d.Kind] = d.FilePath
	}
	assert.Equal(t, kernel, kinds[diagnostic.UnresolvedImport])
	assert.Equal(t, wrong, kinds[diagnostic.NamespaceMismatch])
	assert.Equal(t, map[string]errors.ErrorCode{text: errors.CodeNotSourceFile}, run.Skipped())
}
