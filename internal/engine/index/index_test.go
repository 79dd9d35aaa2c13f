package index

import (
	"context"
	"microscope/internal/engine/resolver"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const controllerSource = `<?php

namespace App\Http\Controllers;

use App\Models\User;
use Illuminate\Routing\Controller as BaseController;

class UserController extends BaseController implements \JsonSerializable, Contracts\Renders
{
    use Concerns\HandlesUsers;

    public function index() {}

    public function jsonSerialize(): mixed
    {
        $fn = function () { return 1; };
        return [];
    }
}

interface Renders extends \Stringable {}

trait HandlesUsers
{
    protected function loadUser() {}
}

enum Status: string
{
    case Active = 'active';

    public function label(): string { return 'x'; }
}

function helper() {}
`

func byName(t *testing.T, syms []resolver.Symbol, name string) resolver.Symbol {
	t.Helper()
	for _, s := range syms {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("symbol %s not collected", name)
	return resolver.Symbol{}
}

func TestCollector(t *testing.T) {
	syms, err := NewCollector().Collect(context.Background(), "app/Http/Controllers/UserController.php", []byte(controllerSource))
	require.NoError(t, err)
	require.Len(t, syms, 5)

	ctrl := byName(t, syms, `App\Http\Controllers\UserController`)
	assert.Equal(t, "class", string(ctrl.Kind))
	assert.Equal(t, `Illuminate\Routing\Controller`, ctrl.Parent)
	assert.Equal(t, []string{"JsonSerializable", `App\Http\Controllers\Contracts\Renders`}, ctrl.Interfaces)
	assert.Equal(t, []string{`App\Http\Controllers\Concerns\HandlesUsers`}, ctrl.Traits)
	assert.Equal(t, []string{"index", "jsonSerialize"}, ctrl.Methods)
	assert.Equal(t, 8, ctrl.Line)

	renders := byName(t, syms, `App\Http\Controllers\Renders`)
	assert.Equal(t, "interface", string(renders.Kind))
	assert.Equal(t, []string{"Stringable"}, renders.Interfaces)
	assert.Empty(t, renders.Parent)

	trait := byName(t, syms, `App\Http\Controllers\HandlesUsers`)
	assert.Equal(t, "trait", string(trait.Kind))
	assert.Equal(t, []string{"loadUser"}, trait.Methods)

	status := byName(t, syms, `App\Http\Controllers\Status`)
	assert.Equal(t, "enum", string(status.Kind))
	assert.Equal(t, []string{"label"}, status.Methods)

	helper := byName(t, syms, `App\Http\Controllers\helper`)
	assert.Equal(t, "function", string(helper.Kind))
}

func TestCollectorBracketedNamespaces(t *testing.T) {
	src := `<?php
namespace First {
    class A {}
}
namespace Second {
    class B extends \First\A {}
}
namespace {
    if (!function_exists('global_helper')) {
        function global_helper() {}
    }
}
`
	syms, err := NewCollector().Collect(context.Background(), "multi.php", []byte(src))
	require.NoError(t, err)

	byName(t, syms, `First\A`)
	b := byName(t, syms, `Second\B`)
	assert.Equal(t, `First\A`, b.Parent)
	byName(t, syms, "global_helper")
}

func TestCollectorSkipsTemplatesWithoutCode(t *testing.T) {
	syms, err := NewCollector().Collect(context.Background(), "page.php", []byte("<html>class Nope {}</html>"))
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestBuilderBuild(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app/Models/User.php":          "<?php\nnamespace App\\Models;\nclass User extends Model { public function posts() {} }\n",
		"app/Models/Model.php":         "<?php\nnamespace App\\Models;\nabstract class Model { public function save() {} }\n",
		"app/helpers.php":              "<?php\nfunction money() {}\n",
		"app/readme.txt":               "class NotPhp {}",
		"tests/Fixtures/Broken.php":    "<?php\nnamespace Tests;\nclass Fixture {}\n",
		"vendor/acme/lib/src/Tool.php": "<?php\nnamespace Acme;\nclass Tool {}\n",
	})

	var seen int
	b := NewBuilder(Options{
		Roots:   []string{root},
		Exclude: []string{"tests/**"},
		Workers: 1,
		OnFile:  func(string) { seen++ },
	})

	files, err := b.Files()
	require.NoError(t, err)
	assert.Len(t, files, 4)

	ix, stats, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Files)
	assert.Equal(t, 4, stats.Symbols)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 4, seen)

	ctx := context.Background()
	ok, _ := ix.Resolves(ctx, `\App\Models\User`)
	assert.True(t, ok)
	ok, _ = ix.Resolves(ctx, `Tests\Fixture`)
	assert.False(t, ok)
	ok, _ = ix.FunctionExists(ctx, "money")
	assert.True(t, ok)
	ok, _ = ix.MethodExists(ctx, `App\Models\User`, "save")
	assert.True(t, ok, "inherited method")
}

func TestBuilderUpdate(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/Job.php": "<?php\nnamespace App;\nclass Job { public function handle() {} }\n",
	})
	b := NewBuilder(Options{Roots: []string{root}, Workers: 1})
	ix, _, err := b.Build(context.Background())
	require.NoError(t, err)

	path := filepath.Join(root, "src", "Job.php")
	require.NoError(t, os.WriteFile(path, []byte("<?php\nnamespace App;\nclass Job { public function run() {} }\n"), 0o644))
	syms, err := b.Update(context.Background(), ix, path)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, []string{"run"}, syms[0].Methods)

	ctx := context.Background()
	ok, _ := ix.MethodExists(ctx, `App\Job`, "run")
	assert.True(t, ok)
	ok, _ = ix.MethodExists(ctx, `App\Job`, "handle")
	assert.False(t, ok)

	require.NoError(t, os.Remove(path))
	syms, err = b.Update(context.Background(), ix, path)
	require.NoError(t, err)
	assert.Empty(t, syms)
	ok, _ = ix.Resolves(ctx, `App\Job`)
	assert.False(t, ok)
}

func TestBuilderOwns(t *testing.T) {
	root := t.TempDir()
	b := NewBuilder(Options{Roots: []string{root}, Exclude: []string{"tests/**"}})

	got, ok := b.Owns(filepath.Join(root, "src", "Job.php"))
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src", "Job.php"), got)

	_, ok = b.Owns(filepath.Join(root, "src", "notes.txt"))
	assert.False(t, ok)
	_, ok = b.Owns(filepath.Join(root, "tests", "JobTest.php"))
	assert.False(t, ok)
	_, ok = b.Owns(filepath.Join(filepath.Dir(root), "Other.php"))
	assert.False(t, ok)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := writeTree(t, map[string]string{
		"src/Base.php":  "<?php\nnamespace App;\nabstract class Base { use Loggable; public function boot() {} }\n",
		"src/Child.php": "<?php\nnamespace App;\nclass Child extends Base {}\n",
		"src/Log.php":   "<?php\nnamespace App;\ntrait Loggable { public function log() {} }\n",
		"src/fn.php":    "<?php\nnamespace App;\nfunction route() {}\n",
	})
	ix, _, err := NewBuilder(Options{Roots: []string{root}, Workers: 2}).Build(ctx)
	require.NoError(t, err)

	store, err := OpenStore(filepath.Join(t.TempDir(), "cache", "symbols.db"), "test")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Sync(ctx, ix))
	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ok, err := store.Resolves(ctx, `\app\child`)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = store.Resolves(ctx, `App\Missing`)
	assert.False(t, ok)
	ok, _ = store.FunctionExists(ctx, `App\route`)
	assert.True(t, ok)
	ok, _ = store.Resolves(ctx, `App\route`)
	assert.False(t, ok, "functions are not types")

	ok, err = store.MethodExists(ctx, `App\Child`, "BOOT")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = store.MethodExists(ctx, `App\Child`, "log")
	assert.True(t, ok, "method from a trait of the parent")
	ok, _ = store.MethodExists(ctx, `App\Child`, "missing")
	assert.False(t, ok)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, ix.Len(), loaded.Len())
	sym, ok := loaded.Lookup(`App\Base`)
	require.True(t, ok)
	assert.Equal(t, []string{"boot"}, sym.Methods)
	assert.Equal(t, []string{`App\Loggable`}, sym.Traits)

	require.NoError(t, store.DeleteFile(ctx, filepath.Join(root, "src", "Child.php")))
	ok, _ = store.Resolves(ctx, `App\Child`)
	assert.False(t, ok, "cache is cleared on delete")

	require.NoError(t, store.UpsertFile(ctx, "src/New.php", []resolver.Symbol{{Name: `App\Fresh`, Kind: resolver.SymbolClass}}))
	ok, _ = store.Resolves(ctx, `App\Fresh`)
	assert.True(t, ok)
}

func TestOpenStoreRejectsDirectory(t *testing.T) {
	_, err := OpenStore(t.TempDir(), "x")
	assert.Error(t, err)
	_, err = OpenStore("  ", "x")
	assert.Error(t, err)
}
