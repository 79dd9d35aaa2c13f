package resolver

import (
	"bytes"
	"context"
	"errors"
	"microscope/internal/engine/diagnostic"
	"microscope/internal/engine/parser"
	"microscope/internal/shared/observability"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIndex() *Index {
	ix := NewIndex()
	ix.Add(Symbol{Name: `App\Jobs\Job`, Kind: SymbolClass, Methods: []string{"dispatch"}, Traits: []string{`App\Concerns\Queueable`}})
	ix.Add(Symbol{Name: `App\Concerns\Queueable`, Kind: SymbolTrait, Methods: []string{"onQueue"}})
	ix.Add(Symbol{Name: `App\Contracts\ShouldQueue`, Kind: SymbolInterface, Methods: []string{"queueName"}})
	ix.Add(Symbol{
		Name:       `App\Jobs\SendMail`,
		Kind:       SymbolClass,
		Parent:     `App\Jobs\Job`,
		Interfaces: []string{`App\Contracts\ShouldQueue`},
		Methods:    []string{"__construct", "send"},
		File:       "/app/src/Jobs/SendMail.php",
	})
	ix.Add(Symbol{Name: `App\helpers\money`, Kind: SymbolFunction, File: "/app/src/helpers.php"})
	return ix
}

func TestIndex_Queries(t *testing.T) {
	ctx := context.Background()
	ix := sampleIndex()

	ok, err := ix.Resolves(ctx, `\app\jobs\sendmail`)
	require.NoError(t, err)
	assert.True(t, ok, "type lookups are case-insensitive and ignore the leading separator")

	ok, _ = ix.Resolves(ctx, `App\helpers\money`)
	assert.False(t, ok, "functions are not types")

	ok, _ = ix.FunctionExists(ctx, `App\Helpers\Money`)
	assert.True(t, ok)

	for _, method := range []string{"send", "SEND", "dispatch", "onQueue", "queueName"} {
		ok, err := ix.MethodExists(ctx, `App\Jobs\SendMail`, method)
		require.NoError(t, err)
		assert.True(t, ok, "expected %s to be found through inheritance", method)
	}

	ok, _ = ix.MethodExists(ctx, `App\Jobs\SendMail`, "handle")
	assert.False(t, ok)
	ok, _ = ix.MethodExists(ctx, `App\Missing`, "handle")
	assert.False(t, ok)
}

func TestIndex_CyclicInheritanceTerminates(t *testing.T) {
	ix := NewIndex()
	ix.Add(Symbol{Name: "A", Kind: SymbolClass, Parent: "B"})
	ix.Add(Symbol{Name: "B", Kind: SymbolClass, Parent: "A"})

	ok, err := ix.MethodExists(context.Background(), "A", "run")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_RemoveFile(t *testing.T) {
	ix := sampleIndex()
	before := ix.Len()

	assert.Equal(t, 1, ix.RemoveFile("/app/src/Jobs/SendMail.php"))
	assert.Equal(t, before-1, ix.Len())
	_, ok := ix.Lookup(`App\Jobs\SendMail`)
	assert.False(t, ok)
}

type stubOracle struct {
	types   map[string]bool
	funcs   map[string]bool
	methods map[string]bool
	err     error
	calls   atomic.Int64
}

func (s *stubOracle) Resolves(_ context.Context, name string) (bool, error) {
	s.calls.Add(1)
	return s.types[Key(name)], s.err
}

func (s *stubOracle) FunctionExists(_ context.Context, name string) (bool, error) {
	s.calls.Add(1)
	return s.funcs[Key(name)], s.err
}

func (s *stubOracle) MethodExists(_ context.Context, class, method string) (bool, error) {
	s.calls.Add(1)
	return s.methods[Key(class)+"@"+Key(method)], s.err
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	first := &stubOracle{types: map[string]bool{"a": true}}
	second := &stubOracle{types: map[string]bool{"b": true}}
	chain := Chain{first, second}

	ok, err := chain.Resolves(ctx, "B")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = chain.Resolves(ctx, "C")
	require.NoError(t, err)
	assert.False(t, ok)

	boom := errors.New("registry offline")
	failing := Chain{&stubOracle{err: boom}, second}
	_, err = failing.Resolves(ctx, "B")
	assert.ErrorIs(t, err, boom)

	_, err = Chain{}.FunctionExists(ctx, "x")
	assert.ErrorIs(t, err, ErrNoOracle)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := &stubOracle{types: map[string]bool{`app\user`: true}}
	cached := NewCached(inner, 16)

	for i := 0; i < 3; i++ {
		ok, err := cached.Resolves(ctx, `App\User`)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = cached.Resolves(ctx, `App\Ghost`)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, int64(2), inner.calls.Load(), "positive and negative answers are memoized")

	inner.err = errors.New("timeout")
	_, err := cached.FunctionExists(ctx, "f")
	require.Error(t, err)
	_, err = cached.FunctionExists(ctx, "f")
	require.Error(t, err, "errors are not cached")
}

func TestAnswerCache_Evicts(t *testing.T) {
	c := newAnswerCache(2)
	a := cacheKey{kind: queryType, name: "a"}
	b := cacheKey{kind: queryType, name: "b"}
	fn := cacheKey{kind: queryFunction, name: "a"}

	c.put(a, true)
	c.put(b, false)
	c.get(a)
	c.put(fn, true)

	_, ok := c.get(b)
	assert.False(t, ok, "least recently used entry is evicted")
	found, ok := c.get(a)
	assert.True(t, ok)
	assert.True(t, found)
	found, ok = c.get(fn)
	assert.True(t, ok)
	assert.True(t, found, "query kinds do not share entries")
	assert.Equal(t, 2, c.len())

	c.put(a, false)
	found, _ = c.get(a)
	assert.False(t, found, "put overwrites")
	assert.Equal(t, 2, c.len())

	c.clear()
	assert.Equal(t, 0, c.len())
	_, ok = c.get(a)
	assert.False(t, ok)
}

func TestThrottled(t *testing.T) {
	inner := &stubOracle{types: map[string]bool{"a": true}}
	throttled := NewThrottled(inner, 1, 1)

	ok, err := throttled.Resolves(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = throttled.Resolves(ctx, "A")
	assert.Error(t, err, "second query must wait longer than the deadline")

	unlimited := NewThrottled(inner, 0, 0)
	for i := 0; i < 10; i++ {
		_, err := unlimited.FunctionExists(context.Background(), "f")
		require.NoError(t, err)
	}
}

func TestBuiltins(t *testing.T) {
	ctx := context.Background()
	b := NewBuiltins([]string{`Illuminate\Support\Str`}, []string{"app"})

	for _, name := range []string{"Exception", `\DateTimeImmutable`, "stdclass", `Illuminate\Support\Str`} {
		ok, err := b.Resolves(ctx, name)
		require.NoError(t, err)
		assert.True(t, ok, name)
	}
	ok, _ := b.FunctionExists(ctx, `\strlen`)
	assert.True(t, ok)
	ok, _ = b.FunctionExists(ctx, "app")
	assert.True(t, ok)
	ok, _ = b.Resolves(ctx, "# Classes")
	assert.False(t, ok, "comment lines are not symbols")
	ok, _ = b.MethodExists(ctx, "Exception", "getMessage")
	assert.False(t, ok)
}

func TestManifest_RoundTrip(t *testing.T) {
	src := `
types:
  App\Jobs\SendMail:
    parent: App\Jobs\Job
    methods: [handle]
  App\Jobs\Job:
    kind: class
    methods: [dispatch]
functions: [app, config]
`
	ix, err := ReadManifest(strings.NewReader(src))
	require.NoError(t, err)

	ctx := context.Background()
	ok, _ := ix.MethodExists(ctx, `App\Jobs\SendMail`, "dispatch")
	assert.True(t, ok)
	ok, _ = ix.FunctionExists(ctx, "config")
	assert.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, WriteManifest(&buf, ix))
	again, err := ReadManifest(&buf)
	require.NoError(t, err)
	assert.Equal(t, ix.Symbols(), again.Symbols())

	_, err = ReadManifest(strings.NewReader("types:\n  X:\n    kind: function\n"))
	assert.Error(t, err)

	empty, err := ReadManifest(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestChecker_CallableMethodMissing(t *testing.T) {
	ix := NewIndex()
	ix.Add(Symbol{Name: `App\Jobs\SendMail`, Kind: SymbolClass, Methods: []string{"send"}})
	checker := NewChecker(ix)

	calls := []parser.CallableReference{
		{ClassName: `App\Jobs\SendMail`, MethodName: "handle", Literal: `\App\Jobs\SendMail@handle`, Line: 7},
		{ClassName: `App\Jobs\Gone`, MethodName: "handle", Literal: `App\Jobs\Gone@handle`, Line: 8},
		{ClassName: `App\Jobs\SendMail`, MethodName: "send", Literal: `App\Jobs\SendMail@send`, Line: 9},
	}
	diags, err := checker.CheckCallables(context.Background(), "routes.php", calls)
	require.NoError(t, err)
	require.Len(t, diags, 2)

	assert.Equal(t, diagnostic.UnresolvedCallableMethod, diags[0].Kind)
	assert.Equal(t, 7, diags[0].Line)
	assert.Equal(t, `App\Jobs\SendMail@handle`, diags[0].Symbol)
	assert.Equal(t, diagnostic.UnresolvedCallableClass, diags[1].Kind, "a missing class is reported without a method check")
	assert.Equal(t, 8, diags[1].Line)
}

func TestChecker_Imports(t *testing.T) {
	ix := sampleIndex()
	checker := NewChecker(Chain{ix, NewBuiltins(nil, nil)})

	imports := []parser.ImportStatement{
		{Name: `App\Jobs\SendMail`, Alias: "SendMail", Kind: parser.ImportClass, Line: 3},
		{Name: `App\Jobs\Missing`, Alias: "Missing", Kind: parser.ImportClass, Line: 4},
		{Name: `App\helpers\money`, Alias: "money", Kind: parser.ImportFunction, Line: 5},
		{Name: `App\helpers\gone`, Alias: "gone", Kind: parser.ImportFunction, Line: 6},
		{Name: `App\VERSION`, Alias: "VERSION", Kind: parser.ImportConst, Line: 7},
	}
	diags, err := checker.CheckImports(context.Background(), "a.php", imports)
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.Equal(t, 4, diags[0].Line)
	assert.Equal(t, 6, diags[1].Line)
	for _, d := range diags {
		assert.Equal(t, diagnostic.UnresolvedImport, d.Kind)
	}
}

func TestChecker_References(t *testing.T) {
	checker := NewChecker(Chain{sampleIndex(), NewBuiltins(nil, nil)})
	refs := []parser.SymbolReference{
		{RawName: `\RuntimeException`, Name: "RuntimeException", Line: 2},
		{RawName: `Jobs\SendMail`, Name: `App\Jobs\SendMail`, Line: 3},
		{RawName: `helpers\money`, Name: `App\helpers\money`, Line: 4},
		{RawName: "Ghost", Name: `App\Ghost`, Line: 5, Position: parser.PosNew},
	}
	diags, err := checker.CheckReferences(context.Background(), "a.php", refs)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostic.UnresolvedClass, diags[0].Kind)
	assert.Equal(t, `App\Ghost`, diags[0].Symbol)
}

func TestChecker_OracleErrorIsNotUnresolved(t *testing.T) {
	boom := errors.New("registry offline")
	checker := NewChecker(&stubOracle{err: boom})

	diags, err := checker.CheckImports(context.Background(), "a.php", []parser.ImportStatement{{Name: "X", Kind: parser.ImportClass, Line: 1}})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, diags)

	_, err = checker.CheckCallables(context.Background(), "a.php", []parser.CallableReference{{ClassName: `A\B`, MethodName: "c"}})
	assert.ErrorIs(t, err, boom)
}

func TestCachedPurge(t *testing.T) {
	ctx := context.Background()
	inner := &stubOracle{types: map[string]bool{}}
	cached := NewCached(inner, 16)

	ok, err := cached.Resolves(ctx, `App\Late`)
	require.NoError(t, err)
	assert.False(t, ok)

	inner.types[`app\late`] = true
	ok, _ = cached.Resolves(ctx, `App\Late`)
	assert.False(t, ok, "stale answer until purged")

	cached.Purge()
	assert.Zero(t, cached.Len())
	ok, err = cached.Resolves(ctx, `App\Late`)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInstrumented(t *testing.T) {
	ctx := context.Background()
	found := testutil.ToFloat64(observability.OracleQueriesTotal.WithLabelValues("type", "found"))
	missing := testutil.ToFloat64(observability.OracleQueriesTotal.WithLabelValues("method", "missing"))
	failed := testutil.ToFloat64(observability.OracleQueriesTotal.WithLabelValues("function", "error"))

	o := NewInstrumented(sampleIndex())
	ok, err := o.Resolves(ctx, `App\Jobs\SendMail`)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = o.MethodExists(ctx, `App\Jobs\SendMail`, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewInstrumented(&stubOracle{err: errors.New("down")}).FunctionExists(ctx, "f")
	require.Error(t, err)

	assert.Equal(t, found+1, testutil.ToFloat64(observability.OracleQueriesTotal.WithLabelValues("type", "found")))
	assert.Equal(t, missing+1, testutil.ToFloat64(observability.OracleQueriesTotal.WithLabelValues("method", "missing")))
	assert.Equal(t, failed+1, testutil.ToFloat64(observability.OracleQueriesTotal.WithLabelValues("function", "error")))
}
