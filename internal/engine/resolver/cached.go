package resolver

import (
	"context"
	"microscope/internal/shared/observability"
	"microscope/internal/shared/util"
)

type queryKind byte

const (
	queryType queryKind = iota
	queryFunction
	queryMethod
)

type cacheKey struct {
	kind   queryKind
	name   string
	method string
}

// Cached memoizes positive and negative answers of an expensive oracle.
// Errors are never cached.
type Cached struct {
	inner Oracle
	cache *answerCache
}

func NewCached(inner Oracle, capacity int) *Cached {
	return &Cached{inner: inner, cache: newAnswerCache(capacity)}
}

func (c *Cached) Resolves(ctx context.Context, name string) (bool, error) {
	return c.lookup(cacheKey{kind: queryType, name: Key(name)}, func() (bool, error) {
		return c.inner.Resolves(ctx, name)
	})
}

func (c *Cached) FunctionExists(ctx context.Context, name string) (bool, error) {
	return c.lookup(cacheKey{kind: queryFunction, name: Key(name)}, func() (bool, error) {
		return c.inner.FunctionExists(ctx, name)
	})
}

func (c *Cached) MethodExists(ctx context.Context, class, method string) (bool, error) {
	return c.lookup(cacheKey{kind: queryMethod, name: Key(class), method: Key(method)}, func() (bool, error) {
		return c.inner.MethodExists(ctx, class, method)
	})
}

func (c *Cached) lookup(key cacheKey, query func() (bool, error)) (bool, error) {
	if v, ok := c.cache.get(key); ok {
		return v, nil
	}
	v, err := query()
	if err != nil {
		return false, err
	}
	c.cache.put(key, v)
	return v, nil
}

// Purge forgets every memoized answer, e.g. after the index changed.
func (c *Cached) Purge() {
	c.cache.clear()
}

// Len returns the number of memoized answers.
func (c *Cached) Len() int {
	return c.cache.len()
}

// Throttled limits the query rate against a backend that must not be flooded,
// such as a host application answering over a socket.
type Throttled struct {
	inner   Oracle
	limiter *util.Limiter
}

// NewThrottled wraps inner with a limiter of qps queries per second. A
// non-positive qps disables throttling.
func NewThrottled(inner Oracle, qps float64, burst int) *Throttled {
	return &Throttled{inner: inner, limiter: util.NewLimiter(qps, burst)}
}

func (t *Throttled) wait(ctx context.Context) error {
	waited, err := t.limiter.Wait(ctx)
	if waited > 0 {
		observability.OracleThrottleSeconds.Add(waited.Seconds())
	}
	return err
}

func (t *Throttled) Resolves(ctx context.Context, name string) (bool, error) {
	if err := t.wait(ctx); err != nil {
		return false, err
	}
	return t.inner.Resolves(ctx, name)
}

func (t *Throttled) FunctionExists(ctx context.Context, name string) (bool, error) {
	if err := t.wait(ctx); err != nil {
		return false, err
	}
	return t.inner.FunctionExists(ctx, name)
}

func (t *Throttled) MethodExists(ctx context.Context, class, method string) (bool, error) {
	if err := t.wait(ctx); err != nil {
		return false, err
	}
	return t.inner.MethodExists(ctx, class, method)
}
