package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket for outbound queries. The zero rate means
// unlimited and is represented by a nil *Limiter, whose methods never block.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter allows perSecond queries per second with the given burst. A
// non-positive rate returns nil.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))}
}

// Wait takes one token, blocking until it is available or ctx is done, and
// reports how long it blocked.
func (l *Limiter) Wait(ctx context.Context) (time.Duration, error) {
	if l == nil {
		return 0, ctx.Err()
	}
	started := time.Now()
	err := l.bucket.Wait(ctx)
	return time.Since(started), err
}
