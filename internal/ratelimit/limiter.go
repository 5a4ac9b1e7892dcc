// Package ratelimit counts bid submissions per user in fixed one-minute
// windows kept in Redis, shared by the HTTP and websocket bid paths.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const Window = time.Minute

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter is safe for concurrent use. A nil *Limiter allows everything.
type Limiter struct {
	rdb       *redis.Client
	perMinute int
	now       func() time.Time
}

// New returns nil when rdb is nil or perMinute is not positive, which
// disables limiting.
func New(rdb *redis.Client, perMinute int) *Limiter {
	if rdb == nil || perMinute <= 0 {
		return nil
	}
	return &Limiter{rdb: rdb, perMinute: perMinute, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow replaces the time source
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	if l != nil {
		l.now = now
	}
	return l
}

func key(userID string, window time.Time) string {
	return fmt.Sprintf("ratelimit:bids:%s:%d", userID, window.Unix())
}

// Allow counts one submission for userID. On a Redis error the decision
// still allows the submission and the error is returned for logging.
func (l *Limiter) Allow(ctx context.Context, userID string) (Decision, error) {
	if l == nil {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	window := now.Truncate(Window)
	k := key(userID, window)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true, Limit: l.perMinute}, fmt.Errorf("ratelimit: %w", err)
	}

	count := incr.Val()
	d := Decision{
		Allowed:   count <= int64(l.perMinute),
		Limit:     l.perMinute,
		Remaining: max(int64(l.perMinute)-count, 0),
	}
	if !d.Allowed {
		d.RetryAfter = window.Add(Window).Sub(now)
	}
	return d, nil
}
