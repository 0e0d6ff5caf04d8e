// Package lock provides a Redis-backed exclusive lock.
//
// A lock is a key holding a random owner token with an expiry.  It is
// taken with SET NX PX and released by a script that deletes the key only
// while it still holds the caller's token, so a holder whose lock expired
// and was re-acquired by someone else cannot release the new owner's lock.
package lock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
)

var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Locker hands out locks under a key prefix.
type Locker struct {
	rdb    redis.UniversalClient
	prefix string
	retry  time.Duration
	lease  time.Duration
}

// Option configures a Locker.
type Option func(*Locker)

// WithPrefix namespaces every lock key.  Default "lock".
func WithPrefix(p string) Option { return func(l *Locker) { l.prefix = p } }

// WithRetry sets the base polling interval while waiting.  Default 25ms.
func WithRetry(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.retry = d
		}
	}
}

// WithLease sets how long a held lock lives before Redis expires it.
// Default 30s.
func WithLease(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.lease = d
		}
	}
}

// New returns a Locker backed by rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{rdb: rdb, prefix: "lock", retry: 25 * time.Millisecond, lease: 30 * time.Second}
	for _, o := range opts {
		o(l)
	}
	return l
}

// WithLock acquires key, runs fn and releases the lock.  Acquisition polls
// until timeout elapses and then fails with a LockTimeout error.  The lock
// itself expires after the lease, bounding how long a crashed holder can
// block others.  The lease is never shorter than twice timeout, so a
// holder that waits for a nested lock still owns the outer one when fn
// runs.
func (l *Locker) WithLock(ctx context.Context, key string, timeout time.Duration, fn func(ctx context.Context) error) error {
	token, err := l.acquire(ctx, key, timeout)
	if err != nil {
		return err
	}
	defer l.release(key, token)
	return fn(ctx)
}

func (l *Locker) acquire(ctx context.Context, key string, timeout time.Duration) (string, error) {
	token := uuid.NewString()
	full := l.prefix + ":" + key
	deadline := time.Now().Add(timeout)
	lease := max(l.lease, 2*timeout)
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, lease).Result()
		if err != nil {
			return "", fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return token, nil
		}
		wait := l.retry/2 + rand.N(l.retry)
		if remaining := time.Until(deadline); remaining <= 0 {
			return "", apperr.LockTimeout("lock_timeout", "could not lock %s within %s", key, timeout)
		} else if wait > remaining {
			wait = remaining
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
}

// release runs on a fresh context so a canceled request still frees its
// lock.
func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// A key that could not be deleted expires on its own.
	_ = releaseScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, token).Err()
}
