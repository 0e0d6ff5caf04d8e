package config

import "time"

// IdempotencyConfig controls the idempotency store.
type IdempotencyConfig struct {
	TTL    time.Duration // how long completed responses are replayed
	Wait   time.Duration // how long a duplicate waits for the first request
	Prefix string
}

// LoadIdempotencyConfig reads IDEMPOTENCY_* variables.  Defaults keep
// responses for 24h and let duplicates wait 10s.
func LoadIdempotencyConfig() IdempotencyConfig {
	c := IdempotencyConfig{
		TTL:    envDur("IDEMPOTENCY_TTL", 24*time.Hour),
		Wait:   envDur("IDEMPOTENCY_WAIT", 10*time.Second),
		Prefix: envStr("IDEMPOTENCY_PREFIX", "idem"),
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.Wait <= 0 {
		c.Wait = 10 * time.Second
	}
	return c
}

// LockConfig controls the distributed lock.
type LockConfig struct {
	Timeout time.Duration // longest wait for a lock before giving up
	Retry   time.Duration // base polling interval while waiting
	Lease   time.Duration // expiry of a held lock
	Prefix  string
}

// LoadLockConfig reads LOCK_* variables.
func LoadLockConfig() LockConfig {
	c := LockConfig{
		Timeout: envDur("LOCK_TIMEOUT", 10*time.Second),
		Retry:   envDur("LOCK_RETRY", 25*time.Millisecond),
		Lease:   envDur("LOCK_LEASE", 30*time.Second),
		Prefix:  envStr("LOCK_PREFIX", "lock"),
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Retry <= 0 || c.Retry > c.Timeout {
		c.Retry = 25 * time.Millisecond
	}
	if c.Lease < 2*c.Timeout {
		c.Lease = 2 * c.Timeout
	}
	return c
}
