// Keyed cooldowns, used to throttle repeated rule triggers.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	// Returns true, and starts a new cooldown for the key, if the key has no live cooldown.
	Admit(ctx context.Context, key string) (bool, error)
}

// In-process limiter. Expired entries are purged lazily on each call.
type MemLimiter struct {
	Timeout time.Duration

	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

var _ Limiter = (*MemLimiter)(nil)

// A zero timeout disables throttling.
func NewMemLimiter(timeout time.Duration) *MemLimiter {
	return &MemLimiter{
		Timeout: timeout,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *MemLimiter) Admit(ctx context.Context, key string) (bool, error) {
	if l.Timeout <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, last := range l.entries {
		if now.Sub(last) >= l.Timeout {
			delete(l.entries, k)
		}
	}
	if _, ok := l.entries[key]; ok {
		return false, nil
	}
	l.entries[key] = now
	return true, nil
}

// Number of live (unexpired as of the last call) entries.
func (l *MemLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

var redisLimitPrefix = "cooldown/"

// Limiter shared between processes, backed by redis key expiry.
type RedisLimiter struct {
	Client  *redis.Client
	Prefix  string
	Timeout time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, prefix string, timeout time.Duration) *RedisLimiter {
	return &RedisLimiter{
		Client:  client,
		Prefix:  prefix,
		Timeout: timeout,
	}
}

func (l *RedisLimiter) Admit(ctx context.Context, key string) (bool, error) {
	if l.Timeout <= 0 {
		return true, nil
	}
	return l.Client.SetNX(ctx, redisLimitPrefix+l.Prefix+"/"+key, 1, l.Timeout).Result()
}

// Constructs a limiter for a named scope (eg, a rule label) with the given timeout.
type Factory func(scope string, timeout time.Duration) Limiter

func MemFactory(scope string, timeout time.Duration) Limiter {
	return NewMemLimiter(timeout)
}

func RedisFactory(client *redis.Client) Factory {
	return func(scope string, timeout time.Duration) Limiter {
		return NewRedisLimiter(client, scope, timeout)
	}
}
