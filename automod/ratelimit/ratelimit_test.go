package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func TestMemLimiterBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := NewMemLimiter(10 * time.Second)
	l.now = clock.now

	ok, err := l.Admit(ctx, "chan1")
	assert.NoError(err)
	assert.True(ok)
	ok, err = l.Admit(ctx, "chan1")
	assert.NoError(err)
	assert.False(ok)

	// different key is independent
	ok, _ = l.Admit(ctx, "chan2")
	assert.True(ok)

	clock.t = clock.t.Add(9 * time.Second)
	ok, _ = l.Admit(ctx, "chan1")
	assert.False(ok)

	// elapsed == timeout counts as expired
	clock.t = clock.t.Add(1 * time.Second)
	ok, _ = l.Admit(ctx, "chan1")
	assert.True(ok)
	// chan2 was purged on that access, and chan1 re-recorded
	assert.Equal(1, l.Len())
}

func TestMemLimiterZeroTimeout(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	l := NewMemLimiter(0)
	for i := 0; i < 3; i++ {
		ok, err := l.Admit(ctx, "k")
		assert.NoError(err)
		assert.True(ok)
	}
	assert.Equal(0, l.Len())
}

func TestMemLimiterConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	l := NewMemLimiter(time.Hour)
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := map[string]int{}
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			ok, err := l.Admit(ctx, key)
			assert.NoError(err)
			if ok {
				mu.Lock()
				admitted[key]++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(4, len(admitted))
	for _, n := range admitted {
		assert.Equal(1, n)
	}
}

func TestRedisLimiterBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	opt, err := redis.ParseURL("redis://localhost:6379/0")
	if err != nil {
		t.Fail()
	}
	l := NewRedisLimiter(redis.NewClient(opt), "test", 500*time.Millisecond)
	ok, err := l.Admit(ctx, "chan1")
	assert.NoError(err)
	assert.True(ok)
	ok, err = l.Admit(ctx, "chan1")
	assert.NoError(err)
	assert.False(ok)
	time.Sleep(600 * time.Millisecond)
	ok, err = l.Admit(ctx, "chan1")
	assert.NoError(err)
	assert.True(ok)
}
