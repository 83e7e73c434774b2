package flagstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemFlagStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	fs := NewMemFlagStore()

	l, err := fs.Get(ctx, "1/20")
	assert.NoError(err)
	assert.Empty(l)

	assert.NoError(fs.Add(ctx, "1/20", []string{"rule:spam", "rule:links"}))
	assert.NoError(fs.Add(ctx, "1/20", []string{"rule:spam", "rule:caps"}))
	l, err = fs.Get(ctx, "1/20")
	assert.NoError(err)
	assert.Equal([]string{"rule:caps", "rule:links", "rule:spam"}, l)

	assert.NoError(fs.Remove(ctx, "1/20", []string{"rule:spam", "rule:caps", "rule:other"}))
	l, err = fs.Get(ctx, "1/20")
	assert.NoError(err)
	assert.Equal([]string{"rule:links"}, l)

	assert.NoError(fs.Remove(ctx, "missing", []string{"x"}))
}

func TestMemFlagStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	fs := NewMemFlagStore()
	var wg sync.WaitGroup
	for _, f := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(f string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				assert.NoError(fs.Add(ctx, "k", []string{f}))
				_, err := fs.Get(ctx, "k")
				assert.NoError(err)
			}
		}(f)
	}
	wg.Wait()
	l, err := fs.Get(ctx, "k")
	assert.NoError(err)
	assert.Equal([]string{"a", "b", "c", "d"}, l)
}
