package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type thing struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

func TestMemCacheStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(10, time.Hour)
	v, err := cs.Get(ctx, "user", "1")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(cs.Set(ctx, "user", "1", "alice"))
	v, err = cs.Get(ctx, "user", "1")
	assert.NoError(err)
	assert.Equal("alice", v)

	// namespaces are distinct
	v, err = cs.Get(ctx, "role", "1")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(cs.Purge(ctx, "user", "1"))
	v, err = cs.Get(ctx, "user", "1")
	assert.NoError(err)
	assert.Equal("", v)
}

func TestJSONHelpers(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(10, time.Hour)
	var out thing
	found, err := GetJSON(ctx, cs, "thing", "a", &out)
	assert.NoError(err)
	assert.False(found)

	assert.NoError(SetJSON(ctx, cs, "thing", "a", thing{ID: 3, Name: "three"}))
	found, err = GetJSON(ctx, cs, "thing", "a", &out)
	assert.NoError(err)
	assert.True(found)
	assert.Equal(thing{ID: 3, Name: "three"}, out)

	assert.NoError(cs.Set(ctx, "thing", "b", "{not json"))
	_, err = GetJSON(ctx, cs, "thing", "b", &out)
	assert.Error(err)
}

func TestRedisCacheStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	opt, err := redis.ParseURL("redis://localhost:6379/0")
	if err != nil {
		t.Fail()
	}
	cs := NewRedisCacheStore(redis.NewClient(opt), time.Minute)
	assert.NoError(cs.Set(ctx, "user", "1", "alice"))
	v, err := cs.Get(ctx, "user", "1")
	assert.NoError(err)
	assert.Equal("alice", v)
	assert.NoError(cs.Purge(ctx, "user", "1"))
	v, err = cs.Get(ctx, "user", "1")
	assert.NoError(err)
	assert.Equal("", v)
}
