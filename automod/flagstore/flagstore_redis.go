package flagstore

import (
	"context"
	"slices"

	"github.com/redis/go-redis/v9"
)

var redisFlagPrefix string = "chatmod/flags/"

// Flags stored as redis sets, one set per key.
type RedisFlagStore struct {
	Client *redis.Client
}

var _ FlagStore = (*RedisFlagStore)(nil)

func NewRedisFlagStore(rdb *redis.Client) *RedisFlagStore {
	return &RedisFlagStore{
		Client: rdb,
	}
}

func (s *RedisFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	l, err := s.Client.SMembers(ctx, redisFlagPrefix+key).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(l)
	return l, nil
}

func (s *RedisFlagStore) Add(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	members := make([]any, len(flags))
	for i, f := range flags {
		members[i] = f
	}
	return s.Client.SAdd(ctx, redisFlagPrefix+key, members...).Err()
}

func (s *RedisFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	members := make([]any, len(flags))
	for i, f := range flags {
		members[i] = f
	}
	return s.Client.SRem(ctx, redisFlagPrefix+key, members...).Err()
}
