package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/bluesky-social/chatmod/automod/cachestore"
	"github.com/bluesky-social/chatmod/automod/entity"

	"github.com/puzpuzpuz/xsync/v3"
)

// Caching layer in front of another Directory. Concurrent lookups of the same ID are coalesced into a single inner request; cache population is last-writer-wins.
type CacheDirectory struct {
	Inner   Directory
	Cache   cachestore.CacheStore
	lookups *xsync.MapOf[string, chan struct{}]
}

var _ Directory = (*CacheDirectory)(nil)

func NewCacheDirectory(inner Directory, cache cachestore.CacheStore) *CacheDirectory {
	return &CacheDirectory{
		Inner:   inner,
		Cache:   cache,
		lookups: xsync.NewMapOf[string, chan struct{}](),
	}
}

func idCacheKey(guildID uint64, kind entity.Kind, id uint64) string {
	return fmt.Sprintf("%d/%s/%d", guildID, kind, id)
}

func nameCacheKey(guildID uint64, kind entity.Kind, name string) string {
	return fmt.Sprintf("%d/%s/%s", guildID, kind, foldName(name))
}

func (d *CacheDirectory) cached(ctx context.Context, key string) (*Entity, bool) {
	var ent Entity
	found, err := cachestore.GetJSON(ctx, d.Cache, "entity", key, &ent)
	if err != nil || !found {
		return nil, false
	}
	return &ent, true
}

func (d *CacheDirectory) LookupID(ctx context.Context, guildID uint64, kind entity.Kind, id uint64) (*Entity, error) {
	key := idCacheKey(guildID, kind, id)
	if ent, ok := d.cached(ctx, key); ok {
		entityCacheHits.WithLabelValues(kind.String()).Inc()
		return ent, nil
	}
	entityCacheMisses.WithLabelValues(kind.String()).Inc()

	// Coalesce multiple requests for the same entity
	res := make(chan struct{})
	pending, loaded := d.lookups.LoadOrStore(key, res)
	if loaded {
		entityRequestsCoalesced.WithLabelValues(kind.String()).Inc()
		select {
		case <-pending:
			if ent, ok := d.cached(ctx, key); ok {
				return ent, nil
			}
			// the other lookup failed; try on our own
			return d.Inner.LookupID(ctx, guildID, kind, id)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer func() {
		d.lookups.Delete(key)
		close(res)
	}()

	ent, err := d.Inner.LookupID(ctx, guildID, kind, id)
	if err != nil {
		return nil, err
	}
	if err := cachestore.SetJSON(ctx, d.Cache, "entity", key, ent); err != nil {
		return nil, fmt.Errorf("caching entity: %w", err)
	}
	return ent, nil
}

func (d *CacheDirectory) LookupName(ctx context.Context, guildID uint64, kind entity.Kind, name string) ([]Entity, error) {
	key := nameCacheKey(guildID, kind, name)
	var ents []Entity
	found, err := cachestore.GetJSON(ctx, d.Cache, "entity-name", key, &ents)
	if err == nil && found && len(ents) > 0 {
		entityCacheHits.WithLabelValues(kind.String()).Inc()
		return ents, nil
	}
	entityCacheMisses.WithLabelValues(kind.String()).Inc()

	ents, err = d.Inner.LookupName(ctx, guildID, kind, name)
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 {
		return nil, fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
	}
	if err := cachestore.SetJSON(ctx, d.Cache, "entity-name", key, ents); err != nil {
		return nil, fmt.Errorf("caching entity name lookup: %w", err)
	}
	for _, e := range ents {
		if err := cachestore.SetJSON(ctx, d.Cache, "entity", idCacheKey(guildID, kind, e.ID), e); err != nil {
			return nil, fmt.Errorf("caching entity: %w", err)
		}
	}
	return ents, nil
}

// Purges the ID entry here and in the inner directory. Name lookups expire with the cache TTL.
func (d *CacheDirectory) Purge(ctx context.Context, guildID uint64, kind entity.Kind, id uint64) error {
	err := d.Cache.Purge(ctx, "entity", idCacheKey(guildID, kind, id))
	return errors.Join(err, d.Inner.Purge(ctx, guildID, kind, id))
}
