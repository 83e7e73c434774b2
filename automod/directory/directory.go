package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/bluesky-social/chatmod/automod/entity"

	"golang.org/x/text/cases"
)

// A channel, role, or user as known to the platform.
type Entity struct {
	GuildID uint64      `json:"guild"`
	Kind    entity.Kind `json:"kind"`
	ID      uint64      `json:"id"`
	Name    string      `json:"name"`
}

// Indicates that no entity matched a lookup. Callers treat this as "no match", not as a failure.
var ErrNotFound = errors.New("entity not found")

// Lookup of channels, roles, and users within a guild.
//
// Implementations must tolerate concurrent callers. Some example implementations:
//   - direct platform API calls
//   - caching layer in front of another Directory
//   - in-memory fixture, for tests
type Directory interface {
	LookupID(ctx context.Context, guildID uint64, kind entity.Kind, id uint64) (*Entity, error)
	// Returns candidates ordered best-first. An empty result is returned as ErrNotFound.
	LookupName(ctx context.Context, guildID uint64, kind entity.Kind, name string) ([]Entity, error)

	// Flushes any cache of the indicated entity. If directory is not using caching, can ignore this.
	Purge(ctx context.Context, guildID uint64, kind entity.Kind, id uint64) error
}

// Resolves a configured reference to a concrete entity. Name-only references resolve only to an exact (case-insensitive) name match, and learn their ID on success. Other candidates, such as prefix matches from a platform search, are never used.
func Resolve(ctx context.Context, dir Directory, guildID uint64, ref *entity.Ref) (*Entity, error) {
	if id, ok := ref.ID(); ok {
		return dir.LookupID(ctx, guildID, ref.Kind(), id)
	}
	candidates, err := dir.LookupName(ctx, guildID, ref.Kind(), ref.Name())
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if ref.Matches(c.ID, c.Name) {
			ref.ResolveIfUnknown(c.ID)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%s %q: no exact match among %d candidates: %w", ref.Kind(), ref.Name(), len(candidates), ErrNotFound)
}

func foldName(s string) string {
	return cases.Fold().String(s)
}
