package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bluesky-social/chatmod/automod/entity"
)

// A fake directory, for use in tests
type MockDirectory struct {
	mu       sync.RWMutex
	Entities map[uint64][]Entity
}

var _ Directory = (*MockDirectory)(nil)

func NewMockDirectory() *MockDirectory {
	return &MockDirectory{
		Entities: make(map[uint64][]Entity),
	}
}

func (d *MockDirectory) Insert(ents ...Entity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range ents {
		d.Entities[e.GuildID] = append(d.Entities[e.GuildID], e)
	}
}

func (d *MockDirectory) LookupID(ctx context.Context, guildID uint64, kind entity.Kind, id uint64) (*Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range d.Entities[guildID] {
		if e.Kind == kind && e.ID == id {
			out := e
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}

// Prefix match on folded names, exact matches first.
func (d *MockDirectory) LookupName(ctx context.Context, guildID uint64, kind entity.Kind, name string) ([]Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	q := foldName(name)
	var exact, prefix []Entity
	for _, e := range d.Entities[guildID] {
		if e.Kind != kind {
			continue
		}
		n := foldName(e.Name)
		if n == q {
			exact = append(exact, e)
		} else if strings.HasPrefix(n, q) {
			prefix = append(prefix, e)
		}
	}
	out := append(exact, prefix...)
	if len(out) == 0 {
		return nil, fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
	}
	return out, nil
}

func (d *MockDirectory) Purge(ctx context.Context, guildID uint64, kind entity.Kind, id uint64) error {
	return nil
}
