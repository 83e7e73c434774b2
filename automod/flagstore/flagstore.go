// Per-subject sets of string flags. The engine flags users with the labels of rules they have triggered, and reports show that history.
package flagstore

import (
	"context"
)

type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	// Does not error if flags are not in the set.
	Remove(ctx context.Context, key string, flags []string) error
}
