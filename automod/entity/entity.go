package entity

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/text/cases"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindChannel
	KindRole
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindRole:
		return "role"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

// Sigil returns the single-character prefix used for this kind in configuration tokens.
func (k Kind) Sigil() string {
	switch k {
	case KindChannel:
		return "#"
	case KindRole:
		return "&"
	case KindUser:
		return "@"
	default:
		return ""
	}
}

const separator = "::"

// Ref is a reference to a single channel, role, or user, by numeric ID and/or display name.
//
// The ID may be learned lazily, the first time the reference matches an observed entity by name. That upgrade happens at most once per Ref, and is safe for concurrent callers. Everything else is immutable.
type Ref struct {
	kind Kind
	name string
	// zero means "not yet known"; platform IDs are never zero
	id atomic.Uint64
}

// Parses a single configuration token, with any sigil already removed by the caller.
//
// Accepted forms are "123::alice", "123", and "alice". If the part before "::" is not numeric, the whole token is treated as a literal name.
func Parse(token string, kind Kind) *Ref {
	r := &Ref{kind: kind}
	if idPart, namePart, ok := strings.Cut(token, separator); ok {
		if id, err := strconv.ParseUint(idPart, 10, 64); err == nil && id != 0 {
			r.id.Store(id)
			r.name = namePart
			return r
		}
		r.name = token
		return r
	}
	if id, err := strconv.ParseUint(token, 10, 64); err == nil && id != 0 {
		r.id.Store(id)
		return r
	}
	r.name = token
	return r
}

// Parses a token carrying its own kind sigil ("#general", "@alice", "&Moderators").
func ParseToken(token string) (*Ref, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty entity token")
	}
	var kind Kind
	switch token[0] {
	case '#':
		kind = KindChannel
	case '@':
		kind = KindUser
	case '&':
		kind = KindRole
	default:
		return nil, fmt.Errorf("entity token %q must start with '#', '@' or '&'", token)
	}
	rest := token[1:]
	if rest == "" {
		return nil, fmt.Errorf("entity token %q has no ID or name", token)
	}
	return Parse(rest, kind), nil
}

func (r *Ref) Kind() Kind {
	return r.kind
}

func (r *Ref) Name() string {
	return r.name
}

// Returns the ID, and whether it is known yet.
func (r *Ref) ID() (uint64, bool) {
	id := r.id.Load()
	return id, id != 0
}

// Records the observed ID if none is known yet. Returns true only for the single caller which performed the upgrade.
func (r *Ref) ResolveIfUnknown(observed uint64) bool {
	if observed == 0 {
		return false
	}
	if !r.id.CompareAndSwap(0, observed) {
		return false
	}
	slog.Info("resolved entity by name; consider using the canonical form in configuration",
		"kind", r.kind.String(),
		"name", r.name,
		"id", observed,
		"canonical", r.Render(),
	)
	return true
}

// Checks whether this reference points at the given entity. A known ID is authoritative; otherwise names are compared case-insensitively.
func (r *Ref) Matches(id uint64, name string) bool {
	if known, ok := r.ID(); ok {
		return known == id
	}
	if r.name == "" || name == "" {
		return false
	}
	return foldName(r.name) == foldName(name)
}

// a Caser is stateful, so one is made per call
func foldName(s string) string {
	return cases.Fold().String(s)
}

// Canonical configuration form, for display and logging.
func (r *Ref) Render() string {
	id, ok := r.ID()
	switch {
	case ok && r.name != "":
		return fmt.Sprintf("%s%d%s%s", r.kind.Sigil(), id, separator, r.name)
	case ok:
		return fmt.Sprintf("%s%d", r.kind.Sigil(), id)
	default:
		return r.kind.Sigil() + r.name
	}
}

func (r *Ref) String() string {
	return r.Render()
}
