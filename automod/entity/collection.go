package entity

import (
	"fmt"
)

// Named identifies an observed entity (as opposed to a configured Ref).
type Named struct {
	ID   uint64
	Name string
}

// The entities attached to a single message: where it was posted, who posted it, and their roles.
type Subject struct {
	Channel Named
	User    Named
	Roles   []Named
}

// Immutable set of references, partitioned by kind. Only the contained Refs may change, by lazily learning their IDs.
type Collection struct {
	channels []*Ref
	roles    []*Ref
	users    []*Ref
}

// Builds a collection from sigil-prefixed configuration tokens.
func NewCollection(tokens []string) (*Collection, error) {
	c := &Collection{}
	for _, tok := range tokens {
		ref, err := ParseToken(tok)
		if err != nil {
			return nil, err
		}
		if err := c.add(ref); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collection) add(ref *Ref) error {
	switch ref.Kind() {
	case KindChannel:
		c.channels = append(c.channels, ref)
	case KindRole:
		c.roles = append(c.roles, ref)
	case KindUser:
		c.users = append(c.users, ref)
	default:
		return fmt.Errorf("unsupported entity kind in collection: %s", ref.Kind())
	}
	return nil
}

func (c *Collection) refs(kind Kind) []*Ref {
	switch kind {
	case KindChannel:
		return c.channels
	case KindRole:
		return c.roles
	case KindUser:
		return c.users
	default:
		return nil
	}
}

// Checks whether any reference of the given kind matches. A name match against a reference without a known ID records the observed ID.
func (c *Collection) Contains(kind Kind, id uint64, name string) bool {
	if c == nil {
		return false
	}
	for _, ref := range c.refs(kind) {
		if ref.Matches(id, name) {
			ref.ResolveIfUnknown(id)
			return true
		}
	}
	return false
}

// True if the channel, the user, or any of the user's roles is in the collection.
func (c *Collection) ContainsSubject(s Subject) bool {
	if c.IsEmpty() {
		return false
	}
	if c.Contains(KindChannel, s.Channel.ID, s.Channel.Name) {
		return true
	}
	if c.Contains(KindUser, s.User.ID, s.User.Name) {
		return true
	}
	for _, role := range s.Roles {
		if c.Contains(KindRole, role.ID, role.Name) {
			return true
		}
	}
	return false
}

// True if no references of any kind are present. This says nothing about whether a list was configured at all.
func (c *Collection) IsEmpty() bool {
	return c.Len() == 0
}

func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.channels) + len(c.roles) + len(c.users)
}
