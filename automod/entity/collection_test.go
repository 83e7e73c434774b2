package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionContains(t *testing.T) {
	assert := assert.New(t)

	c, err := NewCollection([]string{"#general", "&5::Mods", "@alice"})
	assert.NoError(err)
	assert.Equal(3, c.Len())
	assert.False(c.IsEmpty())

	assert.True(c.Contains(KindChannel, 100, "General"))
	assert.False(c.Contains(KindUser, 100, "general"))
	assert.True(c.Contains(KindRole, 5, "whatever"))
	assert.False(c.Contains(KindRole, 6, "Mods"))

	// the name match upgraded the channel ref to an ID
	assert.True(c.Contains(KindChannel, 100, "renamed"))
	assert.False(c.Contains(KindChannel, 101, "general"))
}

func TestCollectionSubject(t *testing.T) {
	assert := assert.New(t)

	c, err := NewCollection([]string{"&Mods"})
	assert.NoError(err)

	s := Subject{
		Channel: Named{ID: 1, Name: "general"},
		User:    Named{ID: 2, Name: "alice"},
		Roles:   []Named{{ID: 3, Name: "Members"}, {ID: 4, Name: "mods"}},
	}
	assert.True(c.ContainsSubject(s))

	s.Roles = s.Roles[:1]
	assert.False(c.ContainsSubject(s))
}

func TestCollectionEmpty(t *testing.T) {
	assert := assert.New(t)

	c, err := NewCollection(nil)
	assert.NoError(err)
	assert.True(c.IsEmpty())
	assert.False(c.ContainsSubject(Subject{User: Named{ID: 1, Name: "a"}}))

	var nilc *Collection
	assert.True(nilc.IsEmpty())
	assert.False(nilc.Contains(KindUser, 1, "a"))

	_, err = NewCollection([]string{"nosigil"})
	assert.Error(err)
}
