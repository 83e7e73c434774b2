package entity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseForms(t *testing.T) {
	assert := assert.New(t)

	r := Parse("123::alice", KindUser)
	id, ok := r.ID()
	assert.True(ok)
	assert.Equal(uint64(123), id)
	assert.Equal("alice", r.Name())

	r = Parse("alice", KindUser)
	_, ok = r.ID()
	assert.False(ok)
	assert.Equal("alice", r.Name())

	r = Parse("123", KindUser)
	id, ok = r.ID()
	assert.True(ok)
	assert.Equal(uint64(123), id)
	assert.Equal("", r.Name())

	// non-numeric ID side is a literal name, not an error
	r = Parse("abc::alice", KindUser)
	_, ok = r.ID()
	assert.False(ok)
	assert.Equal("abc::alice", r.Name())
}

func TestParseToken(t *testing.T) {
	assert := assert.New(t)

	r, err := ParseToken("#general")
	assert.NoError(err)
	assert.Equal(KindChannel, r.Kind())
	assert.Equal("general", r.Name())

	r, err = ParseToken("&42::Moderators")
	assert.NoError(err)
	assert.Equal(KindRole, r.Kind())
	assert.Equal("&42::Moderators", r.Render())

	r, err = ParseToken("@alice")
	assert.NoError(err)
	assert.Equal(KindUser, r.Kind())

	for _, bad := range []string{"", "general", "#", "  "} {
		_, err := ParseToken(bad)
		assert.Error(err, bad)
	}
}

func TestRender(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("@123::alice", Parse("123::alice", KindUser).Render())
	assert.Equal("#99", Parse("99", KindChannel).Render())
	assert.Equal("#general", Parse("general", KindChannel).Render())
}

func TestResolveIfUnknown(t *testing.T) {
	assert := assert.New(t)

	r := Parse("alice", KindUser)
	assert.False(r.ResolveIfUnknown(0))
	assert.True(r.ResolveIfUnknown(77))
	assert.False(r.ResolveIfUnknown(88))
	id, ok := r.ID()
	assert.True(ok)
	assert.Equal(uint64(77), id)
	assert.Equal("@77::alice", r.Render())

	known := Parse("5::bob", KindUser)
	assert.False(known.ResolveIfUnknown(6))
	id, _ = known.ID()
	assert.Equal(uint64(5), id)
}

func TestResolveIfUnknownConcurrent(t *testing.T) {
	assert := assert.New(t)

	r := Parse("alice", KindUser)
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if r.ResolveIfUnknown(id) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(uint64(i))
	}
	wg.Wait()
	assert.Equal(1, winners)
	_, ok := r.ID()
	assert.True(ok)
}

func TestMatches(t *testing.T) {
	assert := assert.New(t)

	byName := Parse("General", KindChannel)
	assert.True(byName.Matches(1, "general"))
	assert.True(byName.Matches(1, "GENERAL"))
	assert.False(byName.Matches(1, "random"))
	assert.False(byName.Matches(1, ""))

	byID := Parse("10::general", KindChannel)
	assert.True(byID.Matches(10, "renamed"))
	assert.False(byID.Matches(11, "general"))
}
