package response

import (
	"testing"
	"time"

	"github.com/bluesky-social/chatmod/automod/entity"

	"github.com/stretchr/testify/assert"
)

func TestParseVerbAliases(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		line string
		verb Verb
	}{
		{"remove", VerbRemove},
		{"delete", VerbRemove},
		{"ERASE", VerbRemove},
		{"say #_ hi", VerbSay},
		{"reply @_ hi", VerbSay},
		{"send 123 hi", VerbSay},
		{"report #mod-log", VerbReport},
		{"ban", VerbBan},
		{"kick", VerbKick},
		{"grantrole Muted", VerbGrantRole},
		{"addrole Muted", VerbGrantRole},
		{"revokerole Muted", VerbRevokeRole},
		{"removerole Muted", VerbRevokeRole},
		{"delrole Muted", VerbRevokeRole},
		{"exec /bin/true", VerbExec},
		{"run /bin/true", VerbExec},
	}
	for _, fix := range fixtures {
		r, err := Parse(fix.line)
		if !assert.NoError(err, fix.line) {
			continue
		}
		assert.Equal(fix.verb, r.Verb, fix.line)
		assert.Equal(fix.verb, r.Action.verb(), fix.line)
	}
}

func TestParseErrors(t *testing.T) {
	assert := assert.New(t)

	for _, line := range []string{
		"",
		"   ",
		"explode",
		"remove now",
		"kick @someone",
		"say",
		"say #_",
		"say #_    ",
		"say nobody hello",
		"report",
		"report @_",
		"report @alice",
		"report #mod-log verbose",
		"report #mod-log brief extra",
		"ban 8",
		"ban -1",
		"ban seven",
		"ban 1 2",
		"grantrole",
		"grantrole @alice &",
		"grantrole #general Muted",
		"revokerole #_ Muted",
		"grantrole @bob @carol Muted",
		"grantrole @alice #Muted",
		"grantrole #Muted",
		"exec",
		"exec 'unterminated",
	} {
		_, err := Parse(line)
		assert.ErrorIs(err, ErrInvalidResponse, line)
	}
}

func TestParseSay(t *testing.T) {
	assert := assert.New(t)

	r, err := Parse("say #_ Please don't spam, @_.")
	assert.NoError(err)
	act := r.Action.(SayAction)
	assert.True(act.Target.Self)
	assert.Equal(entity.KindChannel, act.Target.Kind)
	assert.Equal("Please don't spam, @_.", act.Text)
	assert.Equal("#_", act.Target.String())

	r, err = Parse("say @alice   hello   there")
	assert.NoError(err)
	act = r.Action.(SayAction)
	assert.Equal(entity.KindUser, act.Target.Kind)
	assert.Equal("alice", act.Target.Ref.Name())
	assert.Equal("hello   there", act.Text)

	r, err = Parse("say 555 hi")
	assert.NoError(err)
	act = r.Action.(SayAction)
	assert.Equal(entity.KindUnknown, act.Target.Kind)
	id, ok := act.Target.Ref.ID()
	assert.True(ok)
	assert.Equal(uint64(555), id)
}

func TestParseReportAndBan(t *testing.T) {
	assert := assert.New(t)

	r, err := Parse("report #mod-log brief")
	assert.NoError(err)
	rep := r.Action.(ReportAction)
	assert.True(rep.Brief)
	assert.Equal("mod-log", rep.Target.Ref.Name())

	r, err = Parse("report 42")
	assert.NoError(err)
	rep = r.Action.(ReportAction)
	assert.Equal(entity.KindChannel, rep.Target.Kind)
	assert.False(rep.Brief)

	r, err = Parse("ban")
	assert.NoError(err)
	assert.Equal(0, r.Action.(BanAction).PurgeDays)

	r, err = Parse("ban 7")
	assert.NoError(err)
	assert.Equal(7, r.Action.(BanAction).PurgeDays)
}

func TestParseRole(t *testing.T) {
	assert := assert.New(t)

	r, err := Parse("grantrole Server Muted")
	assert.NoError(err)
	act := r.Action.(RoleAction)
	assert.True(act.Grant)
	assert.True(act.Target.Self)
	assert.Equal("Server Muted", act.Role.Name())

	r, err = Parse("revokerole @bob &Trusted")
	assert.NoError(err)
	act = r.Action.(RoleAction)
	assert.False(act.Grant)
	assert.Equal("bob", act.Target.Ref.Name())
	assert.Equal("Trusted", act.Role.Name())

	r, err = Parse("addrole 77 88")
	assert.NoError(err)
	act = r.Action.(RoleAction)
	assert.Equal(entity.KindUser, act.Target.Kind)
	uid, _ := act.Target.Ref.ID()
	rid, _ := act.Role.ID()
	assert.Equal(uint64(77), uid)
	assert.Equal(uint64(88), rid)

	// a single numeric argument is the role
	r, err = Parse("addrole 88")
	assert.NoError(err)
	act = r.Action.(RoleAction)
	assert.True(act.Target.Self)
}

func TestParseExec(t *testing.T) {
	assert := assert.New(t)

	r, err := Parse(`exec ./notify.sh --channel "mod log" plain`)
	assert.NoError(err)
	act := r.Action.(ExecAction)
	assert.Equal("./notify.sh", act.Program)
	assert.Equal([]string{"--channel", "mod log", "plain"}, act.Args)
	assert.Equal(5*time.Second, act.Timeout)
	assert.False(act.Relay)
}

func TestRedact(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("exec [redacted]", Redact("exec ./notify.sh --token secret"))
	assert.Equal("run [redacted]", Redact("  run ./x"))
	assert.Equal("say #_ hi there", Redact("say #_ hi there"))
	assert.Equal("remove", Redact("remove"))
}
