package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bluesky-social/chatmod/automod/actionlog"
	"github.com/bluesky-social/chatmod/automod/config"
	"github.com/bluesky-social/chatmod/automod/countstore"
	"github.com/bluesky-social/chatmod/automod/platform"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func mockClient(eng *Engine) *platform.MockClient {
	return eng.Client.(*platform.MockClient)
}

func mustConfig(t *testing.T, yaml string) *config.Config {
	cfg, err := config.Parse([]byte(yaml), config.BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestEngineSpam(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	client := mockClient(eng)

	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("this is spam")))

	deletes := client.CallsTo("DeleteMessage")
	assert.Equal(1, len(deletes))
	assert.Equal(uint64(TestRandomID), deletes[0].ChannelID)
	assert.Equal(uint64(900), deletes[0].TargetID)

	sent := client.CallsTo("SendMessage")
	assert.Equal(1, len(sent))
	assert.Equal(uint64(TestRandomID), sent[0].ChannelID)
	assert.Equal("Please don't spam.", sent[0].Text)

	// delete happened before the reply
	calls := client.CallsTo("")
	assert.Equal("DeleteMessage", calls[0].Method)
	assert.Equal("SendMessage", calls[1].Method)

	flags, err := eng.UserFlags(ctx, TestGuildID, TestUserID)
	assert.NoError(err)
	assert.Equal([]string{"rule:spam"}, flags)
	stats, err := eng.RuleStatsToday(ctx, TestGuildID, "spam")
	assert.NoError(err)
	assert.Equal(1, stats.Hits)
	assert.Equal(1, stats.Users)
}

func TestEngineNoMatch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("perfectly polite")))
	assert.Empty(mockClient(eng).CallsTo(""))
}

func TestEngineModeratorBypass(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	assert.NoError(eng.ProcessMessage(ctx, FixtureModeratorMessage("this is spam")))
	assert.Empty(mockClient(eng).CallsTo(""))
}

func TestEngineIgnores(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	bot := FixtureMessage("spam")
	bot.Author.Bot = true
	assert.NoError(eng.ProcessMessage(ctx, bot))

	other := FixtureMessage("spam")
	other.GuildID = 999
	assert.NoError(eng.ProcessMessage(ctx, other))

	assert.Empty(mockClient(eng).CallsTo(""))
}

func TestEngineWhitelist(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	client := mockClient(eng)

	eng.SetConfig(mustConfig(t, `
guilds:
  "1":
    rules:
      - name: greeting
        regex: hello
        whitelist: ["#general"]
        response: "say #_ hi!"
`))

	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("hello")))
	assert.Empty(client.CallsTo(""))

	msg := FixtureMessage("hello")
	msg.ChannelID = TestGeneralID
	msg.ChannelName = "general"
	assert.NoError(eng.ProcessMessage(ctx, msg))
	sent := client.CallsTo("SendMessage")
	assert.Equal(1, len(sent))
	assert.Equal(uint64(TestGeneralID), sent[0].ChannelID)
}

func TestEngineFailureIsolation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	client := mockClient(eng)
	client.Failures["DeleteMessage"] = errors.New("missing permissions")

	eng.SetConfig(mustConfig(t, `
guilds:
  "1":
    rules:
      - name: spam
        regex: spam
        response: ["remove", "say #nowhere unreachable", "say #_ Please don't spam."]
      - name: also-spam
        regex: spam
        response: "grantrole Muted"
`))

	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("spam spam")))

	sent := client.CallsTo("SendMessage")
	texts := []string{}
	for _, c := range sent {
		texts = append(texts, c.Text)
	}
	assert.Equal(2, len(sent))
	assert.Contains(texts, "Please don't spam.")
	assert.Contains(texts, "⚠️ Rule `spam` could not remove: the platform rejected the request")

	roles := client.CallsTo("AddRole")
	assert.Equal(1, len(roles))
	assert.Equal(uint64(TestMutedRoleID), roles[0].TargetID)
}

type panicClient struct {
	*platform.MockClient
}

func (c panicClient) DeleteMessage(ctx context.Context, channelID, messageID uint64) error {
	panic("boom")
}

func TestEngineResponsePanic(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	mock := mockClient(eng)
	eng.Client = panicClient{mock}

	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("spam")))
	sent := mock.CallsTo("SendMessage")
	assert.Equal(2, len(sent))
	assert.Equal("Please don't spam.", sent[1].Text)
}

func TestEngineReload(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	client := mockClient(eng)
	before := eng.Config()

	err := eng.Reload(func() (*config.Config, error) {
		return config.Parse([]byte(`
guilds:
  "1":
    rules:
      - name: spam
        regex: spam
        whitelist: ["#general"]
        blacklist: ["#random"]
        response: kick
`), config.BuildOptions{})
	})
	assert.ErrorIs(err, config.ErrConfig)
	assert.True(strings.Contains(err.Error(), "both whitelist and blacklist"))
	assert.Same(before, eng.Config())

	// previous configuration still in force
	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("spam")))
	assert.Equal(1, len(client.CallsTo("DeleteMessage")))
	assert.Empty(client.CallsTo("Kick"))

	assert.NoError(eng.Reload(func() (*config.Config, error) {
		return config.Parse([]byte(`{guilds: {"1": {rules: [{name: spam, regex: spam, response: kick}]}}}`), config.BuildOptions{})
	}))
	assert.NotSame(before, eng.Config())
	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("spam")))
	assert.Equal(1, len(client.CallsTo("Kick")))
}

func TestEngineCooldown(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	client := mockClient(eng)

	eng.SetConfig(mustConfig(t, `
guilds:
  "1":
    autoresponses:
      - name: faq
        regex: "how do i join"
        reply: "See #welcome, @_"
        cooldown: 60
`))

	for i := 0; i < 3; i++ {
		assert.NoError(eng.ProcessMessage(ctx, FixtureModeratorMessage("so how do I join?")))
	}
	sent := client.CallsTo("SendMessage")
	assert.Equal(1, len(sent))
	assert.Equal("See #welcome, <@10>", sent[0].Text)
}

func TestEngineReport(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	client := mockClient(eng)

	eng.SetConfig(mustConfig(t, `
guilds:
  "1":
    rules:
      - name: links
        regex: "https?://"
        response: ["report #mod-log", "remove"]
`))

	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("visit http://example.com")))
	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("again https://example.com")))

	reports := client.CallsTo("SendReport")
	assert.Equal(2, len(reports))
	assert.Equal(uint64(TestModLogID), reports[1].ChannelID)
	fields := make(map[string]string)
	for _, f := range reports[1].Report.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal("rule:links", fields["Prior flags"])
	assert.Equal("2", fields["Hits today"])
	assert.Equal("1", fields["Users today"])
	assert.Equal("report #mod-log\nremove", fields["Responses"])
	assert.NotContains(fields, "Recent actions")

	c, err := eng.Counters.GetCountDistinct(ctx, counterRuleMatchUsers, "1/links", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
}

func TestEngineActionLog(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	mockClient(eng).Failures["SendMessage"] = errors.New("missing access")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatal(err)
	}
	sqldb, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqldb.SetMaxOpenConns(1)
	store, err := actionlog.NewDBStore(db)
	if err != nil {
		t.Fatal(err)
	}
	eng.Actions = store

	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("spam")))

	entries, err := store.ForUser(ctx, TestGuildID, TestUserID, 0)
	assert.NoError(err)
	assert.Equal(2, len(entries))
	assert.Equal("say", entries[0].Verb)
	assert.False(entries[0].Success)
	assert.Contains(entries[0].Error, "missing access")
	assert.Equal("remove", entries[1].Verb)
	assert.True(entries[1].Success)

	recent, err := eng.RecentActions(ctx, TestGuildID, TestUserID, 5)
	assert.NoError(err)
	assert.Equal(2, len(recent))
	assert.True(strings.HasSuffix(recent[0], "spam: say (failed)"))
	assert.True(strings.HasSuffix(recent[1], "spam: remove"))
}

func TestEngineClearUserFlags(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	assert.NoError(eng.Flags.Add(ctx, userKey(TestGuildID, TestUserID), []string{"vip"}))
	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("spam")))

	removed, err := eng.ClearUserFlags(ctx, TestGuildID, TestUserID)
	assert.NoError(err)
	assert.Equal([]string{"rule:spam"}, removed)
	flags, err := eng.UserFlags(ctx, TestGuildID, TestUserID)
	assert.NoError(err)
	assert.Equal([]string{"vip"}, flags)

	removed, err = eng.ClearUserFlags(ctx, TestGuildID, TestUserID)
	assert.NoError(err)
	assert.Empty(removed)
}

func TestEngineSlackNotification(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	bodies := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()
	eng.Notifier = &SlackNotifier{SlackWebhookURL: srv.URL, Client: srv.Client()}

	eng.SetConfig(mustConfig(t, `{guilds: {"1": {rules: [{name: scam, regex: "free nitro", response: ["remove", "ban 1"]}]}}}`))
	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("free nitro here")))
	// no notification without a ban or kick
	assert.NoError(eng.ProcessMessage(ctx, FixtureMessage("nothing")))

	select {
	case body := <-bodies:
		assert.Contains(body, "Rule `scam` in guild `1`")
		assert.Contains(body, "Actions: `ban`")
	case <-time.After(time.Second):
		t.Fatal("no slack notification")
	}
	assert.Equal(0, len(bodies))
}
