package engine

import (
	"log/slog"

	"github.com/bluesky-social/chatmod/automod/config"
	"github.com/bluesky-social/chatmod/automod/countstore"
	"github.com/bluesky-social/chatmod/automod/directory"
	"github.com/bluesky-social/chatmod/automod/entity"
	"github.com/bluesky-social/chatmod/automod/flagstore"
	"github.com/bluesky-social/chatmod/automod/platform"
)

const (
	TestGuildID     = 1
	TestGeneralID   = 100
	TestRandomID    = 101
	TestModLogID    = 102
	TestModeratorID = 10
	TestUserID      = 20
	TestModRoleID   = 30
	TestMutedRoleID = 31
)

var TestConfigYAML = `
guilds:
  "1":
    moderators: ["&Moderators"]
    rules:
      - name: spam
        regex: ["spam"]
        response: ["remove", "say #_ Please don't spam."]
`

// Engine wired to in-memory stores, a MockClient, and a MockDirectory populated with a small guild. The configuration is TestConfigYAML.
func EngineTestFixture() *Engine {
	dir := directory.NewMockDirectory()
	dir.Insert(
		directory.Entity{GuildID: TestGuildID, Kind: entity.KindChannel, ID: TestGeneralID, Name: "general"},
		directory.Entity{GuildID: TestGuildID, Kind: entity.KindChannel, ID: TestRandomID, Name: "random"},
		directory.Entity{GuildID: TestGuildID, Kind: entity.KindChannel, ID: TestModLogID, Name: "mod-log"},
		directory.Entity{GuildID: TestGuildID, Kind: entity.KindUser, ID: TestModeratorID, Name: "mod"},
		directory.Entity{GuildID: TestGuildID, Kind: entity.KindUser, ID: TestUserID, Name: "alice"},
		directory.Entity{GuildID: TestGuildID, Kind: entity.KindRole, ID: TestModRoleID, Name: "Moderators"},
		directory.Entity{GuildID: TestGuildID, Kind: entity.KindRole, ID: TestMutedRoleID, Name: "Muted"},
	)
	eng := &Engine{
		Logger:    slog.Default(),
		Client:    platform.NewMockClient(),
		Directory: dir,
		Counters:  countstore.NewMemCountStore(),
		Flags:     flagstore.NewMemFlagStore(),
	}
	cfg, err := config.Parse([]byte(TestConfigYAML), config.BuildOptions{})
	if err != nil {
		panic(err)
	}
	eng.SetConfig(cfg)
	return eng
}

// A message from a regular member in #random.
func FixtureMessage(content string) *platform.Message {
	return &platform.Message{
		ID:          900,
		GuildID:     TestGuildID,
		ChannelID:   TestRandomID,
		ChannelName: "random",
		Author: platform.Member{
			ID:   TestUserID,
			Name: "alice",
		},
		Content: content,
	}
}

// A message from a member holding the moderator role, in #random.
func FixtureModeratorMessage(content string) *platform.Message {
	msg := FixtureMessage(content)
	msg.Author = platform.Member{
		ID:    TestModeratorID,
		Name:  "mod",
		Roles: []entity.Named{{ID: TestModRoleID, Name: "Moderators"}},
	}
	return msg
}
