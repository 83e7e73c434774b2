package discord

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bluesky-social/chatmod/automod/directory"
	"github.com/bluesky-social/chatmod/automod/entity"
	"github.com/bluesky-social/chatmod/automod/platform"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

type fakeNames struct{}

func (fakeNames) ChannelName(channelID string) string {
	if channelID == "100" {
		return "general"
	}
	return ""
}

func (fakeNames) RoleName(guildID, roleID string) string {
	if roleID == "30" {
		return "Moderators"
	}
	return ""
}

func TestConvertMessage(t *testing.T) {
	assert := assert.New(t)

	edited := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := &discordgo.Message{
		ID:        "900",
		GuildID:   "1",
		ChannelID: "100",
		Content:   "hello there",
		Author:    &discordgo.User{ID: "20", Username: "alice"},
		Member:    &discordgo.Member{Roles: []string{"30", "31"}},
		Embeds: []*discordgo.MessageEmbed{{
			Title:  "Free Nitro",
			Author: &discordgo.MessageEmbedAuthor{Name: "spammer"},
			Fields: []*discordgo.MessageEmbedField{{Name: "Claim", Value: "here"}},
			Footer: &discordgo.MessageEmbedFooter{Text: "legit"},
		}},
		EditedTimestamp: &edited,
	}

	msg, err := ConvertMessage(m, fakeNames{})
	assert.NoError(err)
	assert.Equal(uint64(900), msg.ID)
	assert.Equal(uint64(1), msg.GuildID)
	assert.Equal(uint64(100), msg.ChannelID)
	assert.Equal("general", msg.ChannelName)
	assert.Equal(platform.Member{
		ID:    20,
		Name:  "alice",
		Roles: []entity.Named{{ID: 30, Name: "Moderators"}, {ID: 31, Name: ""}},
	}, msg.Author)
	assert.True(msg.IsEdit())
	assert.Equal([]platform.Embed{{
		Author: "spammer",
		Title:  "Free Nitro",
		Fields: []platform.EmbedField{{Name: "Claim", Value: "here"}},
		Footer: "legit",
	}}, msg.Embeds)
}

func TestConvertMessageSkips(t *testing.T) {
	assert := assert.New(t)

	// direct message
	msg, err := ConvertMessage(&discordgo.Message{ID: "1", ChannelID: "2", Author: &discordgo.User{ID: "3"}}, fakeNames{})
	assert.NoError(err)
	assert.Nil(msg)

	// partial update without author
	msg, err = ConvertMessage(&discordgo.Message{ID: "1", GuildID: "1", ChannelID: "2"}, fakeNames{})
	assert.NoError(err)
	assert.Nil(msg)

	_, err = ConvertMessage(&discordgo.Message{ID: "x", GuildID: "1", ChannelID: "2", Author: &discordgo.User{ID: "3"}}, fakeNames{})
	assert.Error(err)
}

func TestRankByName(t *testing.T) {
	assert := assert.New(t)

	candidates := []directory.Entity{
		{ID: 1, Name: "general-chat"},
		{ID: 2, Name: "off-topic"},
		{ID: 3, Name: "General"},
		{ID: 4, Name: "general-2"},
	}
	out := rankByName(candidates, "general")
	ids := []uint64{}
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	assert.Equal([]uint64{3, 4, 1}, ids)
	assert.Empty(rankByName(candidates, "memes"))
}

func TestReportEmbed(t *testing.T) {
	assert := assert.New(t)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	embed := reportEmbed(&platform.Report{
		Title:       "Rule triggered: spam",
		Description: "buy now",
		Fields:      []platform.ReportField{{Name: "User", Value: "<@20>", Inline: true}},
		Footer:      "chatmod",
		Timestamp:   ts,
	})
	assert.Equal("Rule triggered: spam", embed.Title)
	assert.Equal("2024-05-01T12:00:00Z", embed.Timestamp)
	assert.Equal("chatmod", embed.Footer.Text)
	assert.Equal(1, len(embed.Fields))
	assert.True(embed.Fields[0].Inline)
}

func TestWrapErr(t *testing.T) {
	assert := assert.New(t)

	missing := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	assert.ErrorIs(wrapErr(missing), platform.ErrNotFound)

	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	assert.NotErrorIs(wrapErr(forbidden), platform.ErrNotFound)

	other := errors.New("connection reset")
	assert.Equal(other, wrapErr(other))
	assert.Nil(wrapErr(nil))
}
