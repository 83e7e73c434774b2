package discord

import (
	"fmt"

	"github.com/bluesky-social/chatmod/automod/entity"
	"github.com/bluesky-social/chatmod/automod/platform"

	"github.com/bwmarrin/discordgo"
)

// Name lookups used while converting gateway messages. Missing names are returned empty; matching then relies on IDs.
type Names interface {
	ChannelName(channelID string) string
	RoleName(guildID, roleID string) string
}

// Resolves names from the session's gateway state cache.
type StateNames struct {
	State *discordgo.State
}

func (n StateNames) ChannelName(channelID string) string {
	if ch, err := n.State.Channel(channelID); err == nil {
		return ch.Name
	}
	return ""
}

func (n StateNames) RoleName(guildID, roleID string) string {
	if r, err := n.State.Role(guildID, roleID); err == nil {
		return r.Name
	}
	return ""
}

// Converts a gateway message into the platform representation. Returns nil (and no error) for messages outside a guild, and for partial updates without an author.
func ConvertMessage(m *discordgo.Message, names Names) (*platform.Message, error) {
	if m == nil || m.GuildID == "" || m.Author == nil {
		return nil, nil
	}
	id, err := parseSnowflake(m.ID)
	if err != nil {
		return nil, err
	}
	guildID, err := parseSnowflake(m.GuildID)
	if err != nil {
		return nil, err
	}
	channelID, err := parseSnowflake(m.ChannelID)
	if err != nil {
		return nil, err
	}
	authorID, err := parseSnowflake(m.Author.ID)
	if err != nil {
		return nil, err
	}

	msg := &platform.Message{
		ID:          id,
		GuildID:     guildID,
		ChannelID:   channelID,
		ChannelName: names.ChannelName(m.ChannelID),
		Author: platform.Member{
			ID:   authorID,
			Name: m.Author.Username,
			Bot:  m.Author.Bot,
		},
		Content:  m.Content,
		EditedAt: m.EditedTimestamp,
	}
	if m.Member != nil {
		for _, rid := range m.Member.Roles {
			roleID, err := parseSnowflake(rid)
			if err != nil {
				return nil, fmt.Errorf("member role: %w", err)
			}
			msg.Author.Roles = append(msg.Author.Roles, entity.Named{ID: roleID, Name: names.RoleName(m.GuildID, rid)})
		}
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		msg.Embeds = append(msg.Embeds, convertEmbed(e))
	}
	return msg, nil
}

func convertEmbed(e *discordgo.MessageEmbed) platform.Embed {
	out := platform.Embed{
		Title:       e.Title,
		Description: e.Description,
	}
	if e.Author != nil {
		out.Author = e.Author.Name
	}
	if e.Footer != nil {
		out.Footer = e.Footer.Text
	}
	for _, f := range e.Fields {
		if f == nil {
			continue
		}
		out.Fields = append(out.Fields, platform.EmbedField{Name: f.Name, Value: f.Value})
	}
	return out
}
