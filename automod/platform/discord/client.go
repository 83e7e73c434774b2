// Discord implementation of the platform and directory interfaces, using discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bluesky-social/chatmod/automod/platform"

	"github.com/bwmarrin/discordgo"
)

type Client struct {
	Session *discordgo.Session
}

var _ platform.Client = (*Client)(nil)

func NewClient(session *discordgo.Session) *Client {
	return &Client{Session: session}
}

func sf(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func parseSnowflake(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", s, err)
	}
	return id, nil
}

func isNotFound(err error) bool {
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return rerr.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// marks 404 responses with platform.ErrNotFound
func wrapErr(err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %w", platform.ErrNotFound, err)
	}
	return err
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID uint64) error {
	return wrapErr(c.Session.ChannelMessageDelete(sf(channelID), sf(messageID), discordgo.WithContext(ctx)))
}

func (c *Client) SendMessage(ctx context.Context, channelID uint64, text string) error {
	_, err := c.Session.ChannelMessageSend(sf(channelID), text, discordgo.WithContext(ctx))
	return wrapErr(err)
}

func (c *Client) SendDirectMessage(ctx context.Context, userID uint64, text string) error {
	ch, err := c.Session.UserChannelCreate(sf(userID), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("opening DM channel: %w", wrapErr(err))
	}
	_, err = c.Session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx))
	return wrapErr(err)
}

func (c *Client) SendReport(ctx context.Context, channelID uint64, report *platform.Report) error {
	_, err := c.Session.ChannelMessageSendEmbed(sf(channelID), reportEmbed(report), discordgo.WithContext(ctx))
	return wrapErr(err)
}

func (c *Client) Ban(ctx context.Context, guildID, userID uint64, purgeDays int, reason string) error {
	return wrapErr(c.Session.GuildBanCreateWithReason(sf(guildID), sf(userID), reason, purgeDays, discordgo.WithContext(ctx)))
}

func (c *Client) Kick(ctx context.Context, guildID, userID uint64, reason string) error {
	return wrapErr(c.Session.GuildMemberDeleteWithReason(sf(guildID), sf(userID), reason, discordgo.WithContext(ctx)))
}

func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID uint64) error {
	return wrapErr(c.Session.GuildMemberRoleAdd(sf(guildID), sf(userID), sf(roleID), discordgo.WithContext(ctx)))
}

func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID uint64) error {
	return wrapErr(c.Session.GuildMemberRoleRemove(sf(guildID), sf(userID), sf(roleID), discordgo.WithContext(ctx)))
}

const reportColor = 0xE67E22

func reportEmbed(report *platform.Report) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       report.Title,
		Description: report.Description,
		Color:       reportColor,
	}
	if !report.Timestamp.IsZero() {
		embed.Timestamp = report.Timestamp.Format(time.RFC3339)
	}
	if report.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: report.Footer}
	}
	for _, f := range report.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return embed
}
