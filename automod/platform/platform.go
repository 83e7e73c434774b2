// Interface boundary between the moderation engine and a chat platform.
//
// The engine only sees the types in this package. The Discord implementation lives in the `discord` sub-package.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluesky-social/chatmod/automod/entity"
)

type Member struct {
	ID    uint64
	Name  string
	Roles []entity.Named
	Bot   bool
}

type EmbedField struct {
	Name  string
	Value string
}

// Flattened view of rich message content, only the text-bearing parts.
type Embed struct {
	Author      string
	Title       string
	Description string
	Fields      []EmbedField
	Footer      string
}

// A received (or edited) message. Immutable once constructed; content is captured at receipt and is not re-fetched.
type Message struct {
	ID          uint64
	GuildID     uint64
	ChannelID   uint64
	ChannelName string
	Author      Member
	Content     string
	Embeds      []Embed
	// non-nil for message-updated events
	EditedAt *time.Time
}

func (m *Message) Subject() entity.Subject {
	return entity.Subject{
		Channel: entity.Named{ID: m.ChannelID, Name: m.ChannelName},
		User:    entity.Named{ID: m.Author.ID, Name: m.Author.Name},
		Roles:   m.Author.Roles,
	}
}

func (m *Message) IsEdit() bool {
	return m.EditedAt != nil
}

type ReportField struct {
	Name   string
	Value  string
	Inline bool
}

// Structured summary of a rule trigger, sent as a single rich message.
type Report struct {
	Title       string
	Description string
	Fields      []ReportField
	Footer      string
	Timestamp   time.Time
}

// Chat platform operations used by moderation responses. Implementations must be safe for concurrent use.
// Returned (wrapped) by Client methods when the platform reports that a channel, user, role, or message does not exist.
var ErrNotFound = errors.New("not found on platform")

type Client interface {
	DeleteMessage(ctx context.Context, channelID, messageID uint64) error
	SendMessage(ctx context.Context, channelID uint64, text string) error
	SendDirectMessage(ctx context.Context, userID uint64, text string) error
	SendReport(ctx context.Context, channelID uint64, report *Report) error
	Ban(ctx context.Context, guildID, userID uint64, purgeDays int, reason string) error
	Kick(ctx context.Context, guildID, userID uint64, reason string) error
	AddRole(ctx context.Context, guildID, userID, roleID uint64) error
	RemoveRole(ctx context.Context, guildID, userID, roleID uint64) error
}

// Inline mention markup for a user.
func UserMention(userID uint64) string {
	return fmt.Sprintf("<@%d>", userID)
}

// Inline mention markup for a channel.
func ChannelMention(channelID uint64) string {
	return fmt.Sprintf("<#%d>", channelID)
}
