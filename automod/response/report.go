package response

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bluesky-social/chatmod/automod/helpers"
	"github.com/bluesky-social/chatmod/automod/platform"
)

const (
	// Upper bound on quoted message content, in grapheme clusters.
	ReportContentLength = 1000
	// Upper bound on each field value. Discord rejects embed field values over 1024 characters.
	ReportFieldLength = 1024
	// Number of prior actions listed for the user.
	ReportRecentActions = 5
)

func buildReport(ctx context.Context, env *Env, brief bool) *platform.Report {
	msg := env.Message
	content := msg.Content
	if content == "" && len(msg.Embeds) > 0 {
		content = helpers.FlattenEmbeds(msg.Embeds)
	}

	rep := &platform.Report{
		Title:       fmt.Sprintf("Rule triggered: %s", env.RuleName),
		Description: helpers.Truncate(content, ReportContentLength),
		Footer:      "chatmod",
		Timestamp:   time.Now().UTC(),
	}
	add := func(name, value string, inline bool) {
		rep.Fields = append(rep.Fields, platform.ReportField{Name: name, Value: fieldValue(value), Inline: inline})
	}
	add("User", fmt.Sprintf("%s %s (%d)", platform.UserMention(msg.Author.ID), msg.Author.Name, msg.Author.ID), true)
	add("Channel", fmt.Sprintf("%s (%d)", platform.ChannelMention(msg.ChannelID), msg.ChannelID), true)
	add("Message", fmt.Sprintf("%d", msg.ID), true)
	if msg.IsEdit() {
		add("Edited", msg.EditedAt.UTC().Format(time.RFC3339), true)
	}
	add("Fingerprint", helpers.HashOfString(content), true)

	if env.History != nil {
		flags, err := env.History.UserFlags(ctx, msg.GuildID, msg.Author.ID)
		if err != nil {
			env.logger().Warn("failed to fetch user flags for report", "err", err)
		} else if flags = helpers.DedupeStrings(flags); len(flags) > 0 {
			add("Prior flags", strings.Join(flags, ", "), false)
		}
		actions, err := env.History.RecentActions(ctx, msg.GuildID, msg.Author.ID, ReportRecentActions)
		if err != nil {
			env.logger().Warn("failed to fetch recent actions for report", "err", err)
		} else if len(actions) > 0 {
			add("Recent actions", strings.Join(actions, "\n"), false)
		}
		stats, err := env.History.RuleStatsToday(ctx, msg.GuildID, env.RuleName)
		if err != nil {
			env.logger().Warn("failed to fetch rule counters for report", "err", err)
		} else {
			add("Hits today", fmt.Sprintf("%d", stats.Hits), true)
			add("Users today", fmt.Sprintf("%d", stats.Users), true)
		}
	}

	if !brief && len(env.ResponseLines) > 0 {
		lines := make([]string, len(env.ResponseLines))
		for i, l := range env.ResponseLines {
			lines[i] = Redact(l)
		}
		add("Responses", strings.Join(lines, "\n"), false)
	}
	return rep
}

// Truncates a field value to ReportFieldLength code points without splitting grapheme clusters.
func fieldValue(v string) string {
	n := ReportFieldLength
	out := helpers.Truncate(v, n)
	// a combining sequence is one grapheme but several code points
	for n > 1 {
		runes := utf8.RuneCountInString(out)
		if runes <= ReportFieldLength {
			break
		}
		next := n * ReportFieldLength / runes
		if next >= n {
			next = n - 1
		}
		n = next
		out = helpers.Truncate(v, n)
	}
	return out
}
