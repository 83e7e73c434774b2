package response

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bluesky-social/chatmod/automod/directory"
	"github.com/bluesky-social/chatmod/automod/entity"
	"github.com/bluesky-social/chatmod/automod/platform"
)

// Counters for one rule in the current day.
type RuleStats struct {
	Hits  int
	Users int
}

// Prior moderation history of a user, shown in reports. Optional.
type History interface {
	UserFlags(ctx context.Context, guildID, userID uint64) ([]string, error)
	// Short descriptions of the user's most recent executed responses, newest first. Empty if no action log is kept.
	RecentActions(ctx context.Context, guildID, userID uint64, limit int) ([]string, error)
	RuleStatsToday(ctx context.Context, guildID uint64, rule string) (RuleStats, error)
}

// Everything a response needs at match time. One Env is built per matched (message, rule) pair and shared by that rule's responses, which run sequentially.
type Env struct {
	Client    platform.Client
	Directory directory.Directory
	Message   *platform.Message
	RuleName  string
	// configured lines of the matched rule, in order
	ResponseLines []string
	Logger        *slog.Logger
	History       History
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Env) reason() string {
	return fmt.Sprintf("automod: rule %s", e.RuleName)
}

// Executes the response against the triggering message. Errors wrapping ErrUnresolved mean the response was skipped.
func (r *Response) Invoke(ctx context.Context, env *Env) error {
	msg := env.Message
	switch act := r.Action.(type) {
	case RemoveAction:
		return env.Client.DeleteMessage(ctx, msg.ChannelID, msg.ID)
	case SayAction:
		text := strings.ReplaceAll(act.Text, "@_", platform.UserMention(msg.Author.ID))
		dest, err := resolveDestination(ctx, env, act.Target)
		if err != nil {
			return err
		}
		send := func(id uint64) error {
			if dest.Kind == entity.KindUser {
				return env.Client.SendDirectMessage(ctx, id, text)
			}
			return env.Client.SendMessage(ctx, id, text)
		}
		if act.Target.Self {
			return send(dest.ID)
		}
		return retryStale(ctx, env, dest, send)
	case ReportAction:
		dest, err := resolveDestination(ctx, env, act.Target)
		if err != nil {
			return err
		}
		rep := buildReport(ctx, env, act.Brief)
		send := func(id uint64) error {
			return env.Client.SendReport(ctx, id, rep)
		}
		if act.Target.Self {
			return send(dest.ID)
		}
		return retryStale(ctx, env, dest, send)
	case BanAction:
		return env.Client.Ban(ctx, msg.GuildID, msg.Author.ID, act.PurgeDays, env.reason())
	case KickAction:
		return env.Client.Kick(ctx, msg.GuildID, msg.Author.ID, env.reason())
	case RoleAction:
		user, err := resolveDestination(ctx, env, act.Target)
		if err != nil {
			return err
		}
		role, err := directory.Resolve(ctx, env.Directory, msg.GuildID, act.Role)
		if err != nil {
			return unresolved(err)
		}
		return retryStale(ctx, env, role, func(roleID uint64) error {
			if act.Grant {
				return env.Client.AddRole(ctx, msg.GuildID, user.ID, roleID)
			}
			return env.Client.RemoveRole(ctx, msg.GuildID, user.ID, roleID)
		})
	case ExecAction:
		out, err := runExec(ctx, env, act)
		if err != nil {
			return err
		}
		if !act.Relay {
			return nil
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return nil
		}
		return env.Client.SendMessage(ctx, msg.ChannelID, out)
	default:
		return fmt.Errorf("unhandled action type: %T", r.Action)
	}
}

// Calls fn with the entity's ID. If the platform reports the entity missing, the directory entry is purged and fn is retried once against a fresh lookup, so a stale cache entry does not fail every later response.
func retryStale(ctx context.Context, env *Env, ent *directory.Entity, fn func(id uint64) error) error {
	err := fn(ent.ID)
	if !errors.Is(err, platform.ErrNotFound) {
		return err
	}
	logger := env.logger().With("kind", ent.Kind, "id", ent.ID)
	logger.Info("platform reported entity missing, purging directory entry", "err", err)
	if perr := env.Directory.Purge(ctx, ent.GuildID, ent.Kind, ent.ID); perr != nil {
		logger.Warn("failed to purge directory entry", "err", perr)
	}
	fresh, lerr := env.Directory.LookupID(ctx, ent.GuildID, ent.Kind, ent.ID)
	if lerr != nil {
		return unresolved(lerr)
	}
	return fn(fresh.ID)
}

func unresolved(err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrUnresolved, err)
	}
	return err
}

// Resolves a target to a concrete channel or user. Bare IDs are tried as a channel first, then as a user.
func resolveDestination(ctx context.Context, env *Env, t Target) (*directory.Entity, error) {
	msg := env.Message
	if t.Self {
		if t.Kind == entity.KindUser {
			return &directory.Entity{GuildID: msg.GuildID, Kind: entity.KindUser, ID: msg.Author.ID, Name: msg.Author.Name}, nil
		}
		return &directory.Entity{GuildID: msg.GuildID, Kind: entity.KindChannel, ID: msg.ChannelID, Name: msg.ChannelName}, nil
	}
	if t.Ref == nil {
		return nil, fmt.Errorf("%w: empty target", ErrUnresolved)
	}
	if t.Kind != entity.KindUnknown {
		ent, err := directory.Resolve(ctx, env.Directory, msg.GuildID, t.Ref)
		if err != nil {
			return nil, unresolved(err)
		}
		return ent, nil
	}
	id, _ := t.Ref.ID()
	for _, kind := range []entity.Kind{entity.KindChannel, entity.KindUser} {
		ent, err := env.Directory.LookupID(ctx, msg.GuildID, kind, id)
		if err == nil {
			return ent, nil
		}
		if !errors.Is(err, directory.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: no channel or user with id %d", ErrUnresolved, id)
}
