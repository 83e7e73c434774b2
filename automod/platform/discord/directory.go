package discord

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bluesky-social/chatmod/automod/directory"
	"github.com/bluesky-social/chatmod/automod/entity"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"
)

// Looks up guild channels, roles, and members, preferring the gateway state cache and falling back to rate-limited REST calls. Usually wrapped in a directory.CacheDirectory.
type Directory struct {
	Session *discordgo.Session
	// limits REST lookups only
	Limiter *rate.Limiter
	// upper bound on member search results
	SearchLimit int
}

var _ directory.Directory = (*Directory)(nil)

func NewDirectory(session *discordgo.Session) *Directory {
	return &Directory{
		Session:     session,
		Limiter:     rate.NewLimiter(rate.Limit(5), 10),
		SearchLimit: 10,
	}
}

func (d *Directory) wait(ctx context.Context) error {
	if d.Limiter == nil {
		return nil
	}
	return d.Limiter.Wait(ctx)
}

func notFound(guildID uint64, kind entity.Kind, query any) error {
	return fmt.Errorf("%s %v in guild %d: %w", kind, query, guildID, directory.ErrNotFound)
}

func (d *Directory) LookupID(ctx context.Context, guildID uint64, kind entity.Kind, id uint64) (*directory.Entity, error) {
	switch kind {
	case entity.KindChannel:
		ch, err := d.Session.State.Channel(sf(id))
		if err != nil {
			if err := d.wait(ctx); err != nil {
				return nil, err
			}
			ch, err = d.Session.Channel(sf(id), discordgo.WithContext(ctx))
			if err != nil {
				if isNotFound(err) {
					return nil, notFound(guildID, kind, id)
				}
				return nil, err
			}
		}
		// a channel of another guild, or a DM, is not visible here
		if ch.GuildID != sf(guildID) {
			return nil, notFound(guildID, kind, id)
		}
		return channelEntity(guildID, ch), nil
	case entity.KindRole:
		roles, err := d.roles(ctx, guildID)
		if err != nil {
			return nil, err
		}
		for _, r := range roles {
			if r.ID == sf(id) {
				return roleEntity(guildID, r), nil
			}
		}
		return nil, notFound(guildID, kind, id)
	case entity.KindUser:
		m, err := d.Session.State.Member(sf(guildID), sf(id))
		if err != nil {
			if err := d.wait(ctx); err != nil {
				return nil, err
			}
			m, err = d.Session.GuildMember(sf(guildID), sf(id), discordgo.WithContext(ctx))
			if err != nil {
				if isNotFound(err) {
					return nil, notFound(guildID, kind, id)
				}
				return nil, err
			}
		}
		return memberEntity(guildID, m), nil
	default:
		return nil, fmt.Errorf("unsupported entity kind: %s", kind)
	}
}

func (d *Directory) LookupName(ctx context.Context, guildID uint64, kind entity.Kind, name string) ([]directory.Entity, error) {
	var candidates []directory.Entity
	switch kind {
	case entity.KindChannel:
		channels, err := d.channels(ctx, guildID)
		if err != nil {
			return nil, err
		}
		for _, ch := range channels {
			candidates = append(candidates, *channelEntity(guildID, ch))
		}
	case entity.KindRole:
		roles, err := d.roles(ctx, guildID)
		if err != nil {
			return nil, err
		}
		for _, r := range roles {
			candidates = append(candidates, *roleEntity(guildID, r))
		}
	case entity.KindUser:
		if err := d.wait(ctx); err != nil {
			return nil, err
		}
		members, err := d.Session.GuildMembersSearch(sf(guildID), name, d.SearchLimit, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			candidates = append(candidates, *memberEntity(guildID, m))
		}
	default:
		return nil, fmt.Errorf("unsupported entity kind: %s", kind)
	}
	out := rankByName(candidates, name)
	if len(out) == 0 {
		return nil, notFound(guildID, kind, name)
	}
	return out, nil
}

// Nothing is cached here beyond the gateway state, which maintains itself.
func (d *Directory) Purge(ctx context.Context, guildID uint64, kind entity.Kind, id uint64) error {
	return nil
}

func (d *Directory) channels(ctx context.Context, guildID uint64) ([]*discordgo.Channel, error) {
	if g, err := d.Session.State.Guild(sf(guildID)); err == nil && len(g.Channels) > 0 {
		return g.Channels, nil
	}
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	return d.Session.GuildChannels(sf(guildID), discordgo.WithContext(ctx))
}

func (d *Directory) roles(ctx context.Context, guildID uint64) ([]*discordgo.Role, error) {
	if g, err := d.Session.State.Guild(sf(guildID)); err == nil && len(g.Roles) > 0 {
		return g.Roles, nil
	}
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	return d.Session.GuildRoles(sf(guildID), discordgo.WithContext(ctx))
}

// Keeps candidates whose folded name starts with the folded query; exact matches first, then by name.
func rankByName(candidates []directory.Entity, query string) []directory.Entity {
	fold := cases.Fold()
	q := fold.String(query)
	type ranked struct {
		ent   directory.Entity
		exact bool
		name  string
	}
	var keep []ranked
	for _, c := range candidates {
		n := fold.String(c.Name)
		if strings.HasPrefix(n, q) {
			keep = append(keep, ranked{ent: c, exact: n == q, name: n})
		}
	}
	sort.SliceStable(keep, func(i, j int) bool {
		if keep[i].exact != keep[j].exact {
			return keep[i].exact
		}
		return keep[i].name < keep[j].name
	})
	out := make([]directory.Entity, len(keep))
	for i, k := range keep {
		out[i] = k.ent
	}
	return out
}

func channelEntity(guildID uint64, ch *discordgo.Channel) *directory.Entity {
	id, _ := parseSnowflake(ch.ID)
	return &directory.Entity{GuildID: guildID, Kind: entity.KindChannel, ID: id, Name: ch.Name}
}

func roleEntity(guildID uint64, r *discordgo.Role) *directory.Entity {
	id, _ := parseSnowflake(r.ID)
	return &directory.Entity{GuildID: guildID, Kind: entity.KindRole, ID: id, Name: r.Name}
}

func memberEntity(guildID uint64, m *discordgo.Member) *directory.Entity {
	ent := &directory.Entity{GuildID: guildID, Kind: entity.KindUser}
	if m.User != nil {
		ent.ID, _ = parseSnowflake(m.User.ID)
		ent.Name = m.User.Username
	}
	return ent
}
