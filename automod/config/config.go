// Loading, validating, and watching the moderation configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/bluesky-social/chatmod/automod/entity"
	"github.com/bluesky-social/chatmod/automod/ratelimit"
	"github.com/bluesky-social/chatmod/automod/rule"

	"gopkg.in/yaml.v3"
)

// Wraps every configuration load and validation failure.
var ErrConfig = errors.New("invalid configuration")

// Compiled configuration for all guilds. Immutable; replaced wholesale on reload.
type Config struct {
	Guilds map[uint64]*Guild
}

type Guild struct {
	ID         uint64
	Moderators *entity.Collection
	// rules first, then autoresponses, each in configured order
	Rules []*rule.Rule
}

type BuildOptions struct {
	// Builds rule cooldown limiters. Defaults to in-process limiters.
	Limiters ratelimit.Factory
}

func (c *Config) Guild(id uint64) (*Guild, bool) {
	if c == nil {
		return nil, false
	}
	g, ok := c.Guilds[id]
	return g, ok
}

// Sorted guild IDs, for stable iteration.
func (c *Config) GuildIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Guilds))
	for id := range c.Guilds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Config) RuleCount() int {
	n := 0
	for _, g := range c.Guilds {
		n += len(g.Rules)
	}
	return n
}

// A moderator is a listed user, or a member holding a listed role. Channel entries are ignored.
func (g *Guild) IsModerator(s entity.Subject) bool {
	if g.Moderators.Contains(entity.KindUser, s.User.ID, s.User.Name) {
		return true
	}
	for _, role := range s.Roles {
		if g.Moderators.Contains(entity.KindRole, role.ID, role.Name) {
			return true
		}
	}
	return false
}

// Compiles and validates a decoded file. Any error aborts the whole build.
func Build(f *File, opts BuildOptions) (*Config, error) {
	cfg := &Config{Guilds: make(map[uint64]*Guild, len(f.Guilds))}
	for key, gf := range f.Guilds {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("%w: guild key %q is not a numeric ID", ErrConfig, key)
		}
		g, err := buildGuild(id, &gf, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: guild %d: %w", ErrConfig, id, err)
		}
		cfg.Guilds[id] = g
	}
	return cfg, nil
}

func buildGuild(id uint64, gf *GuildFile, opts BuildOptions) (*Guild, error) {
	mods, err := entity.NewCollection(gf.Moderators)
	if err != nil {
		return nil, fmt.Errorf("moderators: %w", err)
	}
	g := &Guild{ID: id, Moderators: mods}

	ruleOpts := rule.Options{
		Limiters: opts.Limiters,
		Scope:    strconv.FormatUint(id, 10),
	}
	seen := make(map[string]bool)
	add := func(cfg rule.Config) error {
		if cfg.Name != "" && seen[cfg.Name] {
			return fmt.Errorf("rule %q: duplicate name", cfg.Name)
		}
		seen[cfg.Name] = true
		r, err := rule.Compile(cfg, ruleOpts)
		if err != nil {
			return fmt.Errorf("rule %q: %w", cfg.Name, err)
		}
		g.Rules = append(g.Rules, r)
		return nil
	}

	for i := range gf.Rules {
		if err := add(gf.Rules[i].ruleConfig()); err != nil {
			return nil, err
		}
	}
	for i := range gf.Autoresponses {
		cfg, err := gf.Autoresponses[i].ruleConfig()
		if err != nil {
			return nil, fmt.Errorf("autoresponse %q: %w", gf.Autoresponses[i].Name, err)
		}
		if err := add(cfg); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Decodes YAML (or JSON) configuration. Unknown keys are errors.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return &f, nil
}

func Parse(data []byte, opts BuildOptions) (*Config, error) {
	f, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return Build(f, opts)
}

func LoadFile(path string, opts BuildOptions) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrConfig, path, err)
	}
	return Parse(data, opts)
}
