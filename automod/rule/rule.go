// Compiled moderation rules and the match decision.
package rule

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/bluesky-social/chatmod/automod/filterlist"
	"github.com/bluesky-social/chatmod/automod/helpers"
	"github.com/bluesky-social/chatmod/automod/platform"
	"github.com/bluesky-social/chatmod/automod/ratelimit"
	"github.com/bluesky-social/chatmod/automod/response"
)

// Rule configuration, as decoded from the configuration file. Nil pointers mean the key was absent.
type Config struct {
	Name      string
	Patterns  []string
	Min       *int
	Max       *int
	Responses []string

	Whitelist *[]string
	Blacklist *[]string
	Exempt    *[]string

	AllowModBypass bool
	MatchEmbeds    bool
	IgnoreCase     bool
	// send stdout of exec responses to the invoking channel
	RelayExec bool
	Cooldown  time.Duration
}

// Config with the documented defaults applied: moderator bypass on, embed matching off, case-insensitive.
func DefaultConfig() Config {
	return Config{
		AllowModBypass: true,
		IgnoreCase:     true,
	}
}

type Options struct {
	// Builds the cooldown limiter for rules which configure one. Defaults to in-process limiters.
	Limiters ratelimit.Factory
	// Namespace for limiter keys, usually the guild ID.
	Scope string
}

type Rule struct {
	Name      string
	Filter    *filterlist.FilterList
	Responses []*response.Response

	patterns    []*regexp.Regexp
	min         int
	max         int
	modBypass   bool
	matchEmbeds bool
	cooldown    ratelimit.Limiter
}

var ErrInvalidRule = errors.New("invalid rule")

func Compile(cfg Config, opts Options) (*Rule, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidRule)
	}
	if len(cfg.Patterns) == 0 {
		return nil, fmt.Errorf("%w: at least one regex is required", ErrInvalidRule)
	}
	if len(cfg.Responses) == 0 {
		return nil, fmt.Errorf("%w: at least one response is required", ErrInvalidRule)
	}

	r := &Rule{
		Name:        cfg.Name,
		min:         -1,
		max:         -1,
		modBypass:   cfg.AllowModBypass,
		matchEmbeds: cfg.MatchEmbeds,
	}

	flags := "(?s)"
	if cfg.IgnoreCase {
		flags = "(?is)"
	}
	for _, p := range cfg.Patterns {
		if p == "" {
			return nil, fmt.Errorf("%w: empty regex", ErrInvalidRule)
		}
		re, err := regexp.Compile(flags + p)
		if err != nil {
			return nil, fmt.Errorf("%w: regex %q: %w", ErrInvalidRule, p, err)
		}
		r.patterns = append(r.patterns, re)
	}

	if cfg.Min != nil {
		if *cfg.Min < 0 {
			return nil, fmt.Errorf("%w: negative min %d", ErrInvalidRule, *cfg.Min)
		}
		r.min = *cfg.Min
	}
	if cfg.Max != nil {
		if *cfg.Max < 0 {
			return nil, fmt.Errorf("%w: negative max %d", ErrInvalidRule, *cfg.Max)
		}
		r.max = *cfg.Max
	}
	// both bounds are exclusive
	if r.min >= 0 && r.max >= 0 && r.max <= r.min+1 {
		return nil, fmt.Errorf("%w: no length satisfies min %d < length < max %d", ErrInvalidRule, r.min, r.max)
	}

	fl, err := filterlist.New(cfg.Whitelist, cfg.Blacklist, cfg.Exempt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}
	r.Filter = fl

	for _, line := range cfg.Responses {
		resp, err := response.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRule, err)
		}
		if act, ok := resp.Action.(response.ExecAction); ok && cfg.RelayExec {
			act.Relay = true
			resp.Action = act
		}
		r.Responses = append(r.Responses, resp)
	}

	if cfg.Cooldown > 0 {
		factory := opts.Limiters
		if factory == nil {
			factory = ratelimit.MemFactory
		}
		scope := cfg.Name
		if opts.Scope != "" {
			scope = opts.Scope + "/" + cfg.Name
		}
		r.cooldown = factory(scope, cfg.Cooldown)
	}
	return r, nil
}

// Text the patterns run against: the message body, or the flattened embeds in embed mode.
func (r *Rule) text(msg *platform.Message) (string, bool) {
	if r.matchEmbeds {
		if len(msg.Embeds) == 0 {
			return "", false
		}
		return helpers.FlattenEmbeds(msg.Embeds), true
	}
	return msg.Content, true
}

// Decides whether the rule applies to the message. Length bounds are exclusive and counted in code points. Cheap checks run before any regex.
func (r *Rule) Match(msg *platform.Message, isModerator bool) bool {
	text, ok := r.text(msg)
	if !ok {
		return false
	}
	if r.min >= 0 || r.max >= 0 {
		n := utf8.RuneCountInString(text)
		if r.min >= 0 && n <= r.min {
			return false
		}
		if r.max >= 0 && n >= r.max {
			return false
		}
	}
	// moderators are never subject to filter list logic
	if r.modBypass && isModerator {
		return false
	}
	if r.Filter.IsFiltered(msg.Subject()) {
		return false
	}
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Applies the rule's cooldown, keyed by channel. Rules without a cooldown always admit.
func (r *Rule) Admit(ctx context.Context, msg *platform.Message) (bool, error) {
	if r.cooldown == nil {
		return true, nil
	}
	return r.cooldown.Admit(ctx, strconv.FormatUint(msg.ChannelID, 10))
}

func (r *Rule) ResponseLines() []string {
	out := make([]string, len(r.Responses))
	for i, resp := range r.Responses {
		out[i] = resp.Line
	}
	return out
}
