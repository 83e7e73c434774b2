package config

import (
	"fmt"
	"time"

	"github.com/bluesky-social/chatmod/automod/rule"

	"gopkg.in/yaml.v3"
)

// Top level of the configuration file. JSON files decode too, as JSON is a subset of YAML.
type File struct {
	// keyed by guild ID
	Guilds map[string]GuildFile `yaml:"guilds"`
}

type GuildFile struct {
	Moderators    StringList         `yaml:"moderators"`
	Rules         []RuleFile         `yaml:"rules"`
	Autoresponses []AutoresponseFile `yaml:"autoresponses"`
}

type RuleFile struct {
	Name      string      `yaml:"name"`
	Regex     StringList  `yaml:"regex"`
	Min       *int        `yaml:"min"`
	Max       *int        `yaml:"max"`
	Response  StringList  `yaml:"response"`
	Whitelist *StringList `yaml:"whitelist"`
	Blacklist *StringList `yaml:"blacklist"`
	Exempt    *StringList `yaml:"exempt"`

	AllowModBypass *bool `yaml:"AllowModBypass"`
	MatchEmbeds    *bool `yaml:"MatchEmbeds"`
	IgnoreCase     *bool `yaml:"ignorecase"`
	// seconds
	Cooldown int `yaml:"cooldown"`
}

// Lightweight rule which replies to (or runs a program for) any matching message.
type AutoresponseFile struct {
	Name       string     `yaml:"name"`
	Regex      StringList `yaml:"regex"`
	Reply      string     `yaml:"reply"`
	Exec       string     `yaml:"exec"`
	Cooldown   int        `yaml:"cooldown"`
	IgnoreCase *bool      `yaml:"ignorecase"`
}

// A list of strings which may also be written as a single string.
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := node.Decode(&out); err != nil {
			return err
		}
		if out == nil {
			out = []string{}
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

func (l *StringList) ptr() *[]string {
	if l == nil {
		return nil
	}
	s := []string(*l)
	if s == nil {
		s = []string{}
	}
	return &s
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (rf *RuleFile) ruleConfig() rule.Config {
	cfg := rule.DefaultConfig()
	cfg.Name = rf.Name
	cfg.Patterns = rf.Regex
	cfg.Min = rf.Min
	cfg.Max = rf.Max
	cfg.Responses = rf.Response
	cfg.Whitelist = rf.Whitelist.ptr()
	cfg.Blacklist = rf.Blacklist.ptr()
	cfg.Exempt = rf.Exempt.ptr()
	cfg.AllowModBypass = boolOr(rf.AllowModBypass, cfg.AllowModBypass)
	cfg.MatchEmbeds = boolOr(rf.MatchEmbeds, cfg.MatchEmbeds)
	cfg.IgnoreCase = boolOr(rf.IgnoreCase, cfg.IgnoreCase)
	cfg.Cooldown = seconds(rf.Cooldown)
	return cfg
}

func (af *AutoresponseFile) ruleConfig() (rule.Config, error) {
	cfg := rule.DefaultConfig()
	cfg.Name = af.Name
	cfg.Patterns = af.Regex
	cfg.AllowModBypass = false
	cfg.IgnoreCase = boolOr(af.IgnoreCase, cfg.IgnoreCase)
	cfg.Cooldown = seconds(af.Cooldown)
	switch {
	case af.Reply != "" && af.Exec != "":
		return cfg, fmt.Errorf("only one of reply and exec may be set")
	case af.Reply != "":
		cfg.Responses = []string{"say #_ " + af.Reply}
	case af.Exec != "":
		cfg.Responses = []string{"exec " + af.Exec}
		cfg.RelayExec = true
	default:
		return cfg, fmt.Errorf("one of reply or exec is required")
	}
	return cfg, nil
}
