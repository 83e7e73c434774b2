// Whitelist/blacklist evaluation for moderation rules, with an exemption override.
package filterlist

import (
	"errors"
	"fmt"

	"github.com/bluesky-social/chatmod/automod/entity"
)

type Mode int

const (
	ModeNone Mode = iota
	ModeWhitelist
	ModeBlacklist
)

func (m Mode) String() string {
	switch m {
	case ModeWhitelist:
		return "whitelist"
	case ModeBlacklist:
		return "blacklist"
	default:
		return "none"
	}
}

var ErrBothLists = errors.New("both whitelist and blacklist present")
var ErrExemptWithoutList = errors.New("exempt requires a whitelist or blacklist")

// Immutable after construction. A nil *FilterList behaves as ModeNone.
type FilterList struct {
	mode    Mode
	primary *entity.Collection
	exempt  *entity.Collection
}

// Builds a filter list from the raw configuration lists. A nil pointer means the key was absent; a non-nil pointer to an empty slice is an explicit empty list.
func New(whitelist, blacklist, exempt *[]string) (*FilterList, error) {
	if whitelist != nil && blacklist != nil {
		return nil, ErrBothLists
	}
	if exempt != nil && whitelist == nil && blacklist == nil {
		return nil, ErrExemptWithoutList
	}

	fl := &FilterList{mode: ModeNone}
	var primary []string
	switch {
	case whitelist != nil:
		fl.mode = ModeWhitelist
		primary = *whitelist
	case blacklist != nil:
		fl.mode = ModeBlacklist
		primary = *blacklist
	default:
		return fl, nil
	}

	var err error
	fl.primary, err = entity.NewCollection(primary)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fl.mode, err)
	}
	if exempt != nil {
		fl.exempt, err = entity.NewCollection(*exempt)
		if err != nil {
			return nil, fmt.Errorf("exempt: %w", err)
		}
	}
	return fl, nil
}

func (fl *FilterList) Mode() Mode {
	if fl == nil {
		return ModeNone
	}
	return fl.mode
}

// Decides whether a message from this subject should be suppressed. Exemption has the final word in both modes.
func (fl *FilterList) IsFiltered(s entity.Subject) bool {
	switch fl.Mode() {
	case ModeWhitelist:
		if !fl.primary.ContainsSubject(s) {
			return true
		}
		return fl.exempt.ContainsSubject(s)
	case ModeBlacklist:
		if !fl.primary.ContainsSubject(s) {
			return false
		}
		return !fl.exempt.ContainsSubject(s)
	default:
		return false
	}
}
