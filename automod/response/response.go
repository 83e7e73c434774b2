package response

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/bluesky-social/chatmod/automod/entity"

	"github.com/mattn/go-shellwords"
)

var (
	// Wraps every load-time response validation failure.
	ErrInvalidResponse = errors.New("invalid response")
	// A response target, user, or role could not be found. Logged and skipped, never fatal.
	ErrUnresolved      = errors.New("unresolved target")
	ErrExecTimeout     = errors.New("exec timed out")
)

type Verb string

const (
	VerbRemove     Verb = "remove"
	VerbSay        Verb = "say"
	VerbReport     Verb = "report"
	VerbBan        Verb = "ban"
	VerbKick       Verb = "kick"
	VerbGrantRole  Verb = "grantrole"
	VerbRevokeRole Verb = "revokerole"
	VerbExec       Verb = "exec"
)

var verbAliases = map[string]Verb{
	"remove":     VerbRemove,
	"delete":     VerbRemove,
	"erase":      VerbRemove,
	"say":        VerbSay,
	"reply":      VerbSay,
	"send":       VerbSay,
	"report":     VerbReport,
	"ban":        VerbBan,
	"kick":       VerbKick,
	"grantrole":  VerbGrantRole,
	"addrole":    VerbGrantRole,
	"revokerole": VerbRevokeRole,
	"removerole": VerbRevokeRole,
	"delrole":    VerbRevokeRole,
	"exec":       VerbExec,
	"run":        VerbExec,
}

const (
	DefaultExecTimeout = 5 * time.Second
	MaxPurgeDays       = 7
)

// Action is one of the concrete action types in this package. The set is closed: Invoke handles each with a single type switch.
type Action interface {
	verb() Verb
}

type RemoveAction struct{}

type SayAction struct {
	Target Target
	Text   string
}

type ReportAction struct {
	Target Target
	// omits the listing of the rule's own responses
	Brief bool
}

type BanAction struct {
	PurgeDays int
}

type KickAction struct{}

type RoleAction struct {
	Target Target
	Role   *entity.Ref
	Grant  bool
}

type ExecAction struct {
	Program string
	Args    []string
	Timeout time.Duration
	// send trimmed stdout to the invoking channel
	Relay bool
}

func (RemoveAction) verb() Verb { return VerbRemove }
func (SayAction) verb() Verb { return VerbSay }
func (ReportAction) verb() Verb { return VerbReport }
func (BanAction) verb() Verb { return VerbBan }
func (KickAction) verb() Verb { return VerbKick }
func (a RoleAction) verb() Verb {
	if a.Grant {
		return VerbGrantRole
	}
	return VerbRevokeRole
}
func (ExecAction) verb() Verb { return VerbExec }

// Destination of a say, report, or role response. Self means the invoking channel (for channel kind) or the invoking user (for user kind).
type Target struct {
	Kind entity.Kind
	Self bool
	Ref  *entity.Ref
}

func (t Target) String() string {
	if t.Self {
		return t.Kind.Sigil() + "_"
	}
	if t.Ref == nil {
		return ""
	}
	return t.Ref.Render()
}

// One compiled configuration line.
type Response struct {
	Line   string
	Verb   Verb
	Action Action
}

func (r *Response) String() string {
	return r.Line
}

// Parses a single "<verb> <args...>" configuration line. All validation happens here, so that a bad line fails the whole configuration load.
func Parse(line string) (*Response, error) {
	line = strings.TrimSpace(line)
	word, rest := cutWord(line)
	if word == "" {
		return nil, fmt.Errorf("%w: empty line", ErrInvalidResponse)
	}
	verb, ok := verbAliases[strings.ToLower(word)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown verb %q", ErrInvalidResponse, word)
	}

	var act Action
	var err error
	switch verb {
	case VerbRemove:
		act, err = noArgs(RemoveAction{}, rest)
	case VerbKick:
		act, err = noArgs(KickAction{}, rest)
	case VerbSay:
		act, err = parseSay(rest)
	case VerbReport:
		act, err = parseReport(rest)
	case VerbBan:
		act, err = parseBan(rest)
	case VerbGrantRole, VerbRevokeRole:
		act, err = parseRole(rest, verb == VerbGrantRole)
	case VerbExec:
		act, err = parseExec(rest)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, word, err)
	}
	return &Response{Line: line, Verb: verb, Action: act}, nil
}

// Returns the line with any exec arguments hidden, for display in reports.
func Redact(line string) string {
	word, rest := cutWord(strings.TrimSpace(line))
	if verbAliases[strings.ToLower(word)] == VerbExec && rest != "" {
		return word + " [redacted]"
	}
	return strings.TrimSpace(line)
}

func cutWord(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func noArgs(act Action, rest string) (Action, error) {
	if rest != "" {
		return nil, fmt.Errorf("takes no arguments, got %q", rest)
	}
	return act, nil
}

// Parses a say/report destination: "#_", "@_", "#name", "@name", or a bare numeric ID.
func parseTarget(tok string, allowUser bool) (Target, error) {
	switch {
	case tok == "#_":
		return Target{Kind: entity.KindChannel, Self: true}, nil
	case tok == "@_":
		if !allowUser {
			return Target{}, fmt.Errorf("target must be a channel: %q", tok)
		}
		return Target{Kind: entity.KindUser, Self: true}, nil
	case strings.HasPrefix(tok, "#") && len(tok) > 1:
		return Target{Kind: entity.KindChannel, Ref: entity.Parse(tok[1:], entity.KindChannel)}, nil
	case strings.HasPrefix(tok, "@") && len(tok) > 1:
		if !allowUser {
			return Target{}, fmt.Errorf("target must be a channel: %q", tok)
		}
		return Target{Kind: entity.KindUser, Ref: entity.Parse(tok[1:], entity.KindUser)}, nil
	}
	if id, err := strconv.ParseUint(tok, 10, 64); err == nil && id != 0 {
		kind := entity.KindUnknown
		if !allowUser {
			kind = entity.KindChannel
		}
		return Target{Kind: kind, Ref: entity.Parse(tok, kind)}, nil
	}
	return Target{}, fmt.Errorf("malformed target %q", tok)
}

func parseSay(rest string) (Action, error) {
	tok, text := cutWord(rest)
	if tok == "" {
		return nil, fmt.Errorf("missing target")
	}
	t, err := parseTarget(tok, true)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("blank response text")
	}
	return SayAction{Target: t, Text: text}, nil
}

func parseReport(rest string) (Action, error) {
	args := strings.Fields(rest)
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("expected a target and an optional 'brief', got %d arguments", len(args))
	}
	t, err := parseTarget(args[0], false)
	if err != nil {
		return nil, err
	}
	act := ReportAction{Target: t}
	if len(args) == 2 {
		if !strings.EqualFold(args[1], "brief") {
			return nil, fmt.Errorf("unexpected argument %q", args[1])
		}
		act.Brief = true
	}
	return act, nil
}

func parseBan(rest string) (Action, error) {
	args := strings.Fields(rest)
	switch len(args) {
	case 0:
		return BanAction{}, nil
	case 1:
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("purge days not a number: %q", args[0])
		}
		if days < 0 || days > MaxPurgeDays {
			return nil, fmt.Errorf("purge days out of range 0-%d: %d", MaxPurgeDays, days)
		}
		return BanAction{PurgeDays: days}, nil
	default:
		return nil, fmt.Errorf("expected at most one argument, got %d", len(args))
	}
}

// Accepts "<role>" (target is the invoking user) or "<user> <role>", where user is "@_", "@name", or a numeric ID. Role names may contain spaces, and may carry a leading "&".
func parseRole(rest string, grant bool) (Action, error) {
	args := strings.Fields(rest)
	if len(args) == 0 {
		return nil, fmt.Errorf("missing role")
	}
	target := Target{Kind: entity.KindUser, Self: true}
	if len(args) >= 2 && strings.HasPrefix(args[0], "#") {
		return nil, fmt.Errorf("role target must be a user: %q", args[0])
	}
	if len(args) >= 2 && (strings.HasPrefix(args[0], "@") || isNumeric(args[0])) {
		t, err := parseTarget(args[0], true)
		if err != nil {
			return nil, err
		}
		if t.Kind == entity.KindUnknown {
			t.Kind = entity.KindUser
			t.Ref = entity.Parse(args[0], entity.KindUser)
		}
		target = t
		args = args[1:]
	}
	if strings.HasPrefix(args[0], "#") || strings.HasPrefix(args[0], "@") {
		return nil, fmt.Errorf("malformed role %q", args[0])
	}
	role := strings.TrimPrefix(strings.Join(args, " "), "&")
	if role == "" {
		return nil, fmt.Errorf("missing role")
	}
	return RoleAction{Target: target, Role: entity.Parse(role, entity.KindRole), Grant: grant}, nil
}

func parseExec(rest string) (Action, error) {
	words, err := shellwords.Parse(rest)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("missing program")
	}
	return ExecAction{Program: words[0], Args: words[1:], Timeout: DefaultExecTimeout}, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
