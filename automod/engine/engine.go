package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bluesky-social/chatmod/automod/actionlog"
	"github.com/bluesky-social/chatmod/automod/config"
	"github.com/bluesky-social/chatmod/automod/countstore"
	"github.com/bluesky-social/chatmod/automod/directory"
	"github.com/bluesky-social/chatmod/automod/flagstore"
	"github.com/bluesky-social/chatmod/automod/helpers"
	"github.com/bluesky-social/chatmod/automod/platform"
	"github.com/bluesky-social/chatmod/automod/response"
	"github.com/bluesky-social/chatmod/automod/rule"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	counterRuleMatch      = "rule-match"
	counterRuleMatchUsers = "rule-match-users"
)

// runtime for evaluating rules against messages, and executing their responses.
//
// Logger, Client, Directory, Counters, and Flags must be set. Actions and Notifier are optional.
type Engine struct {
	Logger    *slog.Logger
	Client    platform.Client
	Directory directory.Directory
	Counters  countstore.CountStore
	Flags     flagstore.FlagStore
	// persists every executed response (optional)
	Actions actionlog.Store
	// notified of bans and kicks (optional)
	Notifier *SlackNotifier

	config atomic.Pointer[config.Config]
}

var _ response.History = (*Engine)(nil)

func (eng *Engine) Config() *config.Config {
	return eng.config.Load()
}

func (eng *Engine) SetConfig(cfg *config.Config) {
	eng.config.Store(cfg)
	if cfg != nil {
		configRuleCount.Set(float64(cfg.RuleCount()))
	}
}

// Loads a new configuration and swaps it in. On any error the active configuration is left in place.
func (eng *Engine) Reload(load func() (*config.Config, error)) error {
	cfg, err := load()
	if err != nil {
		configReloadCount.WithLabelValues("error").Inc()
		eng.Logger.Error("configuration reload failed, keeping previous configuration", "err", err)
		return err
	}
	eng.SetConfig(cfg)
	configReloadCount.WithLabelValues("ok").Inc()
	eng.Logger.Info("configuration reloaded", "guilds", len(cfg.Guilds), "rules", cfg.RuleCount())
	return nil
}

func messageKind(msg *platform.Message) string {
	if msg.IsEdit() {
		return "update"
	}
	return "create"
}

// Evaluates every rule of the message's guild concurrently, and runs the responses of matching rules.
//
// Response failures are logged and never returned. Returned errors are from bookkeeping (counters, flags, action log, cooldown store).
func (eng *Engine) ProcessMessage(ctx context.Context, msg *platform.Message) error {
	kind := messageKind(msg)
	// similar to an HTTP server, we want to recover any panics from rule execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("automod message execution exception", "err", r, "guild", msg.GuildID, "message", msg.ID)
		}
	}()

	if msg.Author.Bot {
		return nil
	}
	guild, ok := eng.Config().Guild(msg.GuildID)
	if !ok {
		return nil
	}

	start := time.Now()
	defer func() {
		messageProcessDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()
	messageProcessCount.WithLabelValues(kind).Inc()

	ctx, span := otel.Tracer("chatmod").Start(ctx, "ProcessMessage", trace.WithAttributes(
		attribute.String("guild", strconv.FormatUint(msg.GuildID, 10)),
		attribute.String("channel", strconv.FormatUint(msg.ChannelID, 10)),
		attribute.String("kind", kind),
		attribute.Int("rules", len(guild.Rules)),
	))
	defer span.End()

	logger := eng.Logger.With("guild", msg.GuildID, "channel", msg.ChannelID, "message", msg.ID, "user", msg.Author.ID)
	isMod := guild.IsModerator(msg.Subject())
	logger.Debug("processing message", "kind", kind, "moderator", isMod)

	var g errgroup.Group
	for _, r := range guild.Rules {
		r := r
		g.Go(func() error {
			return eng.processRule(ctx, logger.With("rule", r.Name), msg, r, isMod)
		})
	}
	if err := g.Wait(); err != nil {
		messageErrorCount.WithLabelValues(kind).Inc()
		span.RecordError(err)
		return err
	}
	return nil
}

func (eng *Engine) processRule(ctx context.Context, logger *slog.Logger, msg *platform.Message, r *rule.Rule, isMod bool) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("automod rule execution exception", "err", rec)
			err = fmt.Errorf("rule %q: panic: %v", r.Name, rec)
		}
	}()

	if !r.Match(msg, isMod) {
		return nil
	}
	admitted, err := r.Admit(ctx, msg)
	if err != nil {
		return fmt.Errorf("rule %q: cooldown: %w", r.Name, err)
	}
	if !admitted {
		ruleCooldownCount.WithLabelValues(r.Name).Inc()
		logger.Debug("rule matched during cooldown")
		return nil
	}
	ruleMatchCount.WithLabelValues(r.Name).Inc()
	logger.Info("rule matched", "responses", len(r.Responses))

	var errs []error
	if err := eng.countMatch(ctx, msg, r.Name); err != nil {
		errs = append(errs, err)
	}

	env := &response.Env{
		Client:        eng.Client,
		Directory:     eng.Directory,
		Message:       msg,
		RuleName:      r.Name,
		ResponseLines: r.ResponseLines(),
		Logger:        logger,
		History:       eng,
	}
	contentHash := helpers.HashOfString(msg.Content)
	entries := make([]actionlog.Entry, 0, len(r.Responses))
	var removals []response.Verb
	// in configured order; later responses may depend on earlier ones
	for _, resp := range r.Responses {
		rerr := eng.invokeResponse(ctx, env, resp)
		entry := actionlog.Entry{
			GuildID:     msg.GuildID,
			UserID:      msg.Author.ID,
			ChannelID:   msg.ChannelID,
			MessageID:   msg.ID,
			Rule:        r.Name,
			Verb:        string(resp.Verb),
			Line:        response.Redact(resp.Line),
			ContentHash: contentHash,
			Success:     rerr == nil,
		}
		if rerr != nil {
			entry.Error = rerr.Error()
		} else if resp.Verb == response.VerbBan || resp.Verb == response.VerbKick {
			removals = append(removals, resp.Verb)
		}
		entries = append(entries, entry)
	}

	if eng.Flags != nil {
		if err := eng.Flags.Add(ctx, userKey(msg.GuildID, msg.Author.ID), []string{"rule:" + r.Name}); err != nil {
			errs = append(errs, fmt.Errorf("adding user flag: %w", err))
		}
	}
	if eng.Actions != nil {
		if err := eng.Actions.Record(ctx, entries); err != nil {
			errs = append(errs, fmt.Errorf("recording actions: %w", err))
		}
	}
	if eng.Notifier != nil && len(removals) > 0 {
		if err := eng.Notifier.SendRemoval(ctx, msg, r.Name, removals); err != nil {
			logger.Warn("failed to send slack notification", "err", err)
		}
	}
	return errors.Join(errs...)
}

// Runs a single response, isolating panics and errors from the rest of the rule.
func (eng *Engine) invokeResponse(ctx context.Context, env *response.Env, resp *response.Response) error {
	err := safeInvoke(ctx, env, resp)
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, response.ErrUnresolved):
		status = "skipped"
		env.Logger.Warn("response skipped", "verb", resp.Verb, "line", resp.Line, "err", err)
	default:
		status = "error"
		env.Logger.Error("response failed", "verb", resp.Verb, "err", err)
		eng.noticeFailure(ctx, env, resp, err)
	}
	responseCount.WithLabelValues(string(resp.Verb), status).Inc()
	return err
}

func safeInvoke(ctx context.Context, env *response.Env, resp *response.Response) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s: panic: %v", resp.Verb, rec)
		}
	}()
	return resp.Invoke(ctx, env)
}

// Posts a short notice of a failed response to the originating channel. Failed replies are not noticed, as the channel is evidently not writable.
func (eng *Engine) noticeFailure(ctx context.Context, env *response.Env, resp *response.Response, err error) {
	if resp.Verb == response.VerbSay {
		return
	}
	text := fmt.Sprintf("⚠️ Rule `%s` could not %s: %s", env.RuleName, resp.Verb, noticeReason(err))
	if nerr := eng.Client.SendMessage(ctx, env.Message.ChannelID, text); nerr != nil {
		env.Logger.Warn("failed to send failure notice", "err", nerr)
	}
}

func noticeReason(err error) string {
	if errors.Is(err, response.ErrExecTimeout) {
		return "timed out"
	}
	return "the platform rejected the request"
}

func userKey(guildID, userID uint64) string {
	return fmt.Sprintf("%d/%d", guildID, userID)
}

func ruleKey(guildID uint64, rule string) string {
	return fmt.Sprintf("%d/%s", guildID, rule)
}

func (eng *Engine) countMatch(ctx context.Context, msg *platform.Message, rule string) error {
	if eng.Counters == nil {
		return nil
	}
	if err := eng.Counters.Increment(ctx, counterRuleMatch, ruleKey(msg.GuildID, rule)); err != nil {
		return fmt.Errorf("incrementing rule counter: %w", err)
	}
	if err := eng.Counters.IncrementDistinct(ctx, counterRuleMatchUsers, ruleKey(msg.GuildID, rule), strconv.FormatUint(msg.Author.ID, 10)); err != nil {
		return fmt.Errorf("incrementing rule user counter: %w", err)
	}
	return nil
}

func (eng *Engine) UserFlags(ctx context.Context, guildID, userID uint64) ([]string, error) {
	if eng.Flags == nil {
		return nil, nil
	}
	return eng.Flags.Get(ctx, userKey(guildID, userID))
}

func (eng *Engine) RecentActions(ctx context.Context, guildID, userID uint64, limit int) ([]string, error) {
	if eng.Actions == nil {
		return nil, nil
	}
	entries, err := eng.Actions.ForUser(ctx, guildID, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("%s %s: %s", e.CreatedAt.UTC().Format("2006-01-02 15:04"), e.Rule, e.Verb)
		if !e.Success {
			line += " (failed)"
		}
		out = append(out, line)
	}
	return out, nil
}

func (eng *Engine) RuleStatsToday(ctx context.Context, guildID uint64, rule string) (response.RuleStats, error) {
	var stats response.RuleStats
	if eng.Counters == nil {
		return stats, nil
	}
	hits, err := eng.Counters.GetCount(ctx, counterRuleMatch, ruleKey(guildID, rule), countstore.PeriodDay)
	if err != nil {
		return stats, err
	}
	users, err := eng.Counters.GetCountDistinct(ctx, counterRuleMatchUsers, ruleKey(guildID, rule), countstore.PeriodDay)
	if err != nil {
		return stats, err
	}
	stats.Hits = hits
	stats.Users = users
	return stats, nil
}

// Removes every rule flag from a user, so later reports no longer list them. Returns the flags removed.
func (eng *Engine) ClearUserFlags(ctx context.Context, guildID, userID uint64) ([]string, error) {
	if eng.Flags == nil {
		return nil, nil
	}
	key := userKey(guildID, userID)
	flags, err := eng.Flags.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var rules []string
	for _, f := range flags {
		if strings.HasPrefix(f, "rule:") {
			rules = append(rules, f)
		}
	}
	if len(rules) == 0 {
		return nil, nil
	}
	if err := eng.Flags.Remove(ctx, key, rules); err != nil {
		return nil, fmt.Errorf("removing user flags: %w", err)
	}
	return rules, nil
}
