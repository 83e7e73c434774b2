// Chat moderation rules engine.
//
// The packages under this directory (`github.com/bluesky-social/chatmod/automod/...`) match messages in chat guilds against per-guild regex rules, and run each matched rule's configured responses: deleting the message, replying, posting a report to a moderator channel, banning or kicking the author, granting or revoking roles, or running an external program. Counters and per-user flags are kept for each rule hit, so reports can show prior history.
//
// `automod/engine` is the runtime, `automod/config` parses and validates the YAML configuration, and `automod/platform/discord` connects the engine to Discord. See `cmd/chatmod` for a daemon built on these packages.
package automod
