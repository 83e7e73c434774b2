/*
Package response implements the moderation actions a rule runs when it matches.

Each configuration line ("remove", "say #_ Please don't spam.", "ban 1", ...) is parsed once, at configuration load, into a Response holding one of a closed set of Action types. Parsing is strict: unknown verbs, wrong argument counts, malformed targets, and out-of-range values all fail with ErrInvalidResponse.

At match time, Invoke executes the action against the triggering message. Target resolution failures are returned wrapping ErrUnresolved, so callers can log and skip them; callers are expected to isolate each response's failure from its siblings.
*/
package response
