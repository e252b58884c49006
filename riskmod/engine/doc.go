// Posting-risk evaluation engine.
//
// This package (`github.com/bluesky-social/postwatch/riskmod/engine`) pulls a user's upcoming scheduled posts, recent post outcomes, moderation flags, and the rule sets of every destination involved, then runs a set of analyzer functions over them. Analyzers emit advisory warnings; the engine merges warnings sharing an ID (keeping the higher severity), orders them, derives aggregate stats, and persists a daily snapshot through the DataSource.
//
// The engine is advisory only: it never blocks or modifies posts. See `riskmod/rules` for the default analyzers, and `cmd/riskd` for a daemon built on this package.
package engine
