// Package auth implements the authorization broker for the bot: the
// in-memory credential store keyed by chat user, and the tracker for
// in-flight OAuth authorization attempts keyed by their one-time CSRF
// state token.
//
// Both stores are shared between the bot's update loop and the OAuth
// callback HTTP handlers and are safe for concurrent use. No lock is
// ever held across a network call; the token exchange in Resolve runs
// after the pending entry has already been consumed.
package auth
