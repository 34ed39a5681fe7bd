// Package telegram provides a minimal Telegram Bot API client, the
// long-polling bot loop serving chat commands, and the notifier used by
// the OAuth callback handlers to message users from outside the bot
// loop. All API access is plain authenticated HTTPS against the Bot API,
// so the callback goroutines can send messages without any handle into
// the polling loop.
package telegram
