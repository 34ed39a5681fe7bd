// Package calendar wraps the Google Calendar API for one authenticated
// user. All operations work against the user's primary calendar, hit the
// provider on every call (no local cache), and transmit timestamps in
// UTC. The user-supplied time zone name on create/update is kept as a
// display label only and never used to convert the instant.
package calendar
