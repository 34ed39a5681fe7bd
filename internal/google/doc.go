// Package google holds the OAuth client configuration shared by the
// authorization flow and the per-user API clients, plus the userinfo
// profile fetch used for the post-login greeting.
package google
