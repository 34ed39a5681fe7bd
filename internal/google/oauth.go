package google

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultScopes are the Google OAuth scopes the bot requests on /login.
//
// The scopes provide access to:
//   - Google Calendar: full access (list, insert, update, delete)
//   - OpenID Connect userinfo: name and email for the post-login greeting
var DefaultScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/calendar",
}

// OAuthConfig builds the oauth2 client configuration used for consent
// URLs, token exchanges, and refreshing token sources.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       DefaultScopes,
	}
}
