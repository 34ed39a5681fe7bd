package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// UserID identifies one end user across the messaging channel (the
// Telegram chat id). It is the sole key for all per-user state.
type UserID int64

// StoredCredential holds the OAuth credential material for one user.
// Created or overwritten on a successful token exchange; read on every
// calendar operation. Refresh is delegated to the oauth2 token source at
// use time, so the stored material is never independently expired here.
type StoredCredential struct {
	User         UserID
	AccessToken  string
	RefreshToken string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Expiry       time.Time
}

// Token converts the stored material back into an oauth2 token.
func (c *StoredCredential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// TokenSource returns a refreshing token source backed by the credential's
// own client configuration. Refreshed access tokens are not written back
// to the store; the refresh token is the durable part.
func (c *StoredCredential) TokenSource(ctx context.Context) oauth2.TokenSource {
	conf := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: c.TokenURL},
		Scopes:       c.Scopes,
	}
	return conf.TokenSource(ctx, c.Token())
}

// CredentialStore is the process-wide keyed storage of credentials per
// user. Last write wins; at most one credential per user.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[UserID]*StoredCredential
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		creds: make(map[UserID]*StoredCredential),
	}
}

// Put stores the credential for the user, overwriting any existing entry.
func (s *CredentialStore) Put(user UserID, cred *StoredCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[user] = cred
}

// Get returns the credential for the user. The caller borrows a read-only
// view and must not mutate it.
func (s *CredentialStore) Get(user UserID) (*StoredCredential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[user]
	return cred, ok
}

// Delete removes the credential for the user, if any.
func (s *CredentialStore) Delete(user UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, user)
}

// Len returns the number of stored credentials.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
