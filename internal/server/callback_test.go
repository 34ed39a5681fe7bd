package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/velikanov/calsec/internal/auth"
	"github.com/velikanov/calsec/internal/google"
)

const successURL = "https://t.me/calsecbot"

// fakeNotifier records chat notifications.
type fakeNotifier struct {
	users    []auth.UserID
	messages []string
}

func (n *fakeNotifier) Notify(user auth.UserID, text string) {
	n.users = append(n.users, user)
	n.messages = append(n.messages, text)
}

// newTokenServer replies with tokens for code "good-code" and rejects
// everything else.
func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type callbackFixture struct {
	server   *CallbackServer
	flows    *auth.FlowTracker
	creds    *auth.CredentialStore
	notifier *fakeNotifier
}

func newCallbackFixture(t *testing.T, profile ProfileFetcher) *callbackFixture {
	t.Helper()

	tokenSrv := newTokenServer(t)
	conf := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/callback",
		Scopes:       []string{"calendar"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/auth",
			TokenURL: tokenSrv.URL + "/token",
		},
	}

	if profile == nil {
		profile = func(ctx context.Context, cred *auth.StoredCredential) (*google.Profile, error) {
			return &google.Profile{Name: "Jane", Email: "jane@example.com"}, nil
		}
	}

	flows := auth.NewFlowTracker(conf, nil)
	creds := auth.NewCredentialStore()
	notifier := &fakeNotifier{}

	srv, err := NewCallbackServer(CallbackConfig{
		Flows:      flows,
		Creds:      creds,
		Profile:    profile,
		Notifier:   notifier,
		SuccessURL: successURL,
	})
	require.NoError(t, err)

	return &callbackFixture{server: srv, flows: flows, creds: creds, notifier: notifier}
}

func (f *callbackFixture) get(t *testing.T, query string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, CallbackPath+query, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCallbackMissingParameters(t *testing.T) {
	f := newCallbackFixture(t, nil)

	tests := []struct {
		name  string
		query string
	}{
		{"no parameters", ""},
		{"missing code", "?state=abc"},
		{"missing state", "?code=good-code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, f.notifier.messages)
}

func TestCallbackUnknownState(t *testing.T) {
	f := newCallbackFixture(t, nil)

	rec := f.get(t, "?state=never-issued&code=good-code")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid state parameter")
	assert.Empty(t, f.notifier.messages)
}

func TestCallbackSuccess(t *testing.T) {
	f := newCallbackFixture(t, nil)

	_, state, err := f.flows.Begin(42)
	require.NoError(t, err)

	rec := f.get(t, "?state="+state+"&code=good-code")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, successURL, rec.Header().Get("Location"))

	cred, ok := f.creds.Get(42)
	require.True(t, ok, "credential not stored")
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)

	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, auth.UserID(42), f.notifier.users[0])
	assert.Contains(t, f.notifier.messages[0], "Authorization successful")
	assert.Contains(t, f.notifier.messages[0], "Jane")
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	f := newCallbackFixture(t, nil)

	_, state, err := f.flows.Begin(42)
	require.NoError(t, err)

	first := f.get(t, "?state="+state+"&code=good-code")
	require.Equal(t, http.StatusFound, first.Code)

	replay := f.get(t, "?state="+state+"&code=good-code")
	assert.Equal(t, http.StatusBadRequest, replay.Code)
}

func TestCallbackExchangeFailure(t *testing.T) {
	f := newCallbackFixture(t, nil)

	_, state, err := f.flows.Begin(42)
	require.NoError(t, err)

	rec := f.get(t, "?state="+state+"&code=bad-code")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	_, ok := f.creds.Get(42)
	assert.False(t, ok, "no credential should be stored on exchange failure")

	// The user is told about the failure over the chat channel.
	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, auth.UserID(42), f.notifier.users[0])
	assert.Contains(t, f.notifier.messages[0], "authorization failed")

	// The failed exchange still consumed the token.
	replay := f.get(t, "?state="+state+"&code=good-code")
	assert.Equal(t, http.StatusBadRequest, replay.Code)
}

func TestCallbackProfileFetchFailure(t *testing.T) {
	profile := func(ctx context.Context, cred *auth.StoredCredential) (*google.Profile, error) {
		return nil, errors.New("userinfo unavailable")
	}
	f := newCallbackFixture(t, profile)

	_, state, err := f.flows.Begin(42)
	require.NoError(t, err)

	rec := f.get(t, "?state="+state+"&code=good-code")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The credential was stored before the profile fetch, so the user
	// is authorized despite the failed confirmation.
	_, ok := f.creds.Get(42)
	assert.True(t, ok)

	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "authorization failed")
}
