package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/velikanov/calsec/internal/auth"
	"github.com/velikanov/calsec/internal/google"
	"github.com/velikanov/calsec/internal/instrumentation"
	"github.com/velikanov/calsec/internal/logging"
)

const (
	// DefaultCallbackAddr is the default bind address for the OAuth
	// callback server.
	DefaultCallbackAddr = ":8080"

	// CallbackPath is the redirect path registered with the OAuth
	// provider.
	CallbackPath = "/callback"

	defaultCallbackReadTimeout  = 10 * time.Second
	defaultCallbackWriteTimeout = 30 * time.Second
	defaultCallbackIdleTimeout  = 60 * time.Second
)

// Notifier delivers a best-effort message to a chat user. Satisfied by
// telegram.Notifier.
type Notifier interface {
	Notify(user auth.UserID, text string)
}

// ProfileFetcher resolves the Google profile behind a credential. Tests
// substitute a fixture.
type ProfileFetcher func(ctx context.Context, cred *auth.StoredCredential) (*google.Profile, error)

// CallbackConfig holds the collaborators for the callback server.
type CallbackConfig struct {
	Flows *auth.FlowTracker
	Creds *auth.CredentialStore

	// Profile fetches the user's Google profile after a successful
	// exchange. When nil, google.FetchProfile is used.
	Profile ProfileFetcher

	// Notifier confirms the outcome to the user over the chat channel.
	// Optional; when nil no notification is sent.
	Notifier Notifier

	// SuccessURL is where the browser is redirected after a successful
	// authorization, typically the bot's t.me deep link.
	SuccessURL string

	// Addr is the bind address. Defaults to DefaultCallbackAddr.
	Addr string

	// Health, when set, exposes the probe endpoints on the same mux.
	Health *HealthChecker

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// CallbackServer serves the OAuth redirect endpoint. It runs on its own
// listener, independent of the bot's polling loop; the only state shared
// with the bot are the flow tracker and the credential store.
type CallbackServer struct {
	flows      *auth.FlowTracker
	creds      *auth.CredentialStore
	profile    ProfileFetcher
	notifier   Notifier
	successURL string
	addr       string
	health     *HealthChecker
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	httpServer *http.Server
}

// NewCallbackServer creates a callback server from its configuration.
func NewCallbackServer(cfg CallbackConfig) (*CallbackServer, error) {
	if cfg.Flows == nil {
		return nil, fmt.Errorf("flow tracker is required")
	}
	if cfg.Creds == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	profile := cfg.Profile
	if profile == nil {
		profile = func(ctx context.Context, cred *auth.StoredCredential) (*google.Profile, error) {
			return google.FetchProfile(ctx, cred)
		}
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultCallbackAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CallbackServer{
		flows:      cfg.Flows,
		creds:      cfg.Creds,
		profile:    profile,
		notifier:   cfg.Notifier,
		successURL: cfg.SuccessURL,
		addr:       addr,
		health:     cfg.Health,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Handler returns the HTTP handler serving the callback endpoint.
func (s *CallbackServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)
	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}
	return mux
}

// Start serves the callback endpoint in a blocking manner. Call in a
// goroutine for non-blocking operation.
func (s *CallbackServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultCallbackReadTimeout,
		WriteTimeout:      defaultCallbackWriteTimeout,
		IdleTimeout:       defaultCallbackIdleTimeout,
	}

	s.logger.Info("starting OAuth callback server", slog.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the callback server.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		s.logger.Info("shutting down OAuth callback server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleCallback completes one authorization attempt. Errors are
// terminal for that attempt only: the user can always retry /login to
// mint a fresh token.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	s.logger.Info("received OAuth callback", slog.String("state", state))

	if state == "" || code == "" {
		s.logger.Error("callback missing state or code parameter")
		s.recordAuth(ctx, instrumentation.OAuthResultFailure)
		http.Error(w, "missing state or code parameter", http.StatusBadRequest)
		return
	}

	user, cred, err := s.flows.Resolve(ctx, state, code)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownState) {
			s.logger.Error("callback with unknown state parameter", slog.String("state", state))
			s.recordAuth(ctx, instrumentation.OAuthResultFailure)
			http.Error(w, "invalid state parameter", http.StatusBadRequest)
			return
		}
		s.fail(ctx, w, user, fmt.Sprintf("authorization failed: %v", err))
		return
	}

	// Store the credential before fetching the profile so the user is
	// authorized even if the confirmation path fails.
	s.creds.Put(user, cred)

	profile, err := s.profile(ctx, cred)
	if err != nil {
		s.fail(ctx, w, user, fmt.Sprintf("authorization failed: %v", err))
		return
	}

	s.logger.Info("authorization completed",
		logging.UserID(int64(user)),
		slog.String("email", profile.Email),
	)
	s.recordAuth(ctx, instrumentation.OAuthResultSuccess)

	if s.notifier != nil {
		s.notifier.Notify(user, fmt.Sprintf("Authorization successful! Hello, %s!", profile.Name))
	}

	if s.successURL == "" {
		fmt.Fprintln(w, "Authorization successful. You can return to the chat.")
		return
	}
	http.Redirect(w, r, s.successURL, http.StatusFound)
}

// fail terminates the attempt with a 500 and tries to tell the user.
func (s *CallbackServer) fail(ctx context.Context, w http.ResponseWriter, user auth.UserID, msg string) {
	s.logger.Error("callback handler failed",
		logging.UserID(int64(user)),
		slog.String("error", msg),
	)
	s.recordAuth(ctx, instrumentation.OAuthResultFailure)

	if s.notifier != nil && user != 0 {
		s.notifier.Notify(user, msg)
	}

	http.Error(w, msg, http.StatusInternalServerError)
}

func (s *CallbackServer) recordAuth(ctx context.Context, result string) {
	if s.metrics != nil {
		s.metrics.RecordOAuthAuth(ctx, result)
	}
}
