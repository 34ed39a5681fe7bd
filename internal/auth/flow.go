package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/velikanov/calsec/internal/instrumentation"
	"github.com/velikanov/calsec/internal/logging"
)

// pendingAuthorization is one in-flight OAuth attempt, keyed in the
// tracker by its single-use state token.
type pendingAuthorization struct {
	user    UserID
	created time.Time
}

// FlowTracker tracks in-flight OAuth authorization attempts. A token moves
// from issued to consumed (successful exchange) or discarded (failed
// exchange); both transitions remove the entry, so a token can never be
// resolved twice.
//
// Each user holds at most one pending token: re-running /login discards
// the previous one. There is no timer-based expiry; the entry for a user
// who never completes nor retries stays until process exit.
type FlowTracker struct {
	conf    *oauth2.Config
	mu      sync.Mutex
	pending map[string]pendingAuthorization
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewFlowTracker creates a flow tracker using the given OAuth client
// configuration for consent URLs and token exchanges.
func NewFlowTracker(conf *oauth2.Config, logger *slog.Logger) *FlowTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlowTracker{
		conf:    conf,
		pending: make(map[string]pendingAuthorization),
		logger:  logger,
	}
}

// SetMetrics installs the recorder backing the pending-flows gauge.
func (t *FlowTracker) SetMetrics(m *instrumentation.Metrics) {
	t.metrics = m
}

// Begin starts a new authorization attempt for the user. It mints a fresh
// CSRF state token, records the pending attempt, and returns the provider
// consent URL to present to the user. Re-running /login replaces the
// user's earlier pending token, so only the most recent authorization URL
// stays valid.
func (t *FlowTracker) Begin(user UserID) (authURL, token string, err error) {
	if err := t.validateConfig(); err != nil {
		return "", "", err
	}

	token = uuid.NewString()

	url := t.conf.AuthCodeURL(token,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	t.mu.Lock()
	replaced := 0
	for prior, p := range t.pending {
		if p.user == user {
			delete(t.pending, prior)
			replaced++
		}
	}
	t.pending[token] = pendingAuthorization{user: user, created: time.Now()}
	t.mu.Unlock()

	if t.metrics != nil {
		ctx := context.Background()
		for i := 0; i < replaced; i++ {
			t.metrics.DecrementPendingFlows(ctx)
		}
		t.metrics.IncrementPendingFlows(ctx)
	}

	t.logger.Info("authorization flow started",
		logging.UserID(int64(user)),
		slog.Int("pending", t.Pending()),
	)

	return url, token, nil
}

// Resolve consumes the pending attempt for the token and exchanges the
// authorization code for a credential. An unknown token fails with
// ErrUnknownState. The entry is removed before the exchange, so a failed
// exchange still discards the token and a retry needs a fresh /login.
// When the token was known, the owning user is returned even on failure.
func (t *FlowTracker) Resolve(ctx context.Context, token, code string) (UserID, *StoredCredential, error) {
	t.mu.Lock()
	p, ok := t.pending[token]
	if ok {
		delete(t.pending, token)
	}
	t.mu.Unlock()

	if !ok {
		return 0, nil, ErrUnknownState
	}
	if t.metrics != nil {
		t.metrics.DecrementPendingFlows(ctx)
	}

	tok, err := t.conf.Exchange(ctx, code)
	if err != nil {
		t.logger.Error("token exchange failed",
			logging.UserID(int64(p.user)),
			logging.Err(err),
		)
		return p.user, nil, &ProviderError{Op: "exchange", User: p.user, Err: err}
	}

	cred := &StoredCredential{
		User:         p.user,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURL:     t.conf.Endpoint.TokenURL,
		ClientID:     t.conf.ClientID,
		ClientSecret: t.conf.ClientSecret,
		Scopes:       t.conf.Scopes,
		Expiry:       tok.Expiry,
	}

	return p.user, cred, nil
}

// Pending returns the number of in-flight authorization attempts.
func (t *FlowTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *FlowTracker) validateConfig() error {
	switch {
	case t.conf == nil:
		return &FlowError{Reason: "oauth client configuration is nil"}
	case t.conf.ClientID == "":
		return &FlowError{Reason: "oauth client id is not configured"}
	case t.conf.ClientSecret == "":
		return &FlowError{Reason: "oauth client secret is not configured"}
	case t.conf.RedirectURL == "":
		return &FlowError{Reason: "oauth redirect URL is not configured"}
	case t.conf.Endpoint.AuthURL == "":
		return &FlowError{Reason: "oauth endpoint is not configured"}
	}
	return nil
}
