package flow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/bernerspace/relay/internal/integration"
	"github.com/bernerspace/relay/internal/logx"
	"github.com/bernerspace/relay/internal/server/db"
)

// ErrInvalidOrExpiredState is returned for callbacks whose state token was
// never issued, was already consumed, or has expired. All three collapse into
// one outcome so a forged callback learns nothing.
var ErrInvalidOrExpiredState = errors.New("invalid or expired oauth state")

// TokenExchangeError carries the provider's rejection detail. The caller must
// restart the flow from the beginning.
type TokenExchangeError struct {
	Detail string
}

func (e *TokenExchangeError) Error() string {
	return "token exchange failed: " + e.Detail
}

// DefaultStateTTL is the validity window for an issued state token.
const DefaultStateTTL = 10 * time.Minute

// exchangeTimeout bounds the provider token-endpoint call.
const exchangeTimeout = 10 * time.Second

// Registry is the slice of the integration registry the controller needs.
type Registry interface {
	Describe(name string) (*integration.Descriptor, error)
	Provider(name string) (integration.Provider, error)
}

// Controller drives the authorization-request and callback-exchange legs of
// the OAuth flow for every integration. The correlation between a state token
// and the caller lives server-side in the shared store, never in the redirect
// itself, so a hostile redirect interceptor cannot forge the binding.
type Controller struct {
	store    *db.Store
	registry Registry
	stateTTL time.Duration
	now      func() time.Time
}

func NewController(store *db.Store, registry Registry, stateTTL time.Duration) *Controller {
	if stateTTL <= 0 {
		stateTTL = DefaultStateTTL
	}
	return &Controller{
		store:    store,
		registry: registry,
		stateTTL: stateTTL,
		now:      time.Now,
	}
}

// BeginResult is everything a caller needs to complete authorization.
type BeginResult struct {
	OAuthURL     string   `json:"oauth_url"`
	State        string   `json:"state"`
	CallbackURL  string   `json:"callback_url"`
	Scopes       []string `json:"scopes"`
	Instructions string   `json:"instructions"`
}

// Begin issues a fresh state token for (callerID, integrationName), records
// the pending correlation and returns the provider authorization URL.
func (c *Controller) Begin(ctx context.Context, callerID, integrationName string) (*BeginResult, error) {
	desc, err := c.registry.Describe(integrationName)
	if err != nil {
		return nil, err
	}
	provider, err := c.registry.Provider(integrationName)
	if err != nil {
		return nil, err
	}

	state, err := newStateToken()
	if err != nil {
		return nil, fmt.Errorf("generate state token: %w", err)
	}

	if n, err := c.store.PurgeExpiredPending(c.now()); err != nil {
		logx.Warnf("purge expired pending authorizations: %v", err)
	} else if n > 0 {
		logx.Debugf("purged %d expired pending authorizations", n)
	}

	now := c.now()
	if err := c.store.CreatePending(&db.PendingAuthorization{
		State:           state,
		ClientID:        callerID,
		IntegrationType: integrationName,
		CreatedAt:       now,
		ExpiresAt:       now.Add(c.stateTTL),
	}); err != nil {
		return nil, err
	}

	logx.Infof("authorization started: caller=%s integration=%s", callerID, integrationName)

	return &BeginResult{
		OAuthURL:    provider.AuthorizationURL(state),
		State:       state,
		CallbackURL: desc.RedirectURI,
		Scopes:      desc.Scopes,
		Instructions: fmt.Sprintf(
			"Visit this URL to authorize the application with your %s account", integrationName),
	}, nil
}

// Complete handles the provider callback: consumes the state token (single
// use, success or not), exchanges the code and stores the credential for the
// correlated caller. Returns the caller id the credential was stored for.
func (c *Controller) Complete(ctx context.Context, integrationName, code, state string) (string, error) {
	pending, err := c.store.ConsumePending(state)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logx.Warnf("callback with unknown or replayed state: integration=%s", integrationName)
			return "", ErrInvalidOrExpiredState
		}
		return "", err
	}

	// Fail closed on anything that does not match the issued correlation.
	if pending.IntegrationType != integrationName {
		logx.Warnf("callback state bound to %s used for %s", pending.IntegrationType, integrationName)
		return "", ErrInvalidOrExpiredState
	}
	if c.now().After(pending.ExpiresAt) {
		logx.Warnf("callback with expired state: caller=%s integration=%s", pending.ClientID, integrationName)
		return "", ErrInvalidOrExpiredState
	}

	provider, err := c.registry.Provider(integrationName)
	if err != nil {
		return "", err
	}

	// The exchange runs detached from the inbound request: a disconnected
	// caller must not abandon a consumed state token mid-write.
	exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeTimeout)
	defer cancel()

	payload, err := provider.Exchange(exCtx, code)
	if err != nil {
		var exErr *integration.ExchangeError
		if errors.As(err, &exErr) && exErr.Temporary {
			logx.Warnf("transient exchange failure, retrying once: integration=%s err=%v", integrationName, err)
			payload, err = provider.Exchange(exCtx, code)
		}
	}
	if err != nil {
		var exErr *integration.ExchangeError
		if errors.As(err, &exErr) {
			return "", &TokenExchangeError{Detail: exErr.Detail}
		}
		return "", &TokenExchangeError{Detail: err.Error()}
	}

	if err := c.store.PutToken(pending.ClientID, integrationName, payload); err != nil {
		// The exchange succeeded but nothing was stored; the caller must
		// restart rather than be told this worked.
		return "", fmt.Errorf("store credential: %w", err)
	}

	logx.Infof("authorization completed: caller=%s integration=%s", pending.ClientID, integrationName)
	return pending.ClientID, nil
}

func newStateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
