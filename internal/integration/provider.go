package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownIntegration is returned when a request names an integration
	// with no registered descriptor.
	ErrUnknownIntegration = errors.New("unknown integration")

	// ErrUnknownTool is returned when an integration does not offer the
	// named tool.
	ErrUnknownTool = errors.New("unknown tool")
)

// ProviderError reports a downstream API failure for a call made with a
// stored credential (e.g. the provider revoked or expired the token). It is
// distinct from an authorization-required condition: the caller did
// authorize, the credential just stopped working.
type ProviderError struct {
	Integration string
	Detail      string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider call failed: %s", e.Integration, e.Detail)
}

// ExchangeError reports a failed authorization-code exchange. Temporary marks
// transport-level failures (connection reset, timeout) that the flow
// controller may retry once; provider-returned rejections are never retried.
type ExchangeError struct {
	Integration string
	Detail      string
	Temporary   bool
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s token exchange failed: %s", e.Integration, e.Detail)
}

// Descriptor is the static per-integration configuration: OAuth endpoints,
// client credentials and scopes. The set of descriptors is closed at startup.
type Descriptor struct {
	Name         string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string // empty means the provider's production endpoint
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Provider is the capability interface implemented by each supported
// integration. Adding an integration means adding a variant and a registry
// entry; the gate and dispatcher never change.
type Provider interface {
	Name() string

	// AuthorizationURL returns the fully-formed provider authorization URL
	// carrying the given state token.
	AuthorizationURL(state string) string

	// Exchange trades an authorization code for an opaque credential payload.
	// Failures are reported as *ExchangeError.
	Exchange(ctx context.Context, code string) (json.RawMessage, error)

	// CallTool invokes a named tool with the stored credential. Downstream
	// rejections are reported as *ProviderError.
	CallTool(ctx context.Context, credential json.RawMessage, tool string, args map[string]any) (any, error)
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string, def int64) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return def
	}
}
