package dispatch

import (
	"context"
	"errors"

	"github.com/bernerspace/relay/internal/flow"
	"github.com/bernerspace/relay/internal/gate"
	"github.com/bernerspace/relay/internal/integration"
	"github.com/bernerspace/relay/internal/logx"
	"github.com/bernerspace/relay/internal/server/db"
)

// Registry is the slice of the integration registry the dispatcher needs.
type Registry interface {
	Describe(name string) (*integration.Descriptor, error)
	Provider(name string) (integration.Provider, error)
}

// Authorizer gates an invocation on credential presence.
type Authorizer interface {
	Authorize(ctx context.Context, callerID, integrationName string) (*gate.Result, error)
}

// Flow issues authorization URLs for the built-in tools.
type Flow interface {
	Begin(ctx context.Context, callerID, integrationName string) (*flow.BeginResult, error)
}

// Dispatcher routes a verified caller's tool invocation through the gate and
// into the integration capability.
type Dispatcher struct {
	store    *db.Store
	registry Registry
	gate     Authorizer
	flow     Flow
}

func New(store *db.Store, registry Registry, g Authorizer, f Flow) *Dispatcher {
	return &Dispatcher{store: store, registry: registry, gate: g, flow: f}
}

// Invoke runs one tool for one caller. The built-in tools get_oauth_url and
// check_oauth_status answer before the gate so an unauthorized caller can
// always reach them; everything else requires a stored credential and
// otherwise short-circuits with {requires_auth, oauth_url}.
func (d *Dispatcher) Invoke(ctx context.Context, callerID, integrationName, tool string, args map[string]any) (any, error) {
	if _, err := d.registry.Describe(integrationName); err != nil {
		return nil, err
	}

	switch tool {
	case "get_oauth_url":
		return d.flow.Begin(ctx, callerID, integrationName)

	case "check_oauth_status":
		cred, err := d.store.GetToken(callerID, integrationName)
		if errors.Is(err, db.ErrNotFound) {
			return map[string]any{"authorized": false, "integration": integrationName}, nil
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"authorized":  true,
			"integration": integrationName,
			"stored_at":   cred.StoredAt,
		}, nil
	}

	res, err := d.gate.Authorize(ctx, callerID, integrationName)
	if err != nil {
		return nil, err
	}
	if res.AuthRequired != nil {
		logx.Infof("tool gated on authorization: caller=%s integration=%s tool=%s", callerID, integrationName, tool)
		return map[string]any{
			"requires_auth": true,
			"oauth_url":     res.AuthRequired.OAuthURL,
			"instructions":  res.AuthRequired.Instructions,
		}, nil
	}

	provider, err := d.registry.Provider(integrationName)
	if err != nil {
		return nil, err
	}

	result, err := provider.CallTool(ctx, res.Credential, tool, args)
	if err != nil {
		return nil, err
	}
	return result, nil
}
