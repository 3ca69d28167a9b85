package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bernerspace/relay/internal/flow"
	"github.com/bernerspace/relay/internal/server/db"
)

// Flow starts an authorization when the gate finds no credential.
type Flow interface {
	Begin(ctx context.Context, callerID, integrationName string) (*flow.BeginResult, error)
}

// Result is the outcome of a gate check: exactly one of Credential or
// AuthRequired is set.
type Result struct {
	Credential   json.RawMessage
	StoredAt     time.Time
	AuthRequired *flow.BeginResult
}

// Gate resolves the caller's credential for an integration before every tool
// invocation. There is no caching above the store: a credential deleted
// between two calls makes the very next call re-enter the authorization path.
type Gate struct {
	store *db.Store
	flow  Flow
}

func New(store *db.Store, f Flow) *Gate {
	return &Gate{store: store, flow: f}
}

// Authorize returns the stored credential for (callerID, integrationName),
// or an AuthRequired result carrying a freshly issued authorization URL.
// The gate never attempts silent refresh; a provider-expired credential
// surfaces later as a normal tool failure.
func (g *Gate) Authorize(ctx context.Context, callerID, integrationName string) (*Result, error) {
	cred, err := g.store.GetToken(callerID, integrationName)
	if err == nil {
		return &Result{Credential: cred.TokenJSON, StoredAt: cred.StoredAt}, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}

	begin, err := g.flow.Begin(ctx, callerID, integrationName)
	if err != nil {
		return nil, err
	}
	return &Result{AuthRequired: begin}, nil
}
