package db

import (
	"encoding/json"
	"time"
)

// StoredCredential is one OAuth credential held for a (caller, integration)
// pair. The composite primary key guarantees at most one live credential per
// pair; re-authorization overwrites.
type StoredCredential struct {
	ClientID        string          `json:"client_id"`
	IntegrationType string          `json:"integration_type"`
	TokenJSON       json.RawMessage `json:"-"`
	StoredAt        time.Time       `json:"stored_at"`
}

// PendingAuthorization correlates an in-flight OAuth state token with the
// caller who initiated the flow. Rows are single-use and expire; they live in
// the shared database so any gateway instance can complete a callback issued
// by another.
type PendingAuthorization struct {
	State           string    `json:"state"`
	ClientID        string    `json:"client_id"`
	IntegrationType string    `json:"integration_type"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}
