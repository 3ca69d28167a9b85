package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// PutToken upserts the credential for a (caller, integration) pair. The
// composite primary key makes concurrent writers resolve to last-commit-wins
// with no duplicate rows.
func (s *Store) PutToken(clientID, integrationType string, tokenJSON json.RawMessage) error {
	err := execRetry(func() error {
		_, err := s.db.Exec(
			`INSERT INTO oauth_tokens (client_id, integration_type, token_json, stored_at)
			 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(client_id, integration_type) DO UPDATE SET
			   token_json = excluded.token_json,
			   stored_at = CURRENT_TIMESTAMP`,
			clientID, integrationType, string(tokenJSON),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert oauth token: %w", err)
	}
	return nil
}

// GetToken retrieves the credential for a (caller, integration) pair.
// Returns ErrNotFound when no credential is stored. Purely a local read.
func (s *Store) GetToken(clientID, integrationType string) (*StoredCredential, error) {
	cred := &StoredCredential{}
	var tokenJSON string
	err := s.db.QueryRow(
		`SELECT client_id, integration_type, token_json, stored_at
		 FROM oauth_tokens WHERE client_id = ? AND integration_type = ?`,
		clientID, integrationType,
	).Scan(&cred.ClientID, &cred.IntegrationType, &tokenJSON, &cred.StoredAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get oauth token: %w", err)
	}
	cred.TokenJSON = json.RawMessage(tokenJSON)
	return cred, nil
}

// DeleteToken removes the credential for a (caller, integration) pair.
// Deleting a missing row is not an error.
func (s *Store) DeleteToken(clientID, integrationType string) error {
	err := execRetry(func() error {
		_, err := s.db.Exec(
			`DELETE FROM oauth_tokens WHERE client_id = ? AND integration_type = ?`,
			clientID, integrationType,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete oauth token: %w", err)
	}
	return nil
}
