package db

import (
	"database/sql"
	"fmt"
	"time"
)

// CreatePending records an in-flight authorization correlation.
func (s *Store) CreatePending(p *PendingAuthorization) error {
	err := execRetry(func() error {
		_, err := s.db.Exec(
			`INSERT INTO pending_authorizations (state, client_id, integration_type, created_at, expires_at)
			 VALUES (?, ?, ?, ?, ?)`,
			p.State, p.ClientID, p.IntegrationType,
			p.CreatedAt.UTC().Format(time.RFC3339), p.ExpiresAt.UTC().Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("create pending authorization: %w", err)
	}
	return nil
}

// ConsumePending removes and returns the pending authorization for a state
// token. State tokens are single-use: the row is deleted whether or not the
// subsequent exchange succeeds. Returns ErrNotFound for unknown or already
// consumed states; expiry is the caller's check.
func (s *Store) ConsumePending(state string) (*PendingAuthorization, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin consume pending: %w", err)
	}
	defer tx.Rollback()

	p := &PendingAuthorization{}
	var createdAt, expiresAt string
	err = tx.QueryRow(
		`SELECT state, client_id, integration_type, created_at, expires_at
		 FROM pending_authorizations WHERE state = ?`, state,
	).Scan(&p.State, &p.ClientID, &p.IntegrationType, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending authorization: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM pending_authorizations WHERE state = ?`, state); err != nil {
		return nil, fmt.Errorf("consume pending authorization: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consume pending: %w", err)
	}

	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse pending created_at: %w", err)
	}
	if p.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("parse pending expires_at: %w", err)
	}
	return p, nil
}

// PurgeExpiredPending deletes pending authorizations whose window has passed.
// Called opportunistically when new flows begin.
func (s *Store) PurgeExpiredPending(now time.Time) (int64, error) {
	var n int64
	err := execRetry(func() error {
		res, err := s.db.Exec(
			`DELETE FROM pending_authorizations WHERE expires_at < ?`,
			now.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge expired pending authorizations: %w", err)
	}
	return n, nil
}
