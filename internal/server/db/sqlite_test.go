package db

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTokenReadAfterWrite(t *testing.T) {
	s := newTestStore(t)

	payload := json.RawMessage(`{"access_token":"xoxb-abc123"}`)
	if err := s.PutToken("u1", "slack", payload); err != nil {
		t.Fatalf("PutToken: %v", err)
	}

	got, err := s.GetToken("u1", "slack")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if string(got.TokenJSON) != string(payload) {
		t.Errorf("TokenJSON = %s, want %s", got.TokenJSON, payload)
	}
	if got.ClientID != "u1" || got.IntegrationType != "slack" {
		t.Errorf("got credential %+v", got)
	}
	if got.StoredAt.IsZero() {
		t.Error("StoredAt not set")
	}
}

func TestTokenUpsertOverwrites(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutToken("u1", "slack", json.RawMessage(`{"access_token":"old"}`)); err != nil {
		t.Fatalf("PutToken: %v", err)
	}
	if err := s.PutToken("u1", "slack", json.RawMessage(`{"access_token":"new"}`)); err != nil {
		t.Fatalf("PutToken update: %v", err)
	}

	got, err := s.GetToken("u1", "slack")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if string(got.TokenJSON) != `{"access_token":"new"}` {
		t.Errorf("TokenJSON after upsert = %s", got.TokenJSON)
	}
}

func TestTokenIntegrationsIndependent(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutToken("u1", "slack", json.RawMessage(`{"a":1}`)); err != nil {
		t.Fatalf("PutToken: %v", err)
	}

	if _, err := s.GetToken("u1", "google"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetToken other integration: got %v, want ErrNotFound", err)
	}
	if _, err := s.GetToken("u2", "slack"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetToken other caller: got %v, want ErrNotFound", err)
	}
}

func TestTokenDeleteIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutToken("u1", "slack", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("PutToken: %v", err)
	}
	if err := s.DeleteToken("u1", "slack"); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := s.GetToken("u1", "slack"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetToken after delete: got %v, want ErrNotFound", err)
	}

	// Deleting a missing row is not an error.
	if err := s.DeleteToken("u1", "slack"); err != nil {
		t.Fatalf("DeleteToken second time: %v", err)
	}
}

func TestConcurrentPutsSameKey(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload, _ := json.Marshal(map[string]int{"writer": i})
			if err := s.PutToken("u1", "slack", payload); err != nil {
				t.Errorf("concurrent PutToken: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var count int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM oauth_tokens WHERE client_id = 'u1' AND integration_type = 'slack'`,
	).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d rows for one composite key, want 1", count)
	}

	if _, err := s.GetToken("u1", "slack"); err != nil {
		t.Fatalf("GetToken after concurrent puts: %v", err)
	}
}

func TestPendingConsumeSingleUse(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	p := &PendingAuthorization{
		State:           "state-abc",
		ClientID:        "u1",
		IntegrationType: "slack",
		CreatedAt:       now,
		ExpiresAt:       now.Add(10 * time.Minute),
	}
	if err := s.CreatePending(p); err != nil {
		t.Fatalf("CreatePending: %v", err)
	}

	got, err := s.ConsumePending("state-abc")
	if err != nil {
		t.Fatalf("ConsumePending: %v", err)
	}
	if got.ClientID != "u1" || got.IntegrationType != "slack" {
		t.Errorf("got pending %+v", got)
	}

	// Second consume of the same state fails: single use.
	if _, err := s.ConsumePending("state-abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second ConsumePending: got %v, want ErrNotFound", err)
	}
}

func TestPendingUnknownState(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.ConsumePending("never-issued"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ConsumePending unknown: got %v, want ErrNotFound", err)
	}
}

func TestPurgeExpiredPending(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	expired := &PendingAuthorization{
		State: "old", ClientID: "u1", IntegrationType: "slack",
		CreatedAt: now.Add(-20 * time.Minute), ExpiresAt: now.Add(-10 * time.Minute),
	}
	live := &PendingAuthorization{
		State: "fresh", ClientID: "u1", IntegrationType: "slack",
		CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := s.CreatePending(expired); err != nil {
		t.Fatalf("CreatePending expired: %v", err)
	}
	if err := s.CreatePending(live); err != nil {
		t.Fatalf("CreatePending live: %v", err)
	}

	n, err := s.PurgeExpiredPending(now)
	if err != nil {
		t.Fatalf("PurgeExpiredPending: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d rows, want 1", n)
	}

	if _, err := s.ConsumePending("old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired state still consumable: %v", err)
	}
	if _, err := s.ConsumePending("fresh"); err != nil {
		t.Fatalf("live state purged: %v", err)
	}
}
