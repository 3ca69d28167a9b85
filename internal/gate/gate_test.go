package gate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bernerspace/relay/internal/flow"
	"github.com/bernerspace/relay/internal/server/db"
)

type stubFlow struct {
	beginCalls int
	err        error
}

func (f *stubFlow) Begin(ctx context.Context, callerID, integrationName string) (*flow.BeginResult, error) {
	f.beginCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &flow.BeginResult{
		OAuthURL:     "https://provider.example/authorize?state=s-" + callerID,
		State:        "s-" + callerID,
		Instructions: "Open the URL to connect " + integrationName + ".",
	}, nil
}

func newTestGate(t *testing.T) (*Gate, *db.Store, *stubFlow) {
	t.Helper()
	store, err := db.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := &stubFlow{}
	return New(store, f), store, f
}

func TestAuthorizeNoCredential(t *testing.T) {
	g, _, f := newTestGate(t)

	res, err := g.Authorize(context.Background(), "u1", "slack")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if res.AuthRequired == nil {
		t.Fatal("expected AuthRequired result")
	}
	if res.AuthRequired.OAuthURL == "" {
		t.Fatal("AuthRequired without oauth url")
	}
	if res.Credential != nil {
		t.Fatal("credential set alongside AuthRequired")
	}
	if f.beginCalls != 1 {
		t.Fatalf("flow.Begin called %d times, want 1", f.beginCalls)
	}
}

func TestAuthorizeWithCredential(t *testing.T) {
	g, store, f := newTestGate(t)

	payload := json.RawMessage(`{"access_token":"xoxb-1"}`)
	if err := store.PutToken("u1", "slack", payload); err != nil {
		t.Fatalf("PutToken: %v", err)
	}

	res, err := g.Authorize(context.Background(), "u1", "slack")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if res.AuthRequired != nil {
		t.Fatal("AuthRequired despite stored credential")
	}
	if string(res.Credential) != string(payload) {
		t.Fatalf("credential = %s", res.Credential)
	}
	if res.StoredAt.IsZero() {
		t.Fatal("StoredAt not populated")
	}
	if f.beginCalls != 0 {
		t.Fatal("flow started despite stored credential")
	}
}

func TestAuthorizeSeesDeletionImmediately(t *testing.T) {
	g, store, _ := newTestGate(t)

	if err := store.PutToken("u1", "slack", json.RawMessage(`{"access_token":"xoxb-1"}`)); err != nil {
		t.Fatalf("PutToken: %v", err)
	}
	if res, err := g.Authorize(context.Background(), "u1", "slack"); err != nil || res.AuthRequired != nil {
		t.Fatalf("first check: res=%+v err=%v", res, err)
	}

	if err := store.DeleteToken("u1", "slack"); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}

	// No cache above the store: the very next check re-enters authorization.
	res, err := g.Authorize(context.Background(), "u1", "slack")
	if err != nil {
		t.Fatalf("Authorize after delete: %v", err)
	}
	if res.AuthRequired == nil {
		t.Fatal("expected AuthRequired after credential deletion")
	}
}

func TestAuthorizeIsolatesCallers(t *testing.T) {
	g, store, _ := newTestGate(t)

	if err := store.PutToken("u1", "slack", json.RawMessage(`{"access_token":"xoxb-u1"}`)); err != nil {
		t.Fatalf("PutToken: %v", err)
	}

	res1, err := g.Authorize(context.Background(), "u1", "slack")
	if err != nil || res1.AuthRequired != nil {
		t.Fatalf("u1: res=%+v err=%v", res1, err)
	}

	res2, err := g.Authorize(context.Background(), "u2", "slack")
	if err != nil {
		t.Fatalf("u2: %v", err)
	}
	if res2.AuthRequired == nil {
		t.Fatal("u2 inherited u1's credential")
	}
}

func TestAuthorizeFlowErrorPropagates(t *testing.T) {
	g, _, f := newTestGate(t)
	f.err = errors.New("registry unavailable")

	if _, err := g.Authorize(context.Background(), "u1", "slack"); !errors.Is(err, f.err) {
		t.Fatalf("got %v, want flow error", err)
	}
}
