package proposal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	store, err := NewSQLStore(db)
	if err != nil {
		t.Fatalf("new sql store: %v", err)
	}
	return store
}

func TestSQLStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	p := &models.Proposal{
		ID:        "p-1",
		TenantID:  "t-1",
		SessionID: "s-1",
		ToolName:  "publish_site",
		Payload:   json.RawMessage(`{"a":1}`),
		Status:    models.ProposalPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "t-1", "p-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ToolName != "publish_site" || got.Status != models.ProposalPending {
		t.Errorf("unexpected proposal: %+v", got)
	}
	if string(got.Payload) != `{"a":1}` {
		t.Errorf("payload not round-tripped: %s", got.Payload)
	}

	if _, err := store.Get(ctx, "t-other", "p-1"); !errors.Is(err, ErrTenantMismatch) {
		t.Errorf("expected ErrTenantMismatch, got %v", err)
	}
	if _, err := store.Get(ctx, "t-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLStoreCAS(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	p := &models.Proposal{
		ID: "p-1", TenantID: "t-1", ToolName: "publish_site",
		Status: models.ProposalPending, CreatedAt: time.Now().UTC(),
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	won, err := store.CASStatus(ctx, "t-1", "p-1", models.ProposalPending, models.ProposalConfirmed)
	if err != nil || !won {
		t.Fatalf("expected first CAS to win, got won=%v err=%v", won, err)
	}
	won, err = store.CASStatus(ctx, "t-1", "p-1", models.ProposalPending, models.ProposalConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if won {
		t.Error("expected second CAS to lose")
	}
	if _, err := store.CASStatus(ctx, "t-1", "missing", models.ProposalPending, models.ProposalConfirmed); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	got, err := store.Get(ctx, "t-1", "p-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.ProposalConfirmed || got.ConfirmedAt == nil {
		t.Errorf("expected confirmed with timestamp, got %+v", got)
	}
}

func TestSQLStoreMarkExecutedAndPrune(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	now := time.Now().UTC()

	executed := &models.Proposal{
		ID: "done", TenantID: "t-1", ToolName: "publish_site",
		Status: models.ProposalConfirmed, CreatedAt: now.Add(-48 * time.Hour),
	}
	stale := &models.Proposal{
		ID: "stale", TenantID: "t-1", ToolName: "publish_site",
		Status: models.ProposalPending, CreatedAt: now.Add(-time.Hour),
	}
	for _, p := range []*models.Proposal{executed, stale} {
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	result := json.RawMessage(`{"ok":true}`)
	if err := store.MarkExecuted(ctx, "t-1", "done", result); err != nil {
		t.Fatalf("mark executed: %v", err)
	}
	got, err := store.Get(ctx, "t-1", "done")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.ProposalExecuted || string(got.Result) != `{"ok":true}` {
		t.Errorf("expected executed with cached result, got %+v", got)
	}

	discarded, removed, err := store.Prune(ctx, now, 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if discarded != 1 {
		t.Errorf("expected 1 discarded, got %d", discarded)
	}
	// "done" executed just now, inside retention.
	if removed != 0 {
		t.Errorf("expected 0 removed, got %d", removed)
	}

	_, removed, err = store.Prune(ctx, now.Add(48*time.Hour), 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed < 1 {
		t.Errorf("expected terminal proposals removed, got %d", removed)
	}
}
