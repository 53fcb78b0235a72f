package siteconfig

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

func TestSQLStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	now := time.Now().UTC()

	cfg := &models.SiteConfig{
		TenantID:       "t-1",
		Draft:          json.RawMessage(`{"v":1}`),
		DraftUpdatedAt: &now,
	}
	if err := store.Put(ctx, cfg); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Draft) != `{"v":1}` || got.DraftUpdatedAt == nil {
		t.Errorf("draft not round-tripped: %+v", got)
	}
	if got.Published != nil || got.PublishedAt != nil {
		t.Errorf("expected no published content, got %+v", got)
	}

	if _, err := store.Get(ctx, "t-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Put(ctx, &models.SiteConfig{}); err == nil {
		t.Error("expected error for missing tenant id")
	}
}

func TestSQLStorePutUpsertsWholeRecord(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	now := time.Now().UTC()

	if err := store.Put(ctx, &models.SiteConfig{
		TenantID:       "t-1",
		Draft:          json.RawMessage(`{"v":1}`),
		DraftUpdatedAt: &now,
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Publish swap: draft cleared and published set in the same write.
	if err := store.Put(ctx, &models.SiteConfig{
		TenantID:    "t-1",
		Published:   json.RawMessage(`{"v":1}`),
		PublishedAt: &now,
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HasDraft() {
		t.Error("expected draft cleared by the upsert")
	}
	if string(got.Published) != `{"v":1}` || got.PublishedAt == nil {
		t.Errorf("published not swapped in: %+v", got)
	}
}

func TestSQLStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	if err := store.Put(ctx, &models.SiteConfig{TenantID: "t-1", Published: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "t-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "t-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "t-1"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestMachineOverSQLStore(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(newSQLStore(t))

	if err := m.Save(ctx, "t-1", json.RawMessage(`{"title":"Blooms"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.Publish(ctx, "t-1"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	payload, source, err := m.Effective(ctx, "t-1")
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if source != SourceLive || string(payload) != `{"title":"Blooms"}` {
		t.Errorf("expected live content, got %q %s", source, payload)
	}
}
