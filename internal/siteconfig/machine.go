package siteconfig

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// Source labels which representation a read came from, so callers wrapping
// reads in agent-visible responses never claim unpublished content is live.
type Source string

const (
	SourceDraft   Source = "draft"
	SourceLive    Source = "live"
	SourceDefault Source = "default"
)

// DefaultPayload is returned when a tenant has neither draft nor published
// content.
var DefaultPayload = json.RawMessage(`{"sections":[]}`)

// Machine owns the draft/publish transitions. Transitions for the same
// tenant are serialized through a per-tenant lock; different tenants proceed
// independently.
type Machine struct {
	store Store
	now   func() time.Time

	locksMu sync.Mutex
	locks   map[string]*tenantLock
}

type tenantLock struct {
	mu   sync.Mutex
	refs int
}

// NewMachine creates a state machine over the given store.
func NewMachine(store Store) *Machine {
	return &Machine{
		store: store,
		now:   time.Now,
		locks: map[string]*tenantLock{},
	}
}

// SetNowFunc sets a custom time function for testing.
func (m *Machine) SetNowFunc(fn func() time.Time) {
	m.now = fn
}

// Save stages payload as the tenant's draft. Published content is untouched.
// The payload bytes are copied so later caller mutation never reaches the
// stored draft.
func (m *Machine) Save(ctx context.Context, tenantID string, payload json.RawMessage) error {
	if len(payload) == 0 {
		return models.E(models.KindValidation, "draft payload is required")
	}
	if !json.Valid(payload) {
		return models.E(models.KindValidation, "draft payload is not valid JSON")
	}
	unlock := m.lockTenant(tenantID)
	defer unlock()

	cfg, err := m.loadOrInit(ctx, tenantID)
	if err != nil {
		return err
	}
	now := m.now()
	cfg.Draft = append(json.RawMessage(nil), payload...)
	cfg.DraftUpdatedAt = &now
	return m.store.Put(ctx, cfg)
}

// Publish atomically promotes the draft to published: published takes a
// copy of the draft, the draft is cleared, both timestamps move in the same
// write. Requires a draft.
func (m *Machine) Publish(ctx context.Context, tenantID string) (*models.SiteConfig, error) {
	unlock := m.lockTenant(tenantID)
	defer unlock()

	cfg, err := m.loadOrInit(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !cfg.HasDraft() {
		return nil, models.E(models.KindValidation, "no draft to publish")
	}
	now := m.now()
	cfg.Published = append(json.RawMessage(nil), cfg.Draft...)
	cfg.PublishedAt = &now
	cfg.Draft = nil
	cfg.DraftUpdatedAt = nil
	if err := m.store.Put(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Discard drops the draft. No-op when there is none.
func (m *Machine) Discard(ctx context.Context, tenantID string) error {
	unlock := m.lockTenant(tenantID)
	defer unlock()

	cfg, err := m.store.Get(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !cfg.HasDraft() {
		return nil
	}
	cfg.Draft = nil
	cfg.DraftUpdatedAt = nil
	return m.store.Put(ctx, cfg)
}

// ApplyLive writes payload directly to published content, skipping the
// draft. This is the path for tools that declare a staging bypass.
func (m *Machine) ApplyLive(ctx context.Context, tenantID string, payload json.RawMessage) error {
	if len(payload) == 0 {
		return models.E(models.KindValidation, "payload is required")
	}
	if !json.Valid(payload) {
		return models.E(models.KindValidation, "payload is not valid JSON")
	}
	unlock := m.lockTenant(tenantID)
	defer unlock()

	cfg, err := m.loadOrInit(ctx, tenantID)
	if err != nil {
		return err
	}
	now := m.now()
	cfg.Published = append(json.RawMessage(nil), payload...)
	cfg.PublishedAt = &now
	return m.store.Put(ctx, cfg)
}

// ApplyLivePatch shallow-merges an object patch into published content,
// skipping the draft. Used by bypass tools that change one live attribute
// (e.g. a theme) without republishing everything.
func (m *Machine) ApplyLivePatch(ctx context.Context, tenantID string, patch json.RawMessage) error {
	var patchObj map[string]json.RawMessage
	if err := json.Unmarshal(patch, &patchObj); err != nil {
		return models.E(models.KindValidation, "patch must be a JSON object: %v", err)
	}
	unlock := m.lockTenant(tenantID)
	defer unlock()

	cfg, err := m.loadOrInit(ctx, tenantID)
	if err != nil {
		return err
	}
	base := map[string]json.RawMessage{}
	if len(cfg.Published) > 0 {
		if err := json.Unmarshal(cfg.Published, &base); err != nil {
			return models.E(models.KindValidation, "published content is not a JSON object")
		}
	}
	for k, v := range patchObj {
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return err
	}
	now := m.now()
	cfg.Published = merged
	cfg.PublishedAt = &now
	return m.store.Put(ctx, cfg)
}

// Delete removes all content for a tenant, draft and published.
func (m *Machine) Delete(ctx context.Context, tenantID string) error {
	unlock := m.lockTenant(tenantID)
	defer unlock()
	return m.store.Delete(ctx, tenantID)
}

// Effective returns the content a caller should see — draft when one
// exists, otherwise published, otherwise the default — with a label saying
// which it was.
func (m *Machine) Effective(ctx context.Context, tenantID string) (json.RawMessage, Source, error) {
	cfg, err := m.store.Get(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return append(json.RawMessage(nil), DefaultPayload...), SourceDefault, nil
	}
	if err != nil {
		return nil, "", err
	}
	if cfg.HasDraft() {
		return cfg.Draft, SourceDraft, nil
	}
	if len(cfg.Published) > 0 {
		return cfg.Published, SourceLive, nil
	}
	return append(json.RawMessage(nil), DefaultPayload...), SourceDefault, nil
}

func (m *Machine) loadOrInit(ctx context.Context, tenantID string) (*models.SiteConfig, error) {
	if tenantID == "" {
		return nil, models.E(models.KindValidation, "tenant id is required")
	}
	cfg, err := m.store.Get(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return &models.SiteConfig{TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *Machine) lockTenant(tenantID string) func() {
	m.locksMu.Lock()
	lock := m.locks[tenantID]
	if lock == nil {
		lock = &tenantLock{}
		m.locks[tenantID] = lock
	}
	lock.refs++
	m.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		m.locksMu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(m.locks, tenantID)
		}
		m.locksMu.Unlock()
	}
}
