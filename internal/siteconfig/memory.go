package siteconfig

import (
	"context"
	"errors"
	"sync"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// MemoryStore is a thread-safe in-memory Store for testing and
// single-process runs.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]*models.SiteConfig
}

// NewMemoryStore creates a new in-memory site config store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: map[string]*models.SiteConfig{}}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID string) (*models.SiteConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return cfg.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, cfg *models.SiteConfig) error {
	if cfg == nil || cfg.TenantID == "" {
		return errors.New("site config with tenant id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.TenantID] = cfg.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, tenantID)
	return nil
}
