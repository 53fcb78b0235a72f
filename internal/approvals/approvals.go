// Package approvals records cross-party approval requests: a customer asks
// for something the tenant must sign off on, and the tenant decides it from
// their own session.
package approvals

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown request ids.
var ErrNotFound = errors.New("approval request not found")

// Status of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// Request is one cross-party approval record, tenant-scoped.
type Request struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Subject     string     `json:"subject"`
	RequestedBy string     `json:"requested_by,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// Store persists approval requests.
type Store interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, tenantID, id string) (*Request, error)
	Decide(ctx context.Context, tenantID, id string, status Status) (*Request, error)
	ListPending(ctx context.Context, tenantID string) ([]*Request, error)
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]*Request
}

// NewMemoryStore creates a new in-memory approval store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: map[string]*Request{}}
}

func (s *MemoryStore) Create(ctx context.Context, req *Request) error {
	if req == nil {
		return errors.New("request is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	if req.Status == "" {
		req.Status = StatusPending
	}
	clone := *req
	s.requests[req.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, id string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || (tenantID != "" && req.TenantID != tenantID) {
		return nil, ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *MemoryStore) Decide(ctx context.Context, tenantID, id string, status Status) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || (tenantID != "" && req.TenantID != tenantID) {
		return nil, ErrNotFound
	}
	if req.Status == StatusPending {
		now := time.Now()
		req.Status = status
		req.DecidedAt = &now
	}
	clone := *req
	return &clone, nil
}

func (s *MemoryStore) ListPending(ctx context.Context, tenantID string) ([]*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Request
	for _, req := range s.requests {
		if req.Status != StatusPending {
			continue
		}
		if tenantID != "" && req.TenantID != tenantID {
			continue
		}
		clone := *req
		out = append(out, &clone)
	}
	return out, nil
}
