package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// MemoryStore is a thread-safe in-memory Store for testing and
// single-process runs.
type MemoryStore struct {
	mu        sync.Mutex
	proposals map[string]*models.Proposal
}

// NewMemoryStore creates a new in-memory proposal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{proposals: map[string]*models.Proposal{}}
}

func (s *MemoryStore) Create(ctx context.Context, p *models.Proposal) error {
	if p == nil || p.ID == "" {
		return errors.New("proposal with id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.proposals[p.ID]; exists {
		return errors.New("proposal already exists: " + p.ID)
	}
	s.proposals[p.ID] = cloneProposal(p)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, id string) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.locked(tenantID, id)
	if err != nil {
		return nil, err
	}
	return cloneProposal(p), nil
}

func (s *MemoryStore) CASStatus(ctx context.Context, tenantID, id string, from, to models.ProposalStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.locked(tenantID, id)
	if err != nil {
		return false, err
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	now := time.Now()
	switch to {
	case models.ProposalConfirmed:
		p.ConfirmedAt = &now
	case models.ProposalExecuted:
		p.ExecutedAt = &now
	}
	return true, nil
}

func (s *MemoryStore) MarkExecuted(ctx context.Context, tenantID, id string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.locked(tenantID, id)
	if err != nil {
		return err
	}
	if p.Status == models.ProposalExecuted {
		return nil
	}
	now := time.Now()
	p.Status = models.ProposalExecuted
	p.ExecutedAt = &now
	p.Result = append(json.RawMessage(nil), result...)
	return nil
}

func (s *MemoryStore) Prune(ctx context.Context, now time.Time, pendingTTL, retention time.Duration) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	discarded, removed := 0, 0
	for id, p := range s.proposals {
		switch {
		case p.Status == models.ProposalPending && pendingTTL > 0 && now.Sub(p.CreatedAt) > pendingTTL:
			p.Status = models.ProposalDiscarded
			discarded++
		case p.Status.Terminal() && retention > 0 && now.Sub(terminalAt(p)) > retention:
			delete(s.proposals, id)
			removed++
		}
	}
	return discarded, removed, nil
}

func (s *MemoryStore) locked(tenantID, id string) (*models.Proposal, error) {
	p, ok := s.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	if tenantID != "" && p.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	return p, nil
}

func terminalAt(p *models.Proposal) time.Time {
	if p.ExecutedAt != nil {
		return *p.ExecutedAt
	}
	return p.CreatedAt
}

func cloneProposal(p *models.Proposal) *models.Proposal {
	clone := *p
	if len(p.Payload) > 0 {
		clone.Payload = append(json.RawMessage(nil), p.Payload...)
	}
	if len(p.Result) > 0 {
		clone.Result = append(json.RawMessage(nil), p.Result...)
	}
	if p.ConfirmedAt != nil {
		t := *p.ConfirmedAt
		clone.ConfirmedAt = &t
	}
	if p.ExecutedAt != nil {
		t := *p.ExecutedAt
		clone.ExecutedAt = &t
	}
	return &clone
}
