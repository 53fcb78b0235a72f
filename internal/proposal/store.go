// Package proposal persists staged T2/T3 actions and guarantees at-most-one
// execution per proposal id via an atomic status compare-and-swap.
package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

var (
	// ErrNotFound is returned for unknown proposal ids.
	ErrNotFound = errors.New("proposal not found")
	// ErrTenantMismatch is returned when a proposal is accessed under the
	// wrong tenant.
	ErrTenantMismatch = errors.New("proposal belongs to a different tenant")
)

// Store is the interface for proposal persistence. All mutations are
// tenant-scoped and atomic.
type Store interface {
	Create(ctx context.Context, p *models.Proposal) error
	Get(ctx context.Context, tenantID, id string) (*models.Proposal, error)

	// CASStatus atomically moves a proposal from one status to another.
	// Returns false without error when the proposal is not currently in the
	// from status — the caller lost the race or the transition already
	// happened. This is the primitive behind exactly-once execution.
	CASStatus(ctx context.Context, tenantID, id string, from, to models.ProposalStatus) (bool, error)

	// MarkExecuted transitions confirmed → executed and caches the result in
	// the same atomic write.
	MarkExecuted(ctx context.Context, tenantID, id string, result json.RawMessage) error

	// Prune discards pending proposals older than pendingTTL and removes
	// terminal proposals older than retention. Returns counts (discarded,
	// removed).
	Prune(ctx context.Context, now time.Time, pendingTTL, retention time.Duration) (int, int, error)
}
