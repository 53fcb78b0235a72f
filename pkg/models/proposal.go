package models

import (
	"encoding/json"
	"time"
)

// ProposalStatus tracks the lifecycle of a staged action.
// Transitions are one-directional: pending → confirmed → executed, or
// pending → discarded. Executed is terminal and idempotent.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalConfirmed ProposalStatus = "confirmed"
	ProposalExecuted  ProposalStatus = "executed"
	ProposalDiscarded ProposalStatus = "discarded"
)

// Terminal reports whether no further transition is allowed.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalExecuted || s == ProposalDiscarded
}

// Proposal records a T2/T3 action awaiting confirmation before execution.
type Proposal struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	SessionID string          `json:"session_id,omitempty"`
	ToolName  string          `json:"tool_name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Status    ProposalStatus  `json:"status"`

	// Result caches the executor output once Status == executed, so
	// re-confirmation returns the same result without re-executing.
	Result json.RawMessage `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
}
