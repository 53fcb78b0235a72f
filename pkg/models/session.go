package models

import "time"

// CallerContext classifies the verified identity class of a caller.
// It is assigned by the authentication boundary and never derived from
// message content.
type CallerContext string

const (
	// ContextCustomer is an end customer talking to a tenant's agent.
	ContextCustomer CallerContext = "customer"
	// ContextTenant is the tenant (site owner) operating their own agent.
	ContextTenant CallerContext = "tenant"
)

// Valid reports whether the caller context is a known classification.
func (c CallerContext) Valid() bool {
	switch c {
	case ContextCustomer, ContextTenant:
		return true
	}
	return false
}

// Session is the per-conversation state owned by the orchestrator.
//
// Facts are a read-only snapshot taken at creation; the agent never mutates
// them directly. ForbiddenSlots is derived from Facts at creation and lists
// the topics the agent must not re-ask about.
type Session struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	CallerID      string        `json:"caller_id,omitempty"`
	CallerContext CallerContext `json:"caller_context"`

	Facts          map[string]any      `json:"facts,omitempty"`
	ForbiddenSlots map[string]struct{} `json:"forbidden_slots,omitempty"`

	// Bootstrap attributes carried for context injection.
	Locale      string `json:"locale,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session TTL has elapsed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
