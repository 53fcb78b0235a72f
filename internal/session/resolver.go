// Package session owns conversation state: resolving a trusted caller
// descriptor from heterogeneous invocation shapes, deriving the slot policy
// injected at bootstrap, and persisting sessions with a TTL.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// ErrContextResolution means no tenant identity could be extracted from the
// invocation. Resolution fails closed: an invocation without a tenant is
// fatal, never defaulted.
var ErrContextResolution = errors.New("unable to resolve tenant context")

// StateAccessor is the structured state interface exposed by in-process
// callers.
type StateAccessor interface {
	StateValue(key string) (any, bool)
}

// Invocation is the raw material a caller arrives with. Exactly which fields
// are populated depends on the transport: in-process callers carry an
// Accessor, remote agent envelopes carry a plain State map, and some legacy
// callers only carry a composite Identity string.
type Invocation struct {
	Accessor StateAccessor
	State    map[string]any

	// Identity is a composite "tenantID:userID" string, the last-resort
	// extraction path.
	Identity string

	SessionID string
}

// State keys recognized by the resolver. The A2A router serializes sessions
// under the same keys so a remote process reconstructs identical context.
const (
	KeyTenantID      = "tenant_id"
	KeyCallerID      = "caller_id"
	KeyCallerContext = "caller_context"
	KeyFacts         = "facts"
	KeyLocale        = "locale"
	KeyDisplayName   = "display_name"
)

// Descriptor is the trusted output of resolution.
type Descriptor struct {
	TenantID      string
	CallerID      string
	CallerContext models.CallerContext
	Facts         map[string]any
	Locale        string
	DisplayName   string
}

// Resolve extracts a Descriptor from an invocation, trying in order: the
// structured accessor, the plain state map, and the composite identity
// string. Both the accessor and the map are equally authoritative; the
// ordering only decides which wins when several are present.
func Resolve(inv Invocation) (*Descriptor, error) {
	if inv.Accessor != nil {
		if d, ok := fromGetter(inv.Accessor.StateValue); ok {
			return d, nil
		}
	}
	if inv.State != nil {
		if d, ok := fromGetter(func(key string) (any, bool) {
			v, ok := inv.State[key]
			return v, ok
		}); ok {
			return d, nil
		}
	}
	if d, ok := fromIdentity(inv.Identity); ok {
		return d, nil
	}
	return nil, ErrContextResolution
}

func fromGetter(get func(string) (any, bool)) (*Descriptor, bool) {
	tenantID, _ := stringValue(get, KeyTenantID)
	if tenantID == "" {
		return nil, false
	}
	d := &Descriptor{TenantID: tenantID}
	d.CallerID, _ = stringValue(get, KeyCallerID)
	if cc, ok := stringValue(get, KeyCallerContext); ok {
		d.CallerContext = models.CallerContext(cc)
	}
	if v, ok := get(KeyFacts); ok {
		if facts, ok := v.(map[string]any); ok {
			d.Facts = facts
		}
	}
	d.Locale, _ = stringValue(get, KeyLocale)
	d.DisplayName, _ = stringValue(get, KeyDisplayName)
	return d, true
}

func fromIdentity(identity string) (*Descriptor, bool) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, false
	}
	tenantID, callerID, _ := strings.Cut(identity, ":")
	if tenantID == "" {
		return nil, false
	}
	return &Descriptor{TenantID: tenantID, CallerID: callerID}, true
}

func stringValue(get func(string) (any, bool), key string) (string, bool) {
	v, ok := get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// New builds a Session from a resolved descriptor. Facts are snapshotted and
// the forbidden-slot set derived exactly once, at creation.
func New(d *Descriptor, ttl time.Duration, now time.Time) (*models.Session, error) {
	if d == nil || d.TenantID == "" {
		return nil, ErrContextResolution
	}
	if d.CallerContext != "" && !d.CallerContext.Valid() {
		return nil, fmt.Errorf("unknown caller context %q", d.CallerContext)
	}
	cc := d.CallerContext
	if cc == "" {
		cc = models.ContextCustomer
	}
	sess := &models.Session{
		ID:             uuid.NewString(),
		TenantID:       d.TenantID,
		CallerID:       d.CallerID,
		CallerContext:  cc,
		Facts:          cloneFacts(d.Facts),
		ForbiddenSlots: ForbiddenSlots(d.Facts),
		Locale:         d.Locale,
		DisplayName:    d.DisplayName,
		CreatedAt:      now,
		LastActiveAt:   now,
	}
	if ttl > 0 {
		sess.ExpiresAt = now.Add(ttl)
	}
	return sess, nil
}

func cloneFacts(facts map[string]any) map[string]any {
	if len(facts) == 0 {
		return nil
	}
	out := make(map[string]any, len(facts))
	for k, v := range facts {
		out[k] = v
	}
	return out
}
