// Package tools defines the static tool descriptors and the executor
// registry. Descriptors are the sole source of truth for context and trust
// tier checks: tiers are declared data, never inferred from the call site or
// from model output.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// Tier classifies a tool by required confirmation strength.
type Tier string

const (
	// TierAuto (T1) executes immediately; reversible or low-risk actions.
	TierAuto Tier = "T1"
	// TierPropose (T2) creates a proposal and waits for a separate
	// confirmation turn.
	TierPropose Tier = "T2"
	// TierConfirm (T3) executes only when the same invocation carries an
	// explicit confirmation flag. No deferred flag is trusted across turns.
	TierConfirm Tier = "T3"
)

// Valid reports whether the tier is a known classification.
func (t Tier) Valid() bool {
	switch t {
	case TierAuto, TierPropose, TierConfirm:
		return true
	}
	return false
}

// Executor performs a tool's side effect for one tenant.
type Executor func(ctx context.Context, tenantID string, payload json.RawMessage) (any, error)

// Descriptor statically describes a tool. Immutable after registration.
type Descriptor struct {
	Name            string
	Description     string
	RequiredContext models.CallerContext
	Tier            Tier

	// BypassesStaging marks tools that write directly to published content
	// instead of the draft. Declared data, not a special-cased branch.
	BypassesStaging bool

	// InputSchema is an optional JSON Schema for the tool payload, compiled
	// at registration time.
	InputSchema json.RawMessage
}

// ErrNotRegistered is returned when dispatching to an unknown tool name.
var ErrNotRegistered = errors.New("no executor registered")

// ErrSealed is returned when registering after the registry was sealed.
var ErrSealed = errors.New("registry is sealed")

type entry struct {
	desc   Descriptor
	exec   Executor
	schema *jsonschema.Schema
}

// Registry is the single authoritative mapping from action name to
// side-effecting handler. It is built once at startup via Register calls,
// sealed, and injected into the orchestrator — never a global the
// orchestrator reaches into ambiently. After Seal it is read-only and safe
// for unsynchronized concurrent reads.
type Registry struct {
	mu      sync.Mutex
	sealed  bool
	entries map[string]*entry
}

// NewRegistry creates an empty registry ready for boot-time registration.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// Register adds a tool and its executor. Duplicate names, invalid tiers,
// and malformed schemas are boot errors.
func (r *Registry) Register(desc Descriptor, exec Executor) error {
	if desc.Name == "" {
		return errors.New("tool name is required")
	}
	if !desc.Tier.Valid() {
		return fmt.Errorf("tool %q: invalid tier %q", desc.Name, desc.Tier)
	}
	if !desc.RequiredContext.Valid() {
		return fmt.Errorf("tool %q: invalid required context %q", desc.Name, desc.RequiredContext)
	}
	if exec == nil {
		return fmt.Errorf("tool %q: executor is required", desc.Name)
	}

	var schema *jsonschema.Schema
	if len(desc.InputSchema) > 0 {
		compiler := jsonschema.NewCompiler()
		resource := desc.Name + ".schema.json"
		if err := compiler.AddResource(resource, bytes.NewReader(desc.InputSchema)); err != nil {
			return fmt.Errorf("tool %q: invalid input schema: %w", desc.Name, err)
		}
		compiled, err := compiler.Compile(resource)
		if err != nil {
			return fmt.Errorf("tool %q: invalid input schema: %w", desc.Name, err)
		}
		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("tool %q: already registered", desc.Name)
	}
	r.entries[desc.Name] = &entry{desc: desc, exec: exec, schema: schema}
	return nil
}

// Seal freezes the registry. Registration after Seal fails.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Get returns a tool descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Validate checks a payload against the tool's compiled input schema.
// Violations come back as validation-kind errors.
func (r *Registry) Validate(name string, payload json.RawMessage) error {
	e, ok := r.lookup(name)
	if !ok {
		return ErrNotRegistered
	}
	if e.schema == nil {
		return nil
	}
	var doc any
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return models.E(models.KindValidation, "payload is not valid JSON: %v", err)
	}
	if err := e.schema.Validate(doc); err != nil {
		return models.E(models.KindValidation, "invalid payload: %v", err)
	}
	return nil
}

// Dispatch runs the executor registered for name. All callers — direct
// routes, agent tools, other services — route actions through here; there is
// no second copy of any action.
func (r *Registry) Dispatch(ctx context.Context, name, tenantID string, payload json.RawMessage) (any, error) {
	e, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return e.exec(ctx, tenantID, payload)
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	return e, ok
}
