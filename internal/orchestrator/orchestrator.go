// Package orchestrator is the single entry point for tool invocations: it
// resolves sessions, enforces the context guard and trust-tier policy, and
// routes every action through the executor registry. No tool invocation
// reaches an executor any other way.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stagecrafthq/stagecraft/internal/a2a"
	"github.com/stagecrafthq/stagecraft/internal/observability"
	"github.com/stagecrafthq/stagecraft/internal/proposal"
	"github.com/stagecrafthq/stagecraft/internal/session"
	"github.com/stagecrafthq/stagecraft/internal/tools"
	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// genericFailure is what infrastructure failures look like to the caller.
// Internal detail goes to the log, not the conversation.
const genericFailure = "Something went wrong completing that action. Please try again in a moment."

// Options configures the orchestrator.
type Options struct {
	// Logger receives orchestration diagnostics.
	Logger *slog.Logger
	// Metrics collects dispatch and proposal metrics; nil disables.
	Metrics *observability.Metrics

	// SessionTTL bounds session lifetime (default 30m).
	SessionTTL time.Duration
	// ProposalPendingTTL discards unconfirmed proposals (default 15m).
	ProposalPendingTTL time.Duration
	// ProposalRetention removes terminal proposals (default 24h).
	ProposalRetention time.Duration
	// SweepInterval drives expiry and prune passes (default 1m).
	SweepInterval time.Duration

	// ConfirmWait bounds how long a losing confirm call waits for the
	// winner's result (default 5s).
	ConfirmWait time.Duration

	// Now is the clock, overridable for testing.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 30 * time.Minute
	}
	if o.ProposalPendingTTL <= 0 {
		o.ProposalPendingTTL = 15 * time.Minute
	}
	if o.ProposalRetention <= 0 {
		o.ProposalRetention = 24 * time.Hour
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
	if o.ConfirmWait <= 0 {
		o.ConfirmWait = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Orchestrator mediates between the conversational agent and the registered
// executors. All dependencies are injected; nothing is reached through a
// global.
type Orchestrator struct {
	registry  *tools.Registry
	sessions  session.Store
	proposals proposal.Store
	opts      Options
	tracer    trace.Tracer

	sessionLocksMu sync.Mutex
	sessionLocks   map[string]*sessionLock
}

// New creates an orchestrator over the given registry and stores.
func New(registry *tools.Registry, sessions session.Store, proposals proposal.Store, opts Options) *Orchestrator {
	return &Orchestrator{
		registry:     registry,
		sessions:     sessions,
		proposals:    proposals,
		opts:         opts.withDefaults(),
		tracer:       otel.Tracer("stagecraft/orchestrator"),
		sessionLocks: map[string]*sessionLock{},
	}
}

// StartSession resolves the invocation into a trusted session, derives the
// forbidden-slot policy, and returns the inline context prefix for the
// conversation's first message. Resolution failure is fatal for the
// invocation.
func (o *Orchestrator) StartSession(ctx context.Context, inv session.Invocation) (*models.Session, string, error) {
	desc, err := session.Resolve(inv)
	if err != nil {
		o.opts.Logger.Warn("session context resolution failed", "error", err)
		return nil, "", err
	}
	sess, err := session.New(desc, o.opts.SessionTTL, o.opts.Now())
	if err != nil {
		return nil, "", err
	}
	if inv.SessionID != "" {
		sess.ID = inv.SessionID
	}
	if err := o.sessions.Create(ctx, sess); err != nil {
		return nil, "", err
	}
	if o.opts.Metrics != nil {
		o.opts.Metrics.ActiveSessions.Inc()
	}
	o.opts.Logger.Info("session started",
		"session_id", sess.ID,
		"tenant_id", sess.TenantID,
		"caller_context", sess.CallerContext,
		"forbidden_slots", len(sess.ForbiddenSlots),
	)
	return sess, session.ContextPrefix(sess), nil
}

// HandleToolCall processes one tool invocation for a session. Turns for the
// same session are serialized; the guard, payload validation, and tier
// policy all run before any side effect.
func (o *Orchestrator) HandleToolCall(ctx context.Context, sessionID string, call models.ToolCall) models.Result {
	unlock := o.lockSession(sessionID)
	defer unlock()

	sess, res := o.loadSession(ctx, sessionID)
	if res != nil {
		return *res
	}

	desc, ok := o.registry.Get(call.Name)
	if !ok {
		o.opts.Logger.Error("dispatch to unregistered tool",
			"tool", call.Name,
			"session_id", sessionID,
			"tenant_id", sess.TenantID,
		)
		o.countDispatch(call.Name, "error")
		return models.Fail(models.KindExecutorNotFound, genericFailure)
	}

	if err := tools.RequireContext(sess, desc); err != nil {
		o.countDispatch(desc.Name, "error")
		return o.toResult(desc.Name, err)
	}
	if err := o.registry.Validate(desc.Name, call.Payload); err != nil {
		o.countDispatch(desc.Name, "error")
		return o.toResult(desc.Name, err)
	}
	_ = o.sessions.Touch(ctx, sessionID, o.opts.SessionTTL)

	switch desc.Tier {
	case tools.TierAuto:
		return o.dispatch(ctx, sess, desc, call)

	case tools.TierPropose:
		p := &models.Proposal{
			ID:        uuid.NewString(),
			TenantID:  sess.TenantID,
			SessionID: sess.ID,
			ToolName:  desc.Name,
			Payload:   call.Payload,
			Status:    models.ProposalPending,
			CreatedAt: o.opts.Now(),
		}
		if err := o.proposals.Create(ctx, p); err != nil {
			o.opts.Logger.Error("failed to create proposal", "error", err, "tool", desc.Name)
			return models.Fail(models.KindInternal, genericFailure)
		}
		o.countProposal(models.ProposalPending)
		o.countDispatch(desc.Name, "pending_confirmation")
		return models.Pending(p.ID, "The action %q is staged and needs your confirmation before it runs.", desc.Name)

	case tools.TierConfirm:
		if !call.Confirmed {
			o.countDispatch(desc.Name, "pending_confirmation")
			return models.Result{
				Status:      models.StatusPendingConfirmation,
				Description: confirmationPrompt(desc),
			}
		}
		return o.dispatch(ctx, sess, desc, call)

	default:
		o.opts.Logger.Error("descriptor with unknown tier", "tool", desc.Name, "tier", desc.Tier)
		return models.Fail(models.KindInternal, genericFailure)
	}
}

// ConfirmProposal moves a pending proposal to confirmed and executes it.
// Exactly-once: the status compare-and-swap decides a single winner;
// everyone else observes the winner's cached result.
func (o *Orchestrator) ConfirmProposal(ctx context.Context, sessionID, proposalID string) models.Result {
	unlock := o.lockSession(sessionID)
	defer unlock()

	sess, res := o.loadSession(ctx, sessionID)
	if res != nil {
		return *res
	}

	p, err := o.proposals.Get(ctx, sess.TenantID, proposalID)
	if errors.Is(err, proposal.ErrNotFound) || errors.Is(err, proposal.ErrTenantMismatch) {
		return models.Fail(models.KindNotFound, "no proposal %q for this conversation", proposalID)
	}
	if err != nil {
		o.opts.Logger.Error("failed to load proposal", "error", err, "proposal_id", proposalID)
		return models.Fail(models.KindInternal, genericFailure)
	}

	desc, ok := o.registry.Get(p.ToolName)
	if !ok {
		o.opts.Logger.Error("proposal references unregistered tool", "tool", p.ToolName, "proposal_id", p.ID)
		return models.Fail(models.KindExecutorNotFound, genericFailure)
	}
	if err := tools.RequireContext(sess, desc); err != nil {
		return o.toResult(desc.Name, err)
	}

	switch p.Status {
	case models.ProposalExecuted:
		return models.Result{Status: models.StatusOK, Payload: p.Result}
	case models.ProposalDiscarded:
		return models.Fail(models.KindConflict, "the proposed action %q was discarded", p.ToolName)
	}

	won, err := o.proposals.CASStatus(ctx, sess.TenantID, p.ID, models.ProposalPending, models.ProposalConfirmed)
	if err != nil {
		o.opts.Logger.Error("proposal confirm CAS failed", "error", err, "proposal_id", p.ID)
		return models.Fail(models.KindInternal, genericFailure)
	}
	if !won {
		// Another confirm got there first (or a prune discarded it); wait
		// for the terminal state instead of executing a second time.
		return o.awaitProposal(ctx, sess.TenantID, p.ID, p.ToolName)
	}
	o.countProposal(models.ProposalConfirmed)

	result := o.dispatch(ctx, sess, desc, models.ToolCall{Name: p.ToolName, Payload: p.Payload})
	if result.Status != models.StatusOK {
		// Execution failed; the proposal is spent either way. One-directional
		// transitions mean it cannot go back to pending, so it is discarded
		// and the agent must stage a fresh one.
		if _, casErr := o.proposals.CASStatus(ctx, sess.TenantID, p.ID, models.ProposalConfirmed, models.ProposalDiscarded); casErr != nil {
			o.opts.Logger.Error("failed to discard proposal after execution failure", "error", casErr, "proposal_id", p.ID)
		}
		o.countProposal(models.ProposalDiscarded)
		return result
	}

	if err := o.proposals.MarkExecuted(ctx, sess.TenantID, p.ID, result.Payload); err != nil {
		o.opts.Logger.Error("failed to record proposal execution", "error", err, "proposal_id", p.ID)
	}
	o.countProposal(models.ProposalExecuted)
	return result
}

// DiscardProposal drops a pending proposal without executing it.
func (o *Orchestrator) DiscardProposal(ctx context.Context, sessionID, proposalID string) models.Result {
	unlock := o.lockSession(sessionID)
	defer unlock()

	sess, res := o.loadSession(ctx, sessionID)
	if res != nil {
		return *res
	}
	won, err := o.proposals.CASStatus(ctx, sess.TenantID, proposalID, models.ProposalPending, models.ProposalDiscarded)
	if errors.Is(err, proposal.ErrNotFound) || errors.Is(err, proposal.ErrTenantMismatch) {
		return models.Fail(models.KindNotFound, "no proposal %q for this conversation", proposalID)
	}
	if err != nil {
		o.opts.Logger.Error("proposal discard failed", "error", err, "proposal_id", proposalID)
		return models.Fail(models.KindInternal, genericFailure)
	}
	if !won {
		return models.Fail(models.KindConflict, "proposal %q is no longer pending", proposalID)
	}
	o.countProposal(models.ProposalDiscarded)
	return models.OK(map[string]any{"discarded": true})
}

// dispatch runs the executor and wraps the outcome in the result envelope.
// Confirmed (T2/T3) executions are detached from the caller's cancellation
// so a disconnect mid-turn never abandons a state mutation partway; T1
// executions keep the caller's context, which is also what cancels in-flight
// specialist calls.
func (o *Orchestrator) dispatch(ctx context.Context, sess *models.Session, desc tools.Descriptor, call models.ToolCall) models.Result {
	ctx, span := o.tracer.Start(ctx, "orchestrator.dispatch",
		trace.WithAttributes(
			attribute.String("tool.name", desc.Name),
			attribute.String("tool.tier", string(desc.Tier)),
			attribute.String("tenant.id", sess.TenantID),
		))
	defer span.End()

	if desc.Tier != tools.TierAuto {
		ctx = context.WithoutCancel(ctx)
	}
	execCtx := session.NewContext(ctx, sess)

	start := o.opts.Now()
	out, err := o.registry.Dispatch(execCtx, desc.Name, sess.TenantID, call.Payload)
	if o.opts.Metrics != nil {
		o.opts.Metrics.ToolDispatchDuration.WithLabelValues(desc.Name).Observe(o.opts.Now().Sub(start).Seconds())
	}
	if err != nil {
		o.countDispatch(desc.Name, "error")
		return o.toResult(desc.Name, err)
	}

	o.countDispatch(desc.Name, "ok")
	result := models.OK(out)
	if m, ok := out.(map[string]any); ok {
		if source, ok := m["source"].(string); ok {
			result.Source = source
		}
	}
	return result
}

// awaitProposal polls for the terminal state reached by a concurrent
// confirmation so every caller observes the same final result.
func (o *Orchestrator) awaitProposal(ctx context.Context, tenantID, id, toolName string) models.Result {
	deadline := time.Now().Add(o.opts.ConfirmWait)
	for {
		p, err := o.proposals.Get(ctx, tenantID, id)
		if err != nil {
			return models.Fail(models.KindNotFound, "no proposal %q for this conversation", id)
		}
		switch p.Status {
		case models.ProposalExecuted:
			return models.Result{Status: models.StatusOK, Payload: p.Result}
		case models.ProposalDiscarded:
			return models.Fail(models.KindConflict, "the proposed action %q was discarded", toolName)
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return models.Fail(models.KindConflict, "confirmation of %q is still in progress", toolName)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func (o *Orchestrator) loadSession(ctx context.Context, sessionID string) (*models.Session, *models.Result) {
	sess, err := o.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		res := models.Fail(models.KindNotFound, "no active session; start a new conversation")
		return nil, &res
	}
	if err != nil {
		o.opts.Logger.Error("failed to load session", "error", err, "session_id", sessionID)
		res := models.Fail(models.KindInternal, genericFailure)
		return nil, &res
	}
	if sess.Expired(o.opts.Now()) {
		res := models.Fail(models.KindNotFound, "the session has expired; start a new conversation")
		return nil, &res
	}
	return sess, nil
}

// toResult maps an executor or guard error to the structured envelope.
// Expected kinds keep their message so the agent can explain them;
// infrastructure failures are logged in full and surfaced generically.
func (o *Orchestrator) toResult(toolName string, err error) models.Result {
	var classified *models.Error
	if errors.As(err, &classified) {
		if classified.Kind.Expected() {
			return models.Fail(classified.Kind, "%s", classified.Message)
		}
		o.opts.Logger.Error("tool execution failed", "tool", toolName, "kind", classified.Kind, "error", err)
		return models.Fail(classified.Kind, genericFailure)
	}

	switch {
	case errors.Is(err, tools.ErrNotRegistered):
		o.opts.Logger.Error("dispatch to unregistered tool", "tool", toolName, "error", err)
		return models.Fail(models.KindExecutorNotFound, genericFailure)
	case errors.Is(err, a2a.ErrTimeout):
		o.opts.Logger.Error("specialist call timed out", "tool", toolName, "error", err)
		return models.Fail(models.KindTimeout, genericFailure)
	}

	var remote *a2a.RemoteError
	if errors.As(err, &remote) {
		o.opts.Logger.Error("specialist call failed", "tool", toolName, "target", remote.Target, "status", remote.StatusCode, "error", err)
		return models.Fail(models.KindRemote, genericFailure)
	}

	o.opts.Logger.Error("tool execution failed", "tool", toolName, "error", err)
	return models.Fail(models.KindInternal, genericFailure)
}

func (o *Orchestrator) countDispatch(tool, status string) {
	if o.opts.Metrics != nil {
		o.opts.Metrics.ToolDispatchCounter.WithLabelValues(tool, status).Inc()
	}
}

func (o *Orchestrator) countProposal(status models.ProposalStatus) {
	if o.opts.Metrics != nil {
		o.opts.Metrics.ProposalCounter.WithLabelValues(string(status)).Inc()
	}
}

func confirmationPrompt(desc tools.Descriptor) string {
	if desc.Description != "" {
		return "This action needs explicit confirmation in the same request: " + desc.Description
	}
	return "The action \"" + desc.Name + "\" needs explicit confirmation in the same request."
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lockSession serializes turns for one session. Different sessions proceed
// independently.
func (o *Orchestrator) lockSession(sessionID string) func() {
	if sessionID == "" {
		return func() {}
	}

	o.sessionLocksMu.Lock()
	lock := o.sessionLocks[sessionID]
	if lock == nil {
		lock = &sessionLock{}
		o.sessionLocks[sessionID] = lock
	}
	lock.refs++
	o.sessionLocksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		o.sessionLocksMu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(o.sessionLocks, sessionID)
		}
		o.sessionLocksMu.Unlock()
	}
}
