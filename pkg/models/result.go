package models

import (
	"encoding/json"
	"fmt"
)

// ResultStatus is the top-level outcome of a tool invocation.
type ResultStatus string

const (
	// StatusOK means the tool executed and Payload holds its result.
	StatusOK ResultStatus = "ok"
	// StatusError means the invocation failed; Kind and Message describe why.
	StatusError ResultStatus = "error"
	// StatusPendingConfirmation means no side effect ran and the caller must
	// confirm before the action proceeds.
	StatusPendingConfirmation ResultStatus = "pending_confirmation"
)

// ErrorKind is the machine-readable classification of a failed invocation.
type ErrorKind string

const (
	// KindContextViolation: the caller's context does not match the tool's
	// required context.
	KindContextViolation ErrorKind = "context_violation"
	// KindValidation: malformed payload or a state-machine precondition
	// failed (e.g. publish with no draft).
	KindValidation ErrorKind = "validation"
	// KindNotFound: unknown tenant, session, or proposal.
	KindNotFound ErrorKind = "not_found"
	// KindConflict: concurrent modification lost the race.
	KindConflict ErrorKind = "conflict"
	// KindConfirmationRequired: a T3 tool was invoked without the in-call
	// confirmation flag.
	KindConfirmationRequired ErrorKind = "confirmation_required"
	// KindExecutorNotFound: dispatch to a tool name with no registered
	// executor. Infrastructure failure, surfaced generically.
	KindExecutorNotFound ErrorKind = "executor_not_found"
	// KindTimeout: a specialist call exceeded its budget.
	KindTimeout ErrorKind = "timeout"
	// KindRemote: a specialist returned a failure envelope.
	KindRemote ErrorKind = "remote"
	// KindInternal: anything else.
	KindInternal ErrorKind = "internal"
)

// Expected reports whether the kind is an expected outcome of normal
// operation that the agent should explain conversationally, as opposed to
// an infrastructure failure.
func (k ErrorKind) Expected() bool {
	switch k {
	case KindContextViolation, KindValidation, KindNotFound, KindConflict, KindConfirmationRequired:
		return true
	}
	return false
}

// Error is a structured, classified error. Expected kinds flow back to the
// agent as content; infrastructure kinds are logged and surfaced generically.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// E builds a classified error.
func E(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Result is the envelope every tool invocation returns to the conversational
// layer. It is always one of ok / error / pending_confirmation — never a
// bare exception, since the caller must be able to react to it as content.
type Result struct {
	Status ResultStatus `json:"status"`

	// Payload is set when Status == ok.
	Payload json.RawMessage `json:"payload,omitempty"`
	// Source labels content payloads as "draft" or "live" so downstream
	// generation never claims unpublished content is live.
	Source string `json:"source,omitempty"`

	// Kind and Message are set when Status == error.
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message,omitempty"`

	// Description and ProposalID are set when Status == pending_confirmation.
	Description string `json:"description,omitempty"`
	ProposalID  string `json:"proposal_id,omitempty"`
}

// OK builds a success result from any JSON-marshalable payload.
func OK(payload any) Result {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Fail(KindInternal, "failed to encode result")
	}
	return Result{Status: StatusOK, Payload: raw}
}

// Fail builds an error result.
func Fail(kind ErrorKind, format string, args ...any) Result {
	return Result{Status: StatusError, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Pending builds a pending_confirmation result.
func Pending(proposalID, format string, args ...any) Result {
	return Result{
		Status:      StatusPendingConfirmation,
		ProposalID:  proposalID,
		Description: fmt.Sprintf(format, args...),
	}
}
