package models

import "encoding/json"

// ToolCall is a single tool invocation proposed by the conversational agent.
// The orchestrator treats it as untrusted input: name, payload, and the
// Confirmed flag are all validated against the registered descriptor before
// any side effect runs.
type ToolCall struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Confirmed marks that a user-visible confirmation step happened in the
	// same invocation. Only T3 tools consult it; it is never trusted across
	// turns.
	Confirmed bool `json:"confirmed,omitempty"`
}
