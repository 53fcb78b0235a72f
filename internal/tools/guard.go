package tools

import (
	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// RequireContext enforces that the caller's verified context matches the
// tool's declared required context. It is invoked from the orchestrator's
// single entry point before parameter validation or any executor call, so
// the check cannot drift out of sync across per-tool copies.
//
// Fails closed: a missing session is an error, and a mismatch names the
// required context so the agent can explain it.
func RequireContext(sess *models.Session, desc Descriptor) error {
	if sess == nil {
		return models.E(models.KindContextViolation, "no session context; tool %q requires %s context", desc.Name, desc.RequiredContext)
	}
	if sess.CallerContext != desc.RequiredContext {
		return models.E(models.KindContextViolation, "tool %q requires %s context, caller has %s context", desc.Name, desc.RequiredContext, sess.CallerContext)
	}
	return nil
}
