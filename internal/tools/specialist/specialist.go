// Package specialist registers passthrough tools that delegate a question
// to a remote specialist sub-service via the A2A router.
package specialist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stagecrafthq/stagecraft/internal/a2a"
	"github.com/stagecrafthq/stagecraft/internal/session"
	"github.com/stagecrafthq/stagecraft/internal/tools"
	"github.com/stagecrafthq/stagecraft/pkg/models"
)

var askSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "message": {"type": "string", "description": "Question to forward to the specialist"}
  },
  "required": ["message"]
}`)

// Register adds one ask_<target> tool per configured specialist target.
// Specialist calls are pure reads from the orchestrator's point of view, so
// the executor uses the idempotent (retried) call path.
func Register(reg *tools.Registry, router *a2a.Router) error {
	for _, target := range router.Targets() {
		desc := tools.Descriptor{
			Name:            "ask_" + target,
			Description:     fmt.Sprintf("Forwards a question to the %s specialist.", target),
			RequiredContext: models.ContextCustomer,
			Tier:            tools.TierAuto,
			InputSchema:     askSchema,
		}
		if err := reg.Register(desc, ask(router, target)); err != nil {
			return fmt.Errorf("register ask_%s: %w", target, err)
		}
	}
	return nil
}

func ask(router *a2a.Router, target string) tools.Executor {
	return func(ctx context.Context, tenantID string, payload json.RawMessage) (any, error) {
		var input struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, models.E(models.KindValidation, "invalid payload: %v", err)
		}
		sess, ok := session.FromContext(ctx)
		if !ok {
			return nil, models.E(models.KindValidation, "no session attached to specialist call")
		}
		resp, err := router.CallIdempotent(ctx, target, sess, input.Message)
		if err != nil {
			return nil, err
		}
		return map[string]any{"target": target, "text": resp.Text}, nil
	}
}
