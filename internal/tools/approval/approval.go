// Package approval registers the cross-party approval tools: customers file
// requests, tenants decide them.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stagecrafthq/stagecraft/internal/approvals"
	"github.com/stagecrafthq/stagecraft/internal/session"
	"github.com/stagecrafthq/stagecraft/internal/tools"
	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// Register adds the approval tools to the registry.
func Register(reg *tools.Registry, store approvals.Store) error {
	entries := []struct {
		desc tools.Descriptor
		exec tools.Executor
	}{
		{
			desc: tools.Descriptor{
				Name:            "request_approval",
				Description:     "Files a request for the site owner to approve.",
				RequiredContext: models.ContextCustomer,
				Tier:            tools.TierAuto,
				InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "subject": {"type": "string", "description": "What needs approval"}
  },
  "required": ["subject"]
}`),
			},
			exec: requestApproval(store),
		},
		{
			desc: tools.Descriptor{
				Name:            "approve_request",
				Description:     "Approves a pending customer request.",
				RequiredContext: models.ContextTenant,
				Tier:            tools.TierPropose,
				InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "request_id": {"type": "string", "description": "Pending request id"}
  },
  "required": ["request_id"]
}`),
			},
			exec: decide(store, approvals.StatusApproved),
		},
		{
			desc: tools.Descriptor{
				Name:            "decline_request",
				Description:     "Declines a pending customer request.",
				RequiredContext: models.ContextTenant,
				Tier:            tools.TierPropose,
				InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "request_id": {"type": "string", "description": "Pending request id"}
  },
  "required": ["request_id"]
}`),
			},
			exec: decide(store, approvals.StatusDeclined),
		},
		{
			desc: tools.Descriptor{
				Name:            "list_pending_approvals",
				Description:     "Lists requests awaiting the site owner's decision.",
				RequiredContext: models.ContextTenant,
				Tier:            tools.TierAuto,
			},
			exec: listPending(store),
		},
	}

	for _, e := range entries {
		if err := reg.Register(e.desc, e.exec); err != nil {
			return fmt.Errorf("register %s: %w", e.desc.Name, err)
		}
	}
	return nil
}

func requestApproval(store approvals.Store) tools.Executor {
	return func(ctx context.Context, tenantID string, payload json.RawMessage) (any, error) {
		var input struct {
			Subject string `json:"subject"`
		}
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, models.E(models.KindValidation, "invalid payload: %v", err)
		}
		req := &approvals.Request{TenantID: tenantID, Subject: input.Subject}
		if sess, ok := session.FromContext(ctx); ok {
			req.RequestedBy = sess.CallerID
		}
		if err := store.Create(ctx, req); err != nil {
			return nil, err
		}
		return req, nil
	}
}

func decide(store approvals.Store, status approvals.Status) tools.Executor {
	return func(ctx context.Context, tenantID string, payload json.RawMessage) (any, error) {
		var input struct {
			RequestID string `json:"request_id"`
		}
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, models.E(models.KindValidation, "invalid payload: %v", err)
		}
		req, err := store.Decide(ctx, tenantID, input.RequestID, status)
		if errors.Is(err, approvals.ErrNotFound) {
			return nil, models.E(models.KindNotFound, "approval request %q not found", input.RequestID)
		}
		if err != nil {
			return nil, err
		}
		return req, nil
	}
}

func listPending(store approvals.Store) tools.Executor {
	return func(ctx context.Context, tenantID string, _ json.RawMessage) (any, error) {
		pending, err := store.ListPending(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"pending": pending}, nil
	}
}
