package approval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stagecrafthq/stagecraft/internal/approvals"
	"github.com/stagecrafthq/stagecraft/internal/session"
	"github.com/stagecrafthq/stagecraft/internal/tools"
	"github.com/stagecrafthq/stagecraft/pkg/models"
)

func newRegistry(t *testing.T) (*tools.Registry, approvals.Store) {
	t.Helper()
	store := approvals.NewMemoryStore()
	reg := tools.NewRegistry()
	if err := Register(reg, store); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Seal()
	return reg, store
}

func TestContextsAndTiers(t *testing.T) {
	reg, _ := newRegistry(t)

	tests := []struct {
		name    string
		context models.CallerContext
		tier    tools.Tier
	}{
		{name: "request_approval", context: models.ContextCustomer, tier: tools.TierAuto},
		{name: "approve_request", context: models.ContextTenant, tier: tools.TierPropose},
		{name: "decline_request", context: models.ContextTenant, tier: tools.TierPropose},
		{name: "list_pending_approvals", context: models.ContextTenant, tier: tools.TierAuto},
	}
	for _, tt := range tests {
		desc, ok := reg.Get(tt.name)
		if !ok {
			t.Errorf("tool %s not registered", tt.name)
			continue
		}
		if desc.RequiredContext != tt.context {
			t.Errorf("%s: expected %s context, got %s", tt.name, tt.context, desc.RequiredContext)
		}
		if desc.Tier != tt.tier {
			t.Errorf("%s: expected tier %s, got %s", tt.name, tt.tier, desc.Tier)
		}
	}
}

func TestRequestThenApproveFlow(t *testing.T) {
	reg, store := newRegistry(t)

	customerCtx := session.NewContext(context.Background(), &models.Session{
		CallerID:      "u-cust",
		CallerContext: models.ContextCustomer,
	})
	out, err := reg.Dispatch(customerCtx, "request_approval", "t-1", json.RawMessage(`{"subject": "refund order #42"}`))
	if err != nil {
		t.Fatalf("request_approval: %v", err)
	}
	req := out.(*approvals.Request)
	if req.RequestedBy != "u-cust" || req.Status != approvals.StatusPending {
		t.Errorf("unexpected request: %+v", req)
	}

	payload, _ := json.Marshal(map[string]string{"request_id": req.ID})
	out, err = reg.Dispatch(context.Background(), "approve_request", "t-1", payload)
	if err != nil {
		t.Fatalf("approve_request: %v", err)
	}
	if out.(*approvals.Request).Status != approvals.StatusApproved {
		t.Errorf("expected approved, got %+v", out)
	}

	pending, err := store.ListPending(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected nothing pending, got %d", len(pending))
	}
}

func TestDecideUnknownRequest(t *testing.T) {
	reg, _ := newRegistry(t)
	_, err := reg.Dispatch(context.Background(), "decline_request", "t-1", json.RawMessage(`{"request_id": "nope"}`))

	var classified *models.Error
	if !errors.As(err, &classified) || classified.Kind != models.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestListPendingTool(t *testing.T) {
	reg, store := newRegistry(t)
	if err := store.Create(context.Background(), &approvals.Request{TenantID: "t-1", Subject: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := reg.Dispatch(context.Background(), "list_pending_approvals", "t-1", nil)
	if err != nil {
		t.Fatalf("list_pending_approvals: %v", err)
	}
	pending := out.(map[string]any)["pending"].([]*approvals.Request)
	if len(pending) != 1 || pending[0].Subject != "x" {
		t.Errorf("unexpected pending list: %+v", pending)
	}
}
