package session

import (
	"context"
	"testing"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

func TestSerializeRoundTripsThroughResolver(t *testing.T) {
	sess := &models.Session{
		ID:            "s-1",
		TenantID:      "t-1",
		CallerID:      "u-1",
		CallerContext: models.ContextTenant,
		Facts:         map[string]any{"industry": "florist"},
		Locale:        "de-DE",
		DisplayName:   "Ada",
	}

	state := Serialize(sess)
	d, err := Resolve(Invocation{State: state})
	if err != nil {
		t.Fatalf("resolve serialized state: %v", err)
	}
	if d.TenantID != "t-1" || d.CallerID != "u-1" {
		t.Errorf("identity not round-tripped: %+v", d)
	}
	if d.CallerContext != models.ContextTenant {
		t.Errorf("expected tenant context, got %q", d.CallerContext)
	}
	if d.Facts["industry"] != "florist" {
		t.Errorf("facts not round-tripped: %v", d.Facts)
	}
	if d.Locale != "de-DE" || d.DisplayName != "Ada" {
		t.Errorf("bootstrap attributes not round-tripped: %+v", d)
	}
}

func TestSerializeOmitsEmptyAttributes(t *testing.T) {
	state := Serialize(&models.Session{TenantID: "t-1", CallerContext: models.ContextCustomer})
	for _, key := range []string{KeyCallerID, KeyFacts, KeyLocale, KeyDisplayName} {
		if _, ok := state[key]; ok {
			t.Errorf("expected %q omitted for empty attribute", key)
		}
	}
	if Serialize(nil) != nil {
		t.Error("expected nil for nil session")
	}
}

func TestSessionContext(t *testing.T) {
	sess := &models.Session{ID: "s-1"}
	ctx := NewContext(context.Background(), sess)

	got, ok := FromContext(ctx)
	if !ok || got.ID != "s-1" {
		t.Errorf("expected session recovered, got %v %v", got, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no session on a bare context")
	}
	if _, ok := FromContext(NewContext(context.Background(), nil)); ok {
		t.Error("expected nil session to read as absent")
	}
}
