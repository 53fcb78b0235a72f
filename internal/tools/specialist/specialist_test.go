package specialist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stagecrafthq/stagecraft/internal/a2a"
	"github.com/stagecrafthq/stagecraft/internal/session"
	"github.com/stagecrafthq/stagecraft/internal/tools"
	"github.com/stagecrafthq/stagecraft/pkg/models"
)

func TestRegisterCreatesOneToolPerTarget(t *testing.T) {
	router := a2a.NewRouter([]a2a.Target{
		{Name: "designer", URL: "http://localhost:1"},
		{Name: "copywriter", URL: "http://localhost:2"},
	})
	reg := tools.NewRegistry()
	if err := Register(reg, router); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, name := range []string{"ask_designer", "ask_copywriter"} {
		desc, ok := reg.Get(name)
		if !ok {
			t.Errorf("expected %s registered", name)
			continue
		}
		if desc.RequiredContext != models.ContextCustomer {
			t.Errorf("%s: expected customer context, got %s", name, desc.RequiredContext)
		}
		if desc.Tier != tools.TierAuto {
			t.Errorf("%s: expected T1, got %s", name, desc.Tier)
		}
	}
}

func TestAskForwardsSessionState(t *testing.T) {
	var got a2a.Envelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"messages":[{"role":"assistant","content":"try peonies"}]}`))
	}))
	defer server.Close()

	router := a2a.NewRouter([]a2a.Target{{Name: "designer", URL: server.URL, Timeout: time.Second}})
	reg := tools.NewRegistry()
	if err := Register(reg, router); err != nil {
		t.Fatalf("register: %v", err)
	}

	sess := &models.Session{
		ID:            "s-1",
		TenantID:      "t-1",
		CallerContext: models.ContextCustomer,
	}
	ctx := session.NewContext(context.Background(), sess)

	out, err := reg.Dispatch(ctx, "ask_designer", "t-1", json.RawMessage(`{"message": "what flowers?"}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	m := out.(map[string]any)
	if m["text"] != "try peonies" || m["target"] != "designer" {
		t.Errorf("unexpected output: %v", m)
	}
	if got.TenantID != "t-1" || got.Message != "what flowers?" {
		t.Errorf("unexpected envelope: %+v", got)
	}
}

func TestAskWithoutSessionFails(t *testing.T) {
	router := a2a.NewRouter([]a2a.Target{{Name: "designer", URL: "http://localhost:1"}})
	reg := tools.NewRegistry()
	if err := Register(reg, router); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := reg.Dispatch(context.Background(), "ask_designer", "t-1", json.RawMessage(`{"message": "hi"}`))
	var classified *models.Error
	if !errors.As(err, &classified) || classified.Kind != models.KindValidation {
		t.Fatalf("expected validation error without session, got %v", err)
	}
}
