package tools

import (
	"errors"
	"strings"
	"testing"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

func TestRequireContext(t *testing.T) {
	tenantTool := Descriptor{Name: "publish_site", RequiredContext: models.ContextTenant, Tier: TierPropose}
	customerTool := Descriptor{Name: "ask_specialist", RequiredContext: models.ContextCustomer, Tier: TierAuto}

	tests := []struct {
		name    string
		sess    *models.Session
		desc    Descriptor
		wantErr bool
	}{
		{
			name: "matching tenant context",
			sess: &models.Session{CallerContext: models.ContextTenant},
			desc: tenantTool,
		},
		{
			name: "matching customer context",
			sess: &models.Session{CallerContext: models.ContextCustomer},
			desc: customerTool,
		},
		{
			name:    "customer calling tenant tool",
			sess:    &models.Session{CallerContext: models.ContextCustomer},
			desc:    tenantTool,
			wantErr: true,
		},
		{
			name:    "tenant calling customer tool",
			sess:    &models.Session{CallerContext: models.ContextTenant},
			desc:    customerTool,
			wantErr: true,
		},
		{
			name:    "nil session fails closed",
			sess:    nil,
			desc:    tenantTool,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireContext(tt.sess, tt.desc)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var classified *models.Error
			if !errors.As(err, &classified) {
				t.Fatalf("expected classified error, got %v", err)
			}
			if classified.Kind != models.KindContextViolation {
				t.Errorf("expected context_violation, got %q", classified.Kind)
			}
			if !strings.Contains(classified.Message, string(tt.desc.RequiredContext)) {
				t.Errorf("expected message to name required context, got %q", classified.Message)
			}
		})
	}
}
