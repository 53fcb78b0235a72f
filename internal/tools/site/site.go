// Package site registers the content-editing tools backed by the
// draft/publish state machine.
package site

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stagecrafthq/stagecraft/internal/siteconfig"
	"github.com/stagecrafthq/stagecraft/internal/tools"
	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// Register adds the site content tools to the registry.
func Register(reg *tools.Registry, machine *siteconfig.Machine) error {
	entries := []struct {
		desc tools.Descriptor
		exec tools.Executor
	}{
		{
			desc: tools.Descriptor{
				Name:            "get_site_config",
				Description:     "Returns the tenant's current site content, labeled draft or live.",
				RequiredContext: models.ContextTenant,
				Tier:            tools.TierAuto,
			},
			exec: getSiteConfig(machine),
		},
		{
			desc: tools.Descriptor{
				Name:            "save_draft",
				Description:     "Stages content changes as the tenant's draft.",
				RequiredContext: models.ContextTenant,
				Tier:            tools.TierAuto,
				InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "config": {"type": "object", "description": "Full site content to stage"}
  },
  "required": ["config"]
}`),
			},
			exec: saveDraft(machine),
		},
		{
			desc: tools.Descriptor{
				Name:            "discard_draft",
				Description:     "Drops the staged draft, keeping live content untouched.",
				RequiredContext: models.ContextTenant,
				Tier:            tools.TierPropose,
			},
			exec: discardDraft(machine),
		},
		{
			desc: tools.Descriptor{
				Name:            "publish_site",
				Description:     "Promotes the staged draft to the live site.",
				RequiredContext: models.ContextTenant,
				Tier:            tools.TierPropose,
			},
			exec: publishSite(machine),
		},
		{
			desc: tools.Descriptor{
				Name:            "apply_theme_live",
				Description:     "Applies a theme change directly to the live site, skipping the draft.",
				RequiredContext: models.ContextTenant,
				Tier:            tools.TierAuto,
				BypassesStaging: true,
				InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "theme": {"type": "string", "description": "Theme identifier to apply"}
  },
  "required": ["theme"]
}`),
			},
			exec: applyThemeLive(machine),
		},
		{
			desc: tools.Descriptor{
				Name:            "delete_site",
				Description:     "Deletes all site content, draft and live. Irreversible.",
				RequiredContext: models.ContextTenant,
				Tier:            tools.TierConfirm,
			},
			exec: deleteSite(machine),
		},
	}

	for _, e := range entries {
		if err := reg.Register(e.desc, e.exec); err != nil {
			return fmt.Errorf("register %s: %w", e.desc.Name, err)
		}
	}
	return nil
}

func getSiteConfig(machine *siteconfig.Machine) tools.Executor {
	return func(ctx context.Context, tenantID string, _ json.RawMessage) (any, error) {
		payload, source, err := machine.Effective(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"source": string(source),
			"config": payload,
		}, nil
	}
}

func saveDraft(machine *siteconfig.Machine) tools.Executor {
	return func(ctx context.Context, tenantID string, payload json.RawMessage) (any, error) {
		var input struct {
			Config json.RawMessage `json:"config"`
		}
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, models.E(models.KindValidation, "invalid payload: %v", err)
		}
		if err := machine.Save(ctx, tenantID, input.Config); err != nil {
			return nil, err
		}
		return map[string]any{"saved": true, "source": string(siteconfig.SourceDraft)}, nil
	}
}

func discardDraft(machine *siteconfig.Machine) tools.Executor {
	return func(ctx context.Context, tenantID string, _ json.RawMessage) (any, error) {
		if err := machine.Discard(ctx, tenantID); err != nil {
			return nil, err
		}
		return map[string]any{"discarded": true}, nil
	}
}

func publishSite(machine *siteconfig.Machine) tools.Executor {
	return func(ctx context.Context, tenantID string, _ json.RawMessage) (any, error) {
		cfg, err := machine.Publish(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"published":    true,
			"source":       string(siteconfig.SourceLive),
			"published_at": cfg.PublishedAt,
		}, nil
	}
}

func applyThemeLive(machine *siteconfig.Machine) tools.Executor {
	return func(ctx context.Context, tenantID string, payload json.RawMessage) (any, error) {
		var input struct {
			Theme string `json:"theme"`
		}
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, models.E(models.KindValidation, "invalid payload: %v", err)
		}
		patch, err := json.Marshal(map[string]string{"theme": input.Theme})
		if err != nil {
			return nil, err
		}
		if err := machine.ApplyLivePatch(ctx, tenantID, patch); err != nil {
			return nil, err
		}
		return map[string]any{"applied": true, "theme": input.Theme, "source": string(siteconfig.SourceLive)}, nil
	}
}

func deleteSite(machine *siteconfig.Machine) tools.Executor {
	return func(ctx context.Context, tenantID string, _ json.RawMessage) (any, error) {
		if err := machine.Delete(ctx, tenantID); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": true}, nil
	}
}
