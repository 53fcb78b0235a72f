package models

import (
	"encoding/json"
	"time"
)

// SiteConfig holds the staged and live content representations for one
// tenant. Draft is mutated by content-editing executors; Published only by
// the publish transition (or tools that declare a staging bypass).
//
// The drafting state is derived from nullability, never stored separately:
// no draft and no published content means the tenant has never edited.
type SiteConfig struct {
	TenantID       string          `json:"tenant_id"`
	Draft          json.RawMessage `json:"draft,omitempty"`
	DraftUpdatedAt *time.Time      `json:"draft_updated_at,omitempty"`
	Published      json.RawMessage `json:"published,omitempty"`
	PublishedAt    *time.Time      `json:"published_at,omitempty"`
}

// HasDraft reports whether staged content exists.
func (c *SiteConfig) HasDraft() bool {
	return c != nil && len(c.Draft) > 0
}

// Clone returns a deep copy; raw payload bytes are duplicated so later
// mutation of one copy never aliases the other.
func (c *SiteConfig) Clone() *SiteConfig {
	if c == nil {
		return nil
	}
	clone := &SiteConfig{TenantID: c.TenantID}
	if len(c.Draft) > 0 {
		clone.Draft = append(json.RawMessage(nil), c.Draft...)
	}
	if c.DraftUpdatedAt != nil {
		t := *c.DraftUpdatedAt
		clone.DraftUpdatedAt = &t
	}
	if len(c.Published) > 0 {
		clone.Published = append(json.RawMessage(nil), c.Published...)
	}
	if c.PublishedAt != nil {
		t := *c.PublishedAt
		clone.PublishedAt = &t
	}
	return clone
}
