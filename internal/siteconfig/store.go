// Package siteconfig owns the canonical staged-vs-live content
// representation per tenant and the atomic publish/discard transitions.
// Every caller — direct routes, agent tools, remote services — routes
// transitions through the Machine; there is no second copy of publish logic.
package siteconfig

import (
	"context"
	"errors"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// ErrNotFound is returned when a tenant has no config record yet.
var ErrNotFound = errors.New("site config not found")

// Store persists SiteConfig records. Put replaces the whole record in one
// atomic write, which is what keeps publish free of observable intermediate
// states.
type Store interface {
	Get(ctx context.Context, tenantID string) (*models.SiteConfig, error)
	Put(ctx context.Context, cfg *models.SiteConfig) error
	Delete(ctx context.Context, tenantID string) error
}
