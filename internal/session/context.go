package session

import (
	"context"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

type ctxKey struct{}

// NewContext returns a context carrying the session. The orchestrator
// attaches the resolved session before dispatching so executors that need
// more than the tenant id (e.g. specialist calls) can recover it.
func NewContext(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext recovers the session attached by the orchestrator.
func FromContext(ctx context.Context) (*models.Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(*models.Session)
	return sess, ok && sess != nil
}
