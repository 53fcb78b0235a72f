package session

import (
	"context"
	"time"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// Store is the interface for session persistence.
type Store interface {
	Create(ctx context.Context, sess *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	// Touch records activity and extends the TTL.
	Touch(ctx context.Context, id string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes sessions whose TTL elapsed before now and
	// returns the count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Serialize flattens a session into a plain attribute map under the same
// keys the resolver reads, so a remote process can rebuild equivalent
// context from a serialized envelope.
func Serialize(sess *models.Session) map[string]any {
	if sess == nil {
		return nil
	}
	state := map[string]any{
		KeyTenantID:      sess.TenantID,
		KeyCallerContext: string(sess.CallerContext),
	}
	if sess.CallerID != "" {
		state[KeyCallerID] = sess.CallerID
	}
	if len(sess.Facts) > 0 {
		facts := make(map[string]any, len(sess.Facts))
		for k, v := range sess.Facts {
			facts[k] = v
		}
		state[KeyFacts] = facts
	}
	if sess.Locale != "" {
		state[KeyLocale] = sess.Locale
	}
	if sess.DisplayName != "" {
		state[KeyDisplayName] = sess.DisplayName
	}
	return state
}
