package orchestrator

import (
	"context"
	"time"
)

// RunSweeper periodically removes expired sessions, discards unconfirmed
// proposals past their TTL, and drops terminal proposals past retention.
// Blocks until ctx is done.
func (o *Orchestrator) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(o.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweep(ctx)
		}
	}
}

func (o *Orchestrator) sweep(ctx context.Context) {
	now := o.opts.Now()

	expired, err := o.sessions.DeleteExpired(ctx, now)
	if err != nil {
		o.opts.Logger.Error("session expiry sweep failed", "error", err)
	} else if expired > 0 {
		if o.opts.Metrics != nil {
			o.opts.Metrics.ActiveSessions.Sub(float64(expired))
		}
		o.opts.Logger.Debug("expired sessions removed", "count", expired)
	}

	discarded, removed, err := o.proposals.Prune(ctx, now, o.opts.ProposalPendingTTL, o.opts.ProposalRetention)
	if err != nil {
		o.opts.Logger.Error("proposal prune failed", "error", err)
		return
	}
	if discarded > 0 || removed > 0 {
		o.opts.Logger.Debug("proposals pruned", "discarded", discarded, "removed", removed)
	}
}
