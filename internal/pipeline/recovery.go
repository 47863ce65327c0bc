package pipeline

import (
	"context"
	"log/slog"
	"time"

	"tweetloom/internal/logging"
	"tweetloom/internal/services"
	"tweetloom/internal/store"
)

// Recovery returns items whose worker died mid-claim to a runnable state.
// Stuck transcriptions go back to discovered without consuming an attempt;
// stuck generations go to failed so the live slot is vacated for a fresh
// claim. Each sweep reclaims a given stall exactly once.
type Recovery struct {
	store   *store.Store
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecovery constructs a sweep with the heartbeat timeout after which a
// claim counts as dead.
func NewRecovery(st *store.Store, timeout time.Duration, logger *slog.Logger) *Recovery {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recovery{
		store:   st,
		logger:  logging.NewComponentLogger(logger, "recovery"),
		timeout: timeout,
	}
}

// Sweep reclaims stale videos and generations and reports how many of each.
func (r *Recovery) Sweep(ctx context.Context) (int64, int64, error) {
	if r.timeout <= 0 {
		return 0, 0, nil
	}
	cutoff := time.Now().UTC().Add(-r.timeout)

	videos, err := r.store.ReclaimStaleVideos(ctx, cutoff)
	if err != nil {
		return 0, 0, services.Wrap(services.ErrStorage, "recover", "sweep", "reclaim stale videos", err)
	}
	generations, err := r.store.ReclaimStaleGenerations(ctx, cutoff)
	if err != nil {
		return videos, 0, services.Wrap(services.ErrStorage, "recover", "sweep", "reclaim stale generations", err)
	}

	if videos > 0 || generations > 0 {
		r.logger.Info("reclaimed stale claims",
			logging.Int64("videos", videos),
			logging.Int64("generations", generations))
	}
	return videos, generations, nil
}
