package limiter

import (
	"context"
	"fmt"
	"time"
)

// sliding window algorithm implementation
//
// Exact accounting: a log entry per admitted event, pruned on every check.
// Any trailing window of cfg.Window seconds holds at most cfg.Limit events,
// with no burst beyond that. Storage grows O(limit) per key, bounded by the
// key expiry the store arms alongside each insert.
type slidingWindowAlgorithm struct {
	now func() time.Time
}

// Create new sliding window algorithm
func NewSlidingWindowAlgorithm() Algorithm {
	return &slidingWindowAlgorithm{now: time.Now}
}

// Name Returns the algorithm name
func (a *slidingWindowAlgorithm) Name() string {
	return string(AlgorithmSlidingWindow)
}

// Check check if the request is permitted
func (a *slidingWindowAlgorithm) Check(ctx context.Context, store Store, key string, cfg ResourceConfig) (*Decision, error) {
	now := a.now()

	slot, err := store.SlidingWindowAdmit(ctx, a.windowKey(key), cfg.Limit, cfg.Window, now)
	if err != nil {
		return nil, fmt.Errorf("sliding window admit failed: %w", err)
	}

	if slot.Allowed {
		return &Decision{
			Allowed:      true,
			Remaining:    cfg.Limit - slot.Count - 1,
			Limit:        cfg.Limit,
			CurrentCount: slot.Count + 1,
			ResetAt:      now.Add(cfg.Window),
		}, nil
	}

	// Rejected: the attempt does not occupy a slot, so the quota frees up
	// when the oldest surviving entry leaves the window.
	resetAt := now.Add(cfg.Window)
	if !slot.OldestAt.IsZero() {
		resetAt = slot.OldestAt.Add(cfg.Window)
	}

	return &Decision{
		Allowed:      false,
		Remaining:    0,
		Limit:        cfg.Limit,
		CurrentCount: slot.Count,
		ResetAt:      resetAt,
		RetryAfter:   maxDuration(0, resetAt.Sub(now)),
	}, nil
}

// Reset reset status
func (a *slidingWindowAlgorithm) Reset(ctx context.Context, store Store, key string, _ ResourceConfig) error {
	return store.Del(ctx, a.windowKey(key))
}

// windowKey returns the window storage key
func (a *slidingWindowAlgorithm) windowKey(key string) string {
	return fmt.Sprintf("window:%s", key)
}
