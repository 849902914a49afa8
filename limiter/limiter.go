// Package limiter provides distributed request admission control.
//
// Design philosophy:
//   - All mutable counter state lives in the shared Store; the in-process
//     code is a stateless strategy dispatcher
//   - Every check is a single atomic multi-step store operation, so two
//     concurrent checks for one key can never both read a stale count
//   - Event-driven, the application layer can subscribe to all decisions
//   - Fail open by default: an unreachable store admits traffic instead of
//     blocking it (configurable per deployment)
//   - Supports four algorithms: sliding window, token bucket, fixed window,
//     adaptive
//   - Supports two stores: memory, Redis
package limiter

import (
	"context"
	"time"
)

// Limiter is the admission contract consumed by the request boundary.
type Limiter interface {
	// Check evaluates one request against the named resource's configured
	// limit, counting it under the given scope key.
	Check(ctx context.Context, resource string, key string) (*Decision, error)

	// CheckWith evaluates one request with caller-supplied configuration.
	CheckWith(ctx context.Context, key string, cfg ResourceConfig) (*Decision, error)

	// UpdateReputation posts a behavior observation for a scope key.
	// It never blocks the admission path.
	UpdateReputation(key string, behaviorScore float64)

	// Reputation returns the current behavior score for a scope key.
	Reputation(ctx context.Context, key string) float64

	// GetEventBus returns the event bus for subscribing to decisions.
	GetEventBus() EventBus

	// Reset clears the counter state for one key under a resource.
	Reset(resource string, key string)

	// IsEnabled reports whether admission control is active.
	IsEnabled() bool

	// Close releases the limiter's resources.
	Close() error
}

// Decision is the outcome of a single admission check. It is produced per
// request and never persisted.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is the quota left in the current window (0 when rejected).
	Remaining int64

	// Limit is the quota the decision was made against. For the adaptive
	// algorithm this is the effective limit, not the configured base.
	Limit int64

	// CurrentCount is the number of events accounted in the window,
	// including this one when allowed.
	CurrentCount int64

	// ResetAt is when the quota next becomes available.
	ResetAt time.Time

	// RetryAfter is the suggested wait before retrying (valid when
	// Allowed=false).
	RetryAfter time.Duration
}
