package limiter

import (
	"context"
	"time"
)

// Store interface (Strategy Pattern)
//
// The composite operations (FixedWindowIncr, SlidingWindowAdmit,
// TokenBucketTake) are the atomic multi-step scripts the algorithms rely
// on: the Redis store runs each as a single server-side Lua script, the
// memory store runs each inside one mutex critical section. Concurrent
// callers can never interleave inside them.
type Store interface {
	// Get retrieve value (ErrKeyNotFound when absent)
	Get(ctx context.Context, key string) (string, error)

	// Set value (with expiration time)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// FixedWindowIncr atomically increments the counter at key, arming
	// ttl when the key is created, and returns the post-increment count.
	FixedWindowIncr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// SlidingWindowAdmit atomically prunes log entries older than
	// now-window, counts the survivors, inserts an entry at now and
	// refreshes the key expiry. When the pre-insertion count has reached
	// limit the inserted entry is removed again so rejected attempts do
	// not occupy a slot.
	SlidingWindowAdmit(ctx context.Context, key string, limit int64, window time.Duration, now time.Time) (*WindowSlot, error)

	// TokenBucketTake atomically refills the bucket at key (rate tokens
	// per second, capped at capacity, full when absent), takes one token
	// when at least one is available, and persists the state with ttl on
	// both outcomes so refill continues across a streak of rejections.
	TokenBucketTake(ctx context.Context, key string, capacity, rate float64, ttl time.Duration, now time.Time) (*BucketState, error)

	// Get remaining TTL (Time To Live) duration
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Exists Check if key exists
	Exists(ctx context.Context, key string) (bool, error)

	// Del delete keys
	Del(ctx context.Context, keys ...string) error

	// Close connection
	Close() error
}

// WindowSlot is the result of one sliding-window admission step.
type WindowSlot struct {
	// Allowed reports whether the entry was kept.
	Allowed bool

	// Count is the number of entries in the window before insertion.
	Count int64

	// OldestAt is the timestamp of the oldest surviving entry
	// (zero when the log is empty).
	OldestAt time.Time
}

// BucketState is the result of one token-bucket take.
type BucketState struct {
	// Allowed reports whether a token was taken.
	Allowed bool

	// Tokens is the token count after refill and (when allowed) the take.
	Tokens float64
}

// StoreType storage type
type StoreType string

const (
	// StoreTypeMemory Memory Storage
	StoreTypeMemory StoreType = "memory"

	// StoreTypeRedis Redis storage
	StoreTypeRedis StoreType = "redis"
)
