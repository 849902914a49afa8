package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memoryStore memory storage implementation
//
// Single-process backend for development and tests. One mutex guards every
// map, so the composite operations are atomic the same way the Redis
// scripts are.
type memoryStore struct {
	mu       sync.Mutex
	data     map[string]*memoryValue
	counters map[string]*memoryCounter
	windows  map[string]*memoryWindow
	buckets  map[string]*memoryBucket
	closed   bool
	done     chan struct{}
	now      func() time.Time
}

// memory value
type memoryValue struct {
	data     string
	expireAt time.Time
}

// memoryCounter fixed-window counter
type memoryCounter struct {
	count    int64
	expireAt time.Time
}

// memoryWindow sliding-window event log (timestamps in insertion order)
type memoryWindow struct {
	entries  []time.Time
	expireAt time.Time
}

// memoryBucket token-bucket state
type memoryBucket struct {
	tokens     float64
	lastRefill time.Time
	expireAt   time.Time
}

// Create memory store
func NewMemoryStore() Store {
	store := &memoryStore{
		data:     make(map[string]*memoryValue),
		counters: make(map[string]*memoryCounter),
		windows:  make(map[string]*memoryWindow),
		buckets:  make(map[string]*memoryBucket),
		done:     make(chan struct{}),
		now:      time.Now,
	}

	// Start cleanup goroutine
	go store.cleanupLoop(1 * time.Minute)

	return store
}

// Get Retrieve value
func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("%w: store is closed", ErrStoreUnavailable)
	}

	val, exists := s.data[key]
	if !exists || s.expired(val.expireAt) {
		return "", ErrKeyNotFound
	}

	return val.data, nil
}

// Set configuration value
func (s *memoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: store is closed", ErrStoreUnavailable)
	}

	var expireAt time.Time
	if ttl > 0 {
		expireAt = s.now().Add(ttl)
	}

	s.data[key] = &memoryValue{
		data:     value,
		expireAt: expireAt,
	}

	return nil
}

// FixedWindowIncr atomic increment-and-expire
func (s *memoryStore) FixedWindowIncr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("%w: store is closed", ErrStoreUnavailable)
	}

	counter, exists := s.counters[key]
	if !exists || s.expired(counter.expireAt) {
		counter = &memoryCounter{expireAt: s.now().Add(ttl)}
		s.counters[key] = counter
	}
	counter.count++

	return counter.count, nil
}

// SlidingWindowAdmit prune + count + insert in one critical section
func (s *memoryStore) SlidingWindowAdmit(ctx context.Context, key string, limit int64, window time.Duration, now time.Time) (*WindowSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: store is closed", ErrStoreUnavailable)
	}

	log, exists := s.windows[key]
	if !exists || s.expired(log.expireAt) {
		log = &memoryWindow{}
		s.windows[key] = log
	}

	// Prune entries strictly older than the trailing window; an entry at
	// exactly now-window still occupies its slot
	cutoff := now.Add(-window)
	kept := log.entries[:0]
	for _, at := range log.entries {
		if !at.Before(cutoff) {
			kept = append(kept, at)
		}
	}
	log.entries = kept
	log.expireAt = now.Add(window + time.Second)

	count := int64(len(log.entries))
	if count < limit {
		log.entries = append(log.entries, now)
		return &WindowSlot{Allowed: true, Count: count}, nil
	}

	// Rejected attempts must not occupy a slot
	slot := &WindowSlot{Allowed: false, Count: count}
	if count > 0 {
		slot.OldestAt = log.entries[0]
	}
	return slot, nil
}

// TokenBucketTake refill-and-decrement in one critical section
func (s *memoryStore) TokenBucketTake(ctx context.Context, key string, capacity, rate float64, ttl time.Duration, now time.Time) (*BucketState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: store is closed", ErrStoreUnavailable)
	}

	bucket, exists := s.buckets[key]
	if !exists || s.expired(bucket.expireAt) {
		bucket = &memoryBucket{tokens: capacity, lastRefill: now}
		s.buckets[key] = bucket
	}

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	bucket.tokens = minFloat64(capacity, bucket.tokens+elapsed*rate)
	bucket.lastRefill = now
	bucket.expireAt = now.Add(ttl)

	state := &BucketState{}
	if bucket.tokens >= 1 {
		bucket.tokens--
		state.Allowed = true
	}
	state.Tokens = bucket.tokens

	return state, nil
}

// TTL get the remaining time-to-live for the key
func (s *memoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("%w: store is closed", ErrStoreUnavailable)
	}

	expireAt, ok := s.expiryOf(key)
	if !ok || expireAt.IsZero() {
		return 0, nil
	}
	ttl := expireAt.Sub(s.now())
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Exists check if key exists
func (s *memoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, fmt.Errorf("%w: store is closed", ErrStoreUnavailable)
	}

	expireAt, ok := s.expiryOf(key)
	if !ok {
		return false, nil
	}
	return !s.expired(expireAt), nil
}

// Del delete keys
func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: store is closed", ErrStoreUnavailable)
	}

	for _, key := range keys {
		delete(s.data, key)
		delete(s.counters, key)
		delete(s.windows, key)
		delete(s.buckets, key)
	}
	return nil
}

// Close 关闭存储
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// expiryOf looks the key up across all value kinds (caller holds the lock)
func (s *memoryStore) expiryOf(key string) (time.Time, bool) {
	if v, ok := s.data[key]; ok {
		return v.expireAt, true
	}
	if c, ok := s.counters[key]; ok {
		return c.expireAt, true
	}
	if w, ok := s.windows[key]; ok {
		return w.expireAt, true
	}
	if b, ok := s.buckets[key]; ok {
		return b.expireAt, true
	}
	return time.Time{}, false
}

// expired reports whether a deadline has passed (zero means no expiry)
func (s *memoryStore) expired(expireAt time.Time) bool {
	return !expireAt.IsZero() && s.now().After(expireAt)
}

// cleanupLoop periodically drops expired keys
func (s *memoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup 清理过期键
func (s *memoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	for key, v := range s.data {
		if s.expired(v.expireAt) {
			delete(s.data, key)
		}
	}
	for key, c := range s.counters {
		if s.expired(c.expireAt) {
			delete(s.counters, key)
		}
	}
	for key, w := range s.windows {
		if s.expired(w.expireAt) {
			delete(s.windows, key)
		}
	}
	for key, b := range s.buckets {
		if s.expired(b.expireAt) {
			delete(s.buckets, key)
		}
	}
}

// minFloat64 返回最小的float64值
func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
