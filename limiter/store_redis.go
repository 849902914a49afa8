package limiter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes, counts, inserts and expires in one atomic
// round trip. A rejected attempt removes its own entry so it never
// occupies a slot. Scores are epoch microseconds; the prune drops only
// entries strictly older than now-window, an entry at the exact edge
// still occupies its slot.
//
// KEYS[1] window key
// ARGV[1] now (µs)  ARGV[2] window (µs)  ARGV[3] limit
// ARGV[4] key ttl (s)  ARGV[5] unique member suffix
//
// Returns {allowed, pre-insertion count, oldest surviving score (µs)}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local member = ARGV[1] .. '-' .. ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window - 1)
local count = redis.call('ZCARD', key)
redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, ttl)

if count < limit then
    return {1, count, 0}
end

redis.call('ZREM', key, member)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = 0
if oldest[2] then
    oldestScore = tonumber(oldest[2])
end
return {0, count, oldestScore}
`)

// tokenBucketScript refills and decrements in one atomic round trip. State
// is persisted with a TTL on both outcomes so refill continues across a
// streak of rejections. Times are epoch seconds as floats.
//
// KEYS[1] bucket key
// ARGV[1] capacity  ARGV[2] refill rate (tokens/s)  ARGV[3] now (s)
// ARGV[4] state ttl (s)
//
// Returns {allowed, tokens-after as string}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokens = capacity
local last = now
local state = redis.call('HMGET', key, 'tokens', 'last_refill')
if state[1] then
    tokens = tonumber(state[1])
    last = tonumber(state[2])
end

local elapsed = now - last
if elapsed < 0 then
    elapsed = 0
end
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('EXPIRE', key, ttl)
return {allowed, tostring(tokens)}
`)

// fixedWindowScript increments and arms the expiry when the counter is
// created, in one atomic round trip.
//
// KEYS[1] counter key  ARGV[1] ttl (s)
//
// Returns the post-increment count.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RedisStore Redis storage implementation
type RedisStore struct {
	client    *redis.Client
	keyPrefix string        // key prefix
	opTimeout time.Duration // per round-trip bound
}

// NewRedisStore creates Redis storage
func NewRedisStore(client *redis.Client, keyPrefix string, opTimeout time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "limiter:"
	}
	if opTimeout <= 0 {
		opTimeout = 50 * time.Millisecond
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		opTimeout: opTimeout,
	}
}

// buildKey Construct the complete key
func (s *RedisStore) buildKey(key string) string {
	return s.keyPrefix + key
}

// bound applies the store's round-trip timeout
func (s *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// Get Retrieve value
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, s.buildKey(key)).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: redis get: %v", ErrStoreUnavailable, err)
	}
	return val, nil
}

// Set the value
func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.buildKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// FixedWindowIncr atomic increment-and-expire
func (s *RedisStore) FixedWindowIncr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := fixedWindowScript.Run(ctx, s.client,
		[]string{s.buildKey(key)},
		ttlSeconds(ttl),
	).Result()
	if err != nil {
		return 0, s.scriptError("fixed window", err)
	}

	count, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: fixed window: unexpected reply %T", ErrScriptFailed, res)
	}
	return count, nil
}

// SlidingWindowAdmit one atomic prune-count-insert round trip
func (s *RedisStore) SlidingWindowAdmit(ctx context.Context, key string, limit int64, window time.Duration, now time.Time) (*WindowSlot, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.buildKey(key)},
		now.UnixMicro(),
		window.Microseconds(),
		limit,
		ttlSeconds(window+time.Second),
		uuid.New().String(),
	).Result()
	if err != nil {
		return nil, s.scriptError("sliding window", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return nil, fmt.Errorf("%w: sliding window: unexpected reply %T", ErrScriptFailed, res)
	}

	slot := &WindowSlot{
		Allowed: asInt64(vals[0]) == 1,
		Count:   asInt64(vals[1]),
	}
	if oldest := asInt64(vals[2]); oldest > 0 {
		slot.OldestAt = time.UnixMicro(oldest)
	}
	return slot, nil
}

// TokenBucketTake one atomic refill-and-decrement round trip
func (s *RedisStore) TokenBucketTake(ctx context.Context, key string, capacity, rate float64, ttl time.Duration, now time.Time) (*BucketState, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := tokenBucketScript.Run(ctx, s.client,
		[]string{s.buildKey(key)},
		capacity,
		rate,
		float64(now.UnixMicro())/1e6,
		ttlSeconds(ttl),
	).Result()
	if err != nil {
		return nil, s.scriptError("token bucket", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return nil, fmt.Errorf("%w: token bucket: unexpected reply %T", ErrScriptFailed, res)
	}

	tokens, err := strconv.ParseFloat(fmt.Sprint(vals[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: token bucket: parse tokens: %v", ErrScriptFailed, err)
	}

	return &BucketState{
		Allowed: asInt64(vals[0]) == 1,
		Tokens:  tokens,
	}, nil
}

// TTL get the remaining time-to-live for the key
// Returns 0 if key doesn't exist or has no TTL
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ttl, err := s.client.TTL(ctx, s.buildKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: redis ttl: %v", ErrStoreUnavailable, err)
	}
	// Redis returns -2 if key doesn't exist, -1 if no TTL
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Exists check if key exists
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	count, err := s.client.Exists(ctx, s.buildKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis exists: %v", ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

// Del delete keys
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.buildKey(key)
	}
	if err := s.client.Del(ctx, fullKeys...).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close Close the connection (RedisStore does not own the client)
func (s *RedisStore) Close() error {
	return nil
}

// scriptError separates connectivity loss from script execution failure so
// the two can be alerted on independently.
func (s *RedisStore) scriptError(op string, err error) error {
	if isConnectivityError(err) {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrScriptFailed, op, err)
}

// isConnectivityError reports timeouts, cancellations and network faults
func isConnectivityError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ttlSeconds converts to whole seconds for EXPIRE, minimum 1
func ttlSeconds(ttl time.Duration) int64 {
	sec := int64(ttl.Seconds())
	if sec < 1 {
		sec = 1
	}
	return sec
}

// asInt64 normalizes Lua number replies
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
