package limiter

import (
	"context"
	"fmt"
	"math"
	"time"
)

// tokenBucketAlgorithm 令牌桶算法实现
//
// capacity = limit, refill rate = limit/window tokens per second. Short
// bursts up to capacity are admitted while the long-run average rate is
// enforced — the behavioral difference from the sliding window, which never
// admits more than limit events in any trailing window. The refill and
// decrement run as one atomic store operation; a read-modify-write over
// separate keys would let two concurrent checks both observe a stale token
// count.
type tokenBucketAlgorithm struct {
	now func() time.Time
}

// NewTokenBucketAlgorithm 创建令牌桶算法
func NewTokenBucketAlgorithm() Algorithm {
	return &tokenBucketAlgorithm{now: time.Now}
}

// Name 返回算法名称
func (a *tokenBucketAlgorithm) Name() string {
	return string(AlgorithmTokenBucket)
}

// Check 检查是否允许请求
func (a *tokenBucketAlgorithm) Check(ctx context.Context, store Store, key string, cfg ResourceConfig) (*Decision, error) {
	now := a.now()

	capacity := float64(cfg.Limit)
	rate := capacity / cfg.Window.Seconds()

	// Abandoned buckets self-clean after two idle windows.
	state, err := store.TokenBucketTake(ctx, a.bucketKey(key), capacity, rate, 2*cfg.Window, now)
	if err != nil {
		return nil, fmt.Errorf("token bucket take failed: %w", err)
	}

	resetAt := now.Add(time.Duration((capacity - state.Tokens) / rate * float64(time.Second)))

	if state.Allowed {
		return &Decision{
			Allowed:      true,
			Remaining:    int64(math.Floor(state.Tokens)),
			Limit:        cfg.Limit,
			CurrentCount: cfg.Limit - int64(math.Floor(state.Tokens)),
			ResetAt:      resetAt,
		}, nil
	}

	// 计算重试时间：等到下一个完整令牌
	retryAfter := time.Duration((1 - state.Tokens) / rate * float64(time.Second))

	return &Decision{
		Allowed:      false,
		Remaining:    0,
		Limit:        cfg.Limit,
		CurrentCount: cfg.Limit,
		ResetAt:      resetAt,
		RetryAfter:   maxDuration(0, retryAfter),
	}, nil
}

// Reset 重置状态
func (a *tokenBucketAlgorithm) Reset(ctx context.Context, store Store, key string, _ ResourceConfig) error {
	return store.Del(ctx, a.bucketKey(key))
}

// bucketKey 返回令牌桶存储键
func (a *tokenBucketAlgorithm) bucketKey(key string) string {
	return fmt.Sprintf("bucket:%s", key)
}
