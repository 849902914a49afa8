package limiter

import (
	"context"
	"time"
)

// Algorithm 限流算法接口（策略模式）
type Algorithm interface {
	// Check runs one admission check for key against cfg.
	Check(ctx context.Context, store Store, key string, cfg ResourceConfig) (*Decision, error)

	// Reset 重置状态
	Reset(ctx context.Context, store Store, key string, cfg ResourceConfig) error

	// Name 返回算法名称
	Name() string
}

// AlgorithmType 算法类型
type AlgorithmType string

const (
	// AlgorithmSlidingWindow 滑动窗口算法
	AlgorithmSlidingWindow AlgorithmType = "sliding_window"

	// AlgorithmTokenBucket 令牌桶算法
	AlgorithmTokenBucket AlgorithmType = "token_bucket"

	// AlgorithmFixedWindow 固定窗口算法
	AlgorithmFixedWindow AlgorithmType = "fixed_window"

	// AlgorithmAdaptive 自适应限流算法
	AlgorithmAdaptive AlgorithmType = "adaptive"
)

// GetAlgorithm 根据配置获取算法实例
//
// The adaptive algorithm composes the load probe and reputation store on
// top of the sliding window; the others ignore both.
func GetAlgorithm(cfg ResourceConfig, probe LoadProbe, reputation ReputationReader) Algorithm {
	switch AlgorithmType(cfg.Algorithm) {
	case AlgorithmSlidingWindow:
		return NewSlidingWindowAlgorithm()
	case AlgorithmTokenBucket:
		return NewTokenBucketAlgorithm()
	case AlgorithmFixedWindow:
		return NewFixedWindowAlgorithm()
	case AlgorithmAdaptive:
		return NewAdaptiveAlgorithm(probe, reputation)
	default:
		// 默认使用滑动窗口
		return NewSlidingWindowAlgorithm()
	}
}

// maxInt64 返回最大的int64值
func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// maxDuration 返回time.Duration的最大值
func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
