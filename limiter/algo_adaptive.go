package limiter

import (
	"context"
	"math"
)

// adaptiveAlgorithm 自适应限流算法实现
//
// Policy layered on top of the sliding window rather than a fifth counter
// scheme: the base limit is scaled by current system load and by the scope
// key's behavior score, then the scaled limit is enforced with the exact
// accounting of the sliding window.
//
//	effectiveLimit = max(1, round(base × (1 − 0.5×load) × (0.5 + reputation)))
//
// Under full load the ceiling shrinks toward 50% of the configured limit;
// a reputation of 1.0 grants up to 1.5× the base, a reputation of 0.0 as
// little as 0.5×.
type adaptiveAlgorithm struct {
	probe      LoadProbe
	reputation ReputationReader
	window     Algorithm
}

// NewAdaptiveAlgorithm 创建自适应限流算法
func NewAdaptiveAlgorithm(probe LoadProbe, reputation ReputationReader) Algorithm {
	return &adaptiveAlgorithm{
		probe:      probe,
		reputation: reputation,
		window:     NewSlidingWindowAlgorithm(),
	}
}

// Name 返回算法名称
func (a *adaptiveAlgorithm) Name() string {
	return string(AlgorithmAdaptive)
}

// Check 检查是否允许请求
func (a *adaptiveAlgorithm) Check(ctx context.Context, store Store, key string, cfg ResourceConfig) (*Decision, error) {
	scaled := cfg
	scaled.Limit = a.effectiveLimit(ctx, key, cfg.Limit)
	scaled.Algorithm = string(AlgorithmSlidingWindow)

	return a.window.Check(ctx, store, key, scaled)
}

// Reset 重置状态
func (a *adaptiveAlgorithm) Reset(ctx context.Context, store Store, key string, cfg ResourceConfig) error {
	return a.window.Reset(ctx, store, key, cfg)
}

// effectiveLimit 根据系统负载与信誉分缩放基础阈值
func (a *adaptiveAlgorithm) effectiveLimit(ctx context.Context, key string, base int64) int64 {
	load := 0.0
	if a.probe != nil {
		load = clamp01(a.probe.LoadFactor())
	}

	reputation := reputationNeutral
	if a.reputation != nil {
		reputation = clamp01(a.reputation.Get(ctx, key))
	}

	scaled := float64(base) * (1 - 0.5*load) * (0.5 + reputation)
	return maxInt64(1, int64(math.Round(scaled)))
}

// clamp01 限制到 [0,1]
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
