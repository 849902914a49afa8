package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBucketSetup(t *testing.T) (*fakeClock, Store, *tokenBucketAlgorithm) {
	t.Helper()

	clock := newFakeClock()
	store := NewMemoryStore().(*memoryStore)
	store.now = clock.Now
	t.Cleanup(func() { store.Close() })

	algo := &tokenBucketAlgorithm{now: clock.Now}
	return clock, store, algo
}

func TestTokenBucket_BurstUpToCapacity(t *testing.T) {
	_, store, algo := newTestBucketSetup(t)
	ctx := context.Background()

	cfg := ResourceConfig{
		Algorithm: string(AlgorithmTokenBucket),
		Limit:     10,
		Window:    10 * time.Second,
	}

	// A full bucket admits the whole burst at once
	for i := 0; i < 10; i++ {
		d, err := algo.Check(ctx, store, "k", cfg)
		require.NoError(t, err)
		require.True(t, d.Allowed, "第%d个请求应该通过", i+1)
	}

	d, err := algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "第11个请求应该被拒绝")
	assert.Equal(t, int64(0), d.Remaining)
}

func TestTokenBucket_RefillRate(t *testing.T) {
	clock, store, algo := newTestBucketSetup(t)
	ctx := context.Background()

	// rate = 10/10s = 1 token/s
	cfg := ResourceConfig{
		Algorithm: string(AlgorithmTokenBucket),
		Limit:     10,
		Window:    10 * time.Second,
	}

	for i := 0; i < 10; i++ {
		_, err := algo.Check(ctx, store, "k", cfg)
		require.NoError(t, err)
	}

	// 1 秒补 1 个令牌
	clock.Advance(1 * time.Second)
	d, err := algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "补充一个令牌后应该通过")

	d, err = algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	// 下一个完整令牌还要约 1 秒
	assert.InDelta(t, 1000, float64(d.RetryAfter.Milliseconds()), 10)
}

func TestTokenBucket_RefillCapsAtCapacity(t *testing.T) {
	clock, store, algo := newTestBucketSetup(t)
	ctx := context.Background()

	cfg := ResourceConfig{
		Algorithm: string(AlgorithmTokenBucket),
		Limit:     5,
		Window:    5 * time.Second,
	}

	for i := 0; i < 5; i++ {
		_, err := algo.Check(ctx, store, "k", cfg)
		require.NoError(t, err)
	}

	// 长时间空闲后桶只回到容量，不会超发
	clock.Advance(1 * time.Hour)
	for i := 0; i < 5; i++ {
		d, err := algo.Check(ctx, store, "k", cfg)
		require.NoError(t, err)
		require.True(t, d.Allowed, "第%d个请求应该通过", i+1)
	}

	d, err := algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "超出容量应该被拒绝")
}

func TestTokenBucket_Reset(t *testing.T) {
	_, store, algo := newTestBucketSetup(t)
	ctx := context.Background()

	cfg := ResourceConfig{
		Algorithm: string(AlgorithmTokenBucket),
		Limit:     2,
		Window:    10 * time.Second,
	}

	for i := 0; i < 2; i++ {
		_, err := algo.Check(ctx, store, "k", cfg)
		require.NoError(t, err)
	}

	require.NoError(t, algo.Reset(ctx, store, "k", cfg))

	d, err := algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "重置后桶恢复满容量")
}
