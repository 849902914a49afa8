package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFixedSetup(t *testing.T) (*fakeClock, Store, *fixedWindowAlgorithm) {
	t.Helper()

	clock := newFakeClock()
	store := NewMemoryStore().(*memoryStore)
	store.now = clock.Now
	t.Cleanup(func() { store.Close() })

	algo := &fixedWindowAlgorithm{now: clock.Now}
	return clock, store, algo
}

func TestFixedWindow_CountWithinWindow(t *testing.T) {
	_, store, algo := newTestFixedSetup(t)
	ctx := context.Background()

	cfg := ResourceConfig{
		Algorithm: string(AlgorithmFixedWindow),
		Limit:     3,
		Window:    10 * time.Second,
	}

	for i := 0; i < 3; i++ {
		d, err := algo.Check(ctx, store, "k", cfg)
		require.NoError(t, err)
		require.True(t, d.Allowed, "第%d个请求应该通过", i+1)
		assert.Equal(t, int64(i+1), d.CurrentCount)
	}

	d, err := algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "第4个请求应该被拒绝")
	assert.Equal(t, int64(0), d.Remaining)
}

func TestFixedWindow_ResetAtWindowBoundary(t *testing.T) {
	clock, store, algo := newTestFixedSetup(t)
	ctx := context.Background()

	cfg := ResourceConfig{
		Algorithm: string(AlgorithmFixedWindow),
		Limit:     2,
		Window:    10 * time.Second,
	}

	for i := 0; i < 2; i++ {
		d, err := algo.Check(ctx, store, "k", cfg)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// ResetAt 指向下一个窗口边界
	windowSec := int64(cfg.Window.Seconds())
	windowStart := clock.Now().Unix() / windowSec * windowSec
	assert.Equal(t, time.Unix(windowStart+windowSec, 0), d.ResetAt)

	// 跨过边界后计数归零
	clock.Advance(10 * time.Second)
	d, err = algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "新窗口应该允许请求")
	assert.Equal(t, int64(1), d.CurrentCount)
}

// 边界突发是固定窗口的已知特性：窗口边界两侧合计最多放行 2*limit 个请求
func TestFixedWindow_BoundaryBurst(t *testing.T) {
	clock, store, algo := newTestFixedSetup(t)
	ctx := context.Background()

	cfg := ResourceConfig{
		Algorithm: string(AlgorithmFixedWindow),
		Limit:     3,
		Window:    10 * time.Second,
	}

	// 贴着窗口尾部用满配额
	windowSec := int64(cfg.Window.Seconds())
	windowStart := clock.Now().Unix() / windowSec * windowSec
	clock.t = time.Unix(windowStart+windowSec-1, 0)

	for i := 0; i < 3; i++ {
		d, err := algo.Check(ctx, store, "k", cfg)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// 跨过边界立即又有满额配额
	clock.Advance(2 * time.Second)
	for i := 0; i < 3; i++ {
		d, err := algo.Check(ctx, store, "k", cfg)
		require.NoError(t, err)
		require.True(t, d.Allowed, "新窗口第%d个请求应该通过", i+1)
	}
}

func TestFixedWindow_SubSecondWindow(t *testing.T) {
	clock, store, algo := newTestFixedSetup(t)
	ctx := context.Background()

	cfg := ResourceConfig{
		Algorithm: string(AlgorithmFixedWindow),
		Limit:     2,
		Window:    500 * time.Millisecond,
	}
	require.NoError(t, cfg.Validate())

	// 对齐到 500ms 窗口边界
	clock.t = time.Unix(300, 0)

	for i := 0; i < 2; i++ {
		d, err := algo.Check(ctx, store, "k", cfg)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	assert.Equal(t, time.Unix(300, 0).Add(500*time.Millisecond), d.ResetAt)
	assert.Equal(t, 500*time.Millisecond, d.RetryAfter)

	// 下一个 500ms 窗口配额恢复
	clock.Advance(500 * time.Millisecond)
	d, err = algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.CurrentCount)
}

// 非整秒窗口不能被截断成整秒
func TestFixedWindow_FractionalSecondWindow(t *testing.T) {
	clock, store, algo := newTestFixedSetup(t)
	ctx := context.Background()

	cfg := ResourceConfig{
		Algorithm: string(AlgorithmFixedWindow),
		Limit:     1,
		Window:    1500 * time.Millisecond,
	}

	// 300s 是 1.5s 的整数倍，窗口区间为 [300s, 301.5s)
	clock.t = time.Unix(300, 0)

	d, err := algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// 1s 后仍在同一窗口；若窗口被截成 1s 这里会错误地放行
	clock.Advance(1 * time.Second)
	d, err = algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Unix(300, 0).Add(1500*time.Millisecond), d.ResetAt)

	// 跨过 301.5s 边界后进入新窗口
	clock.Advance(600 * time.Millisecond)
	d, err = algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestFixedWindow_Reset(t *testing.T) {
	_, store, algo := newTestFixedSetup(t)
	ctx := context.Background()

	cfg := ResourceConfig{
		Algorithm: string(AlgorithmFixedWindow),
		Limit:     1,
		Window:    10 * time.Second,
	}

	d, err := algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	require.NoError(t, algo.Reset(ctx, store, "k", cfg))

	d, err = algo.Check(ctx, store, "k", cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "重置当前窗口后应该允许请求")
}
