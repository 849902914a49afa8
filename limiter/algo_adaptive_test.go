package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubReputation 固定信誉分
type stubReputation struct {
	score float64
}

func (s *stubReputation) Get(ctx context.Context, key string) float64 {
	return s.score
}

// checkUntilRejected counts how many requests pass before the first
// rejection
func checkUntilRejected(t *testing.T, algo Algorithm, store Store, key string, cfg ResourceConfig) int {
	t.Helper()

	ctx := context.Background()
	for i := 0; i < int(cfg.Limit)*3; i++ {
		d, err := algo.Check(ctx, store, key, cfg)
		require.NoError(t, err)
		if !d.Allowed {
			return i
		}
	}
	t.Fatalf("never rejected within %d requests", cfg.Limit*3)
	return 0
}

func TestAdaptive_NeutralIsBaseLimit(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	// load=0, reputation=0.5 → effective = base
	algo := NewAdaptiveAlgorithm(StaticLoadProbe(0), &stubReputation{score: 0.5})
	cfg := ResourceConfig{
		Algorithm: string(AlgorithmAdaptive),
		Limit:     10,
		Window:    1 * time.Minute,
	}

	admitted := checkUntilRejected(t, algo, store, "k", cfg)
	assert.Equal(t, 10, admitted)
}

func TestAdaptive_FullLoadBadReputation(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	// load=1, reputation=0 → effective = round(10 × 0.5 × 0.5) = 3
	algo := NewAdaptiveAlgorithm(StaticLoadProbe(1), &stubReputation{score: 0})
	cfg := ResourceConfig{
		Algorithm: string(AlgorithmAdaptive),
		Limit:     10,
		Window:    1 * time.Minute,
	}

	admitted := checkUntilRejected(t, algo, store, "k", cfg)
	assert.Equal(t, 3, admitted)
}

func TestAdaptive_IdleGoodReputation(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	// load=0, reputation=1 → effective = round(10 × 1 × 1.5) = 15
	algo := NewAdaptiveAlgorithm(StaticLoadProbe(0), &stubReputation{score: 1})
	cfg := ResourceConfig{
		Algorithm: string(AlgorithmAdaptive),
		Limit:     10,
		Window:    1 * time.Minute,
	}

	admitted := checkUntilRejected(t, algo, store, "k", cfg)
	assert.Equal(t, 15, admitted)
}

func TestAdaptive_EffectiveLimitFloorIsOne(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	// 极端缩放也至少放行 1 个
	algo := NewAdaptiveAlgorithm(StaticLoadProbe(1), &stubReputation{score: 0})
	cfg := ResourceConfig{
		Algorithm: string(AlgorithmAdaptive),
		Limit:     1,
		Window:    1 * time.Minute,
	}

	admitted := checkUntilRejected(t, algo, store, "k", cfg)
	assert.Equal(t, 1, admitted)
}

func TestAdaptive_NilDependenciesFallBack(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	// 无探针按零负载，无信誉按中性分 → effective = base
	algo := NewAdaptiveAlgorithm(nil, nil)
	cfg := ResourceConfig{
		Algorithm: string(AlgorithmAdaptive),
		Limit:     4,
		Window:    1 * time.Minute,
	}

	admitted := checkUntilRejected(t, algo, store, "k", cfg)
	assert.Equal(t, 4, admitted)
}

func TestAdaptive_DecisionCarriesEffectiveLimit(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	algo := NewAdaptiveAlgorithm(StaticLoadProbe(1), &stubReputation{score: 0})
	cfg := ResourceConfig{
		Algorithm: string(AlgorithmAdaptive),
		Limit:     10,
		Window:    1 * time.Minute,
	}

	d, err := algo.Check(context.Background(), store, "k", cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.Limit, "决策里带的是缩放后的阈值")
}

func TestStaticLoadProbe_Clamped(t *testing.T) {
	assert.Equal(t, 1.0, StaticLoadProbe(3).LoadFactor())
	assert.Equal(t, 0.0, StaticLoadProbe(-1).LoadFactor())
	assert.Equal(t, 0.4, StaticLoadProbe(0.4).LoadFactor())
}

func TestSampledLoadProbe(t *testing.T) {
	probe, err := NewSampledLoadProbe(50*time.Millisecond, func() float64 { return 0.7 })
	require.NoError(t, err)
	defer probe.Close()

	// 创建时立即采过一次样
	assert.Equal(t, 0.7, probe.LoadFactor())
}

func TestSampledLoadProbe_RequiresSampleFunc(t *testing.T) {
	_, err := NewSampledLoadProbe(time.Second, nil)
	assert.Error(t, err)
}
