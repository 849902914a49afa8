package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, string(StoreTypeMemory), cfg.StoreType)
	assert.True(t, cfg.FailOpen, "缺省必须失败放行")
	assert.Equal(t, string(ScopeIP), cfg.Scope)
	assert.Equal(t, 0.1, cfg.Reputation.Alpha)
	assert.Equal(t, 30*24*time.Hour, cfg.Reputation.TTL)
	assert.Equal(t, string(AlgorithmSlidingWindow), cfg.Default.Algorithm)
}

func TestConfig_ValidateDisabledSkips(t *testing.T) {
	cfg := Config{Enabled: false, StoreType: "bogus"}
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ValidateStoreType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.StoreType = "cassandra"

	err := cfg.Validate()
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "store_type", vErr.Field)
}

func TestConfig_ValidateScope(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Scope = "galaxy"

	err := cfg.Validate()
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "scope", vErr.Field)
}

func TestConfig_ValidateFillsRedisDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.StoreType = string(StoreTypeRedis)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "limiter:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 50*time.Millisecond, cfg.Redis.OpTimeout)
}

func TestConfig_ValidateAlpha(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Reputation.Alpha = 1.5

	err := cfg.Validate()
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "reputation.alpha", vErr.Field)
}

func TestConfig_ResourceMergesDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Default = ResourceConfig{
		Algorithm: string(AlgorithmSlidingWindow),
		Limit:     100,
		Window:    time.Minute,
	}
	// 只覆盖 limit，算法和窗口继承默认
	cfg.Resources = map[string]ResourceConfig{
		"api": {Limit: 20},
	}

	require.NoError(t, cfg.Validate())

	merged := cfg.GetResourceConfig("api")
	assert.Equal(t, int64(20), merged.Limit)
	assert.Equal(t, string(AlgorithmSlidingWindow), merged.Algorithm)
	assert.Equal(t, time.Minute, merged.Window)
}

func TestConfig_InvalidResourceNamed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Resources = map[string]ResourceConfig{
		"bad": {Algorithm: "quantum", Limit: 10, Window: time.Second},
	}

	err := cfg.Validate()
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "bad", vErr.Resource)
}

func TestResourceConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  ResourceConfig
		ok   bool
	}{
		{"valid", ResourceConfig{Algorithm: "sliding_window", Limit: 10, Window: time.Second}, true},
		{"bad algorithm", ResourceConfig{Algorithm: "nope", Limit: 10, Window: time.Second}, false},
		{"zero limit", ResourceConfig{Algorithm: "token_bucket", Limit: 0, Window: time.Second}, false},
		{"negative window", ResourceConfig{Algorithm: "fixed_window", Limit: 10, Window: -time.Second}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGetResourceConfig_FallsBackToDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default = ResourceConfig{Algorithm: "token_bucket", Limit: 7, Window: time.Second}

	got := cfg.GetResourceConfig("unknown")
	assert.Equal(t, int64(7), got.Limit)
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "ip:10.0.0.1", BuildKey(ScopeIP, "10.0.0.1"))
	assert.Equal(t, "user:42", BuildKey(ScopeUser, "42"))
	assert.Equal(t, "ip:anonymous", BuildKey(ScopeIP, ""))

	// 全局作用域把所有请求折叠到同一个键
	assert.Equal(t, "global:*", BuildKey(ScopeGlobal, "whatever"))
	assert.Equal(t, "global:*", BuildKey(ScopeGlobal, ""))
}

func TestScopeKind_Valid(t *testing.T) {
	assert.True(t, ScopeIP.Valid())
	assert.True(t, ScopeCredential.Valid())
	assert.False(t, ScopeKind("galaxy").Valid())
}
