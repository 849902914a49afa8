package limiter

import (
	"time"
)

// Rate limiter configuration
type Config struct {
	// Enabled whether to enable rate limiting (false means direct passthrough)
	Enabled bool `mapstructure:"enabled"`

	// StoreType storage type: memory, redis
	StoreType string `mapstructure:"store_type"`

	// FailOpen admits requests when the store cannot be evaluated.
	// Defaults to true; switch off only for endpoints where strictness
	// outweighs availability.
	FailOpen bool `mapstructure:"fail_open"`

	// Redis configuration (required when StoreType is redis)
	Redis RedisStoreConfig `mapstructure:"redis"`

	// Reputation behavior-score configuration
	Reputation ReputationConfig `mapstructure:"reputation"`

	// EventBusBuffer event bus buffer size
	EventBusBuffer int `mapstructure:"event_bus_buffer"`

	// Scope default scope kind for middleware key resolution
	// Optional values: global, ip, user, endpoint, api_credential
	Scope string `mapstructure:"scope"`

	// SkipPaths list of paths to bypass rate limiting (for middleware)
	SkipPaths []string `mapstructure:"skip_paths"`

	// Default resource configuration (applied to unconfigured resources
	// when valid)
	Default ResourceConfig `mapstructure:"default"`

	// Resources configuration level (overrides Default)
	Resources map[string]ResourceConfig `mapstructure:"resources"`
}

// ResourceConfig resource-level configuration, supplied per call and never
// persisted.
type ResourceConfig struct {
	// Algorithm: sliding_window, token_bucket, fixed_window, adaptive
	Algorithm string `mapstructure:"algorithm"`

	// Limit maximum admitted events within the window
	Limit int64 `mapstructure:"limit"`

	// Window accounting period
	Window time.Duration `mapstructure:"window"`
}

// RedisStoreConfig Redis存储配置
type RedisStoreConfig struct {
	// KeyPrefix Redis key prefix (default "limiter:")
	KeyPrefix string `mapstructure:"key_prefix"`

	// OpTimeout bounds every store round trip (default 50ms). On timeout
	// the check fails open instead of stalling the caller.
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

// ReputationConfig 信誉分配置
type ReputationConfig struct {
	// Alpha EMA smoothing factor (default 0.1)
	Alpha float64 `mapstructure:"alpha"`

	// TTL record lifetime, refreshed on every update (default 30 days)
	TTL time.Duration `mapstructure:"ttl"`
}

// Return default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		StoreType:      string(StoreTypeMemory),
		FailOpen:       true,
		EventBusBuffer: 500,
		Scope:          string(ScopeIP),
		SkipPaths:      []string{},
		Reputation:     DefaultReputationConfig(),
		Default:        DefaultResourceConfig(),
		Resources:      make(map[string]ResourceConfig),
	}
}

// Returns default resource configuration
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		Algorithm: string(AlgorithmSlidingWindow),
		Limit:     100,
		Window:    1 * time.Minute,
	}
}

// DefaultReputationConfig returns the neutral reputation settings.
func DefaultReputationConfig() ReputationConfig {
	return ReputationConfig{
		Alpha: 0.1,
		TTL:   30 * 24 * time.Hour,
	}
}

// Validate configuration.
//
// Malformed configuration is rejected here, at setup time; per-request
// checks never re-validate.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil // not enabled, verification not required
	}

	if c.EventBusBuffer <= 0 {
		c.EventBusBuffer = 500
	}

	// Validate storage type
	if c.StoreType != string(StoreTypeMemory) && c.StoreType != string(StoreTypeRedis) {
		return &ValidationError{Field: "store_type", Message: "must be 'memory' or 'redis'"}
	}

	if c.StoreType == string(StoreTypeRedis) {
		if c.Redis.KeyPrefix == "" {
			c.Redis.KeyPrefix = "limiter:"
		}
		if c.Redis.OpTimeout <= 0 {
			c.Redis.OpTimeout = 50 * time.Millisecond
		}
	}

	if c.Scope == "" {
		c.Scope = string(ScopeIP)
	}
	if !ScopeKind(c.Scope).Valid() {
		return &ValidationError{Field: "scope", Message: "unknown scope kind"}
	}

	if c.Reputation.Alpha == 0 {
		c.Reputation.Alpha = 0.1
	}
	if c.Reputation.Alpha < 0 || c.Reputation.Alpha > 1 {
		return &ValidationError{Field: "reputation.alpha", Message: "must be between 0.0 and 1.0"}
	}
	if c.Reputation.TTL <= 0 {
		c.Reputation.TTL = 30 * 24 * time.Hour
	}

	// Verify default configuration only when it is set at all
	if !c.Default.isEmpty() {
		if err := c.Default.Validate(); err != nil {
			return err
		}
	}

	// Merge and validate resource configurations
	for name, cfg := range c.Resources {
		var merged ResourceConfig
		if !c.Default.isEmpty() {
			merged = c.Default.Merge(cfg)
		} else {
			merged = cfg
		}
		c.Resources[name] = merged

		if err := merged.Validate(); err != nil {
			return &ValidationError{
				Resource: name,
				Err:      err,
			}
		}
	}

	return nil
}

// Merge merge configuration (override default values)
func (rc ResourceConfig) Merge(override ResourceConfig) ResourceConfig {
	result := rc

	// Only cover non-zero values
	if override.Algorithm != "" {
		result.Algorithm = override.Algorithm
	}
	if override.Limit > 0 {
		result.Limit = override.Limit
	}
	if override.Window > 0 {
		result.Window = override.Window
	}

	return result
}

// checks if ResourceConfig is an empty configuration
func (rc ResourceConfig) isEmpty() bool {
	return rc.Algorithm == "" && rc.Limit == 0 && rc.Window == 0
}

// Validate resource configuration
func (rc *ResourceConfig) Validate() error {
	algo := AlgorithmType(rc.Algorithm)
	if algo != AlgorithmSlidingWindow && algo != AlgorithmTokenBucket &&
		algo != AlgorithmFixedWindow && algo != AlgorithmAdaptive {
		return &ValidationError{Field: "algorithm", Message: "invalid algorithm type"}
	}

	if rc.Limit <= 0 {
		return &ValidationError{Field: "limit", Message: "must be > 0"}
	}
	if rc.Window <= 0 {
		return &ValidationError{Field: "window", Message: "must be > 0"}
	}

	return nil
}

// GetResourceConfig Retrieve resource configuration (prioritize
// resource-level configuration, fallback to default)
func (c *Config) GetResourceConfig(resource string) ResourceConfig {
	if cfg, ok := c.Resources[resource]; ok {
		return cfg
	}
	return c.Default
}
