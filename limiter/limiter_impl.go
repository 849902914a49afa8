package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coinfolio/go-admission/logger"
	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// reputationWorkers bounds the fire-and-forget feedback pool.
const reputationWorkers = 32

// reputationUpdateTimeout bounds one background reputation write.
const reputationUpdateTimeout = 1 * time.Second

// Rate Limiter Manager
//
// The Manager itself is stateless with respect to admission: every counter
// lives in the Store, so any number of processes sharing one Redis converge
// on the same decisions.
type Manager struct {
	config     Config
	store      Store
	limiters   map[string]*rateLimiter
	eventBus   EventBus
	probe      LoadProbe
	reputation *ReputationStore
	pool       *ants.Pool
	otel       *OTelMetrics
	logger     *logger.CtxZapLogger
	now        func() time.Time
	mu         sync.RWMutex

	// inlineMetrics aggregates CheckWith calls, which carry no resource name
	inlineMetrics MetricsCollector
}

// rateLimiter rate limiter for a single resource
type rateLimiter struct {
	resource  string
	config    ResourceConfig
	algorithm Algorithm
	metrics   MetricsCollector
}

// Create rate limiter manager
func NewManager(config Config) (*Manager, error) {
	return NewManagerWithLogger(config, nil, nil, nil)
}

// Create a rate limiter manager with logger, Redis client and load probe.
// redisClient is required only for the redis store type; probe only for the
// adaptive algorithm.
func NewManagerWithLogger(config Config, ctxLogger *logger.CtxZapLogger, redisClient *redis.Client, probe LoadProbe) (*Manager, error) {
	// Validate configuration (malformed config is fatal here, never
	// per-request)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if ctxLogger == nil {
		ctxLogger = logger.GetLogger("limiter")
	}

	ctx := context.Background()

	// If not enabled, return a passthrough manager
	if !config.Enabled {
		ctxLogger.DebugCtx(ctx, "limiter disabled, all requests pass through")
		return &Manager{
			config:   config,
			limiters: make(map[string]*rateLimiter),
			logger:   ctxLogger,
			now:      time.Now,
		}, nil
	}

	// Create storage
	var store Store
	switch StoreType(config.StoreType) {
	case StoreTypeMemory:
		store = NewMemoryStore()
		ctxLogger.DebugCtx(ctx, "using in-memory store")
	case StoreTypeRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis client is required for redis store")
		}
		store = NewRedisStore(redisClient, config.Redis.KeyPrefix, config.Redis.OpTimeout)
		ctxLogger.DebugCtx(ctx, "using redis store",
			zap.String("key_prefix", config.Redis.KeyPrefix),
			zap.Duration("op_timeout", config.Redis.OpTimeout))
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.StoreType)
	}

	// Pool for async reputation feedback; non-blocking so a full pool
	// drops the observation instead of stalling the response path
	pool, err := ants.NewPool(reputationWorkers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create reputation pool failed: %w", err)
	}

	eventBus := NewEventBus(config.EventBusBuffer)
	reputation := NewReputationStore(store, config.Reputation, ctxLogger)

	ctxLogger.DebugCtx(ctx, "limiter manager initialized",
		zap.String("store_type", config.StoreType),
		zap.Bool("fail_open", config.FailOpen),
		zap.Int("event_bus_buffer", config.EventBusBuffer))

	return &Manager{
		config:        config,
		store:         store,
		limiters:      make(map[string]*rateLimiter),
		eventBus:      eventBus,
		probe:         probe,
		reputation:    reputation,
		pool:          pool,
		logger:        ctxLogger,
		now:           time.Now,
		inlineMetrics: NewMetricsCollector("inline", ""),
	}, nil
}

// Check evaluates one request for the named resource, counting it under key.
func (m *Manager) Check(ctx context.Context, resource string, key string) (*Decision, error) {
	// If not enabled, allow directly
	if !m.config.Enabled {
		return m.passthrough(m.config.Default), nil
	}

	// Unconfigured resource: apply the default when it is valid,
	// otherwise pass through
	if _, exists := m.config.Resources[resource]; !exists {
		if err := m.config.Default.Validate(); err != nil {
			m.logger.DebugCtx(ctx, "resource not configured and no valid default, allowing",
				zap.String("resource", resource))
			return m.passthrough(m.config.Default), nil
		}
	}

	rl := m.getOrCreateLimiter(resource)
	return m.evaluate(ctx, rl, key), nil
}

// CheckWith evaluates one request with caller-supplied configuration.
func (m *Manager) CheckWith(ctx context.Context, key string, cfg ResourceConfig) (*Decision, error) {
	if !m.config.Enabled {
		return m.passthrough(cfg), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rl := &rateLimiter{
		resource:  key,
		config:    cfg,
		algorithm: GetAlgorithm(cfg, m.probe, m.reputation),
		metrics:   m.inlineMetrics,
	}
	return m.evaluate(ctx, rl, key), nil
}

// evaluate runs the algorithm and applies the failure posture.
func (m *Manager) evaluate(ctx context.Context, rl *rateLimiter, key string) *Decision {
	decision, err := rl.algorithm.Check(ctx, m.store, key, rl.config)
	if err != nil {
		return m.storeFailure(ctx, rl, key, err)
	}

	if decision.Allowed {
		rl.metrics.RecordAllowed(decision.Remaining)
		if m.otel != nil {
			m.otel.RecordAllowed(ctx, rl.resource, rl.algorithm.Name())
		}
		m.publish(&AllowedEvent{
			BaseEvent: NewBaseEvent(EventAllowed, key, ctx),
			Remaining: decision.Remaining,
			Limit:     decision.Limit,
		})
	} else {
		rl.metrics.RecordRejected("limit exceeded")
		if m.otel != nil {
			m.otel.RecordRejected(ctx, rl.resource, rl.algorithm.Name(), "limit_exceeded")
		}
		m.publish(&RejectedEvent{
			BaseEvent:  NewBaseEvent(EventRejected, key, ctx),
			RetryAfter: decision.RetryAfter,
			Reason:     "limit exceeded",
		})
	}

	// Surface adaptive limit divergence
	if AlgorithmType(rl.config.Algorithm) == AlgorithmAdaptive && decision.Limit != rl.config.Limit {
		m.publish(&LimitAdjustedEvent{
			BaseEvent:      NewBaseEvent(EventLimitAdjusted, key, ctx),
			BaseLimit:      rl.config.Limit,
			EffectiveLimit: decision.Limit,
		})
	}

	return decision
}

// storeFailure degrades a failed check according to the configured posture.
// No retries here: retrying would only add latency to every request during
// an outage.
func (m *Manager) storeFailure(ctx context.Context, rl *rateLimiter, key string, err error) *Decision {
	reason := "store_unavailable"
	if errors.Is(err, ErrScriptFailed) {
		reason = "script_error"
	}
	now := m.now()

	if m.config.FailOpen {
		m.logger.WarnCtx(ctx, "store check failed, admitting unmetered",
			zap.String("resource", rl.resource),
			zap.String("key", key),
			zap.String("reason", reason),
			zap.Error(err))
		rl.metrics.RecordFailOpen(reason)
		if m.otel != nil {
			m.otel.RecordFailOpen(ctx, rl.resource, rl.algorithm.Name(), reason)
		}
		m.publish(&FailOpenEvent{
			BaseEvent: NewBaseEvent(EventFailOpen, key, ctx),
			Reason:    reason,
			Err:       err,
		})
		// Treat as if unmetered
		return &Decision{
			Allowed:   true,
			Remaining: rl.config.Limit,
			Limit:     rl.config.Limit,
			ResetAt:   now.Add(rl.config.Window),
		}
	}

	m.logger.ErrorCtx(ctx, "store check failed, rejecting (fail-closed posture)",
		zap.String("resource", rl.resource),
		zap.String("key", key),
		zap.String("reason", reason),
		zap.Error(err))
	rl.metrics.RecordRejected(reason)
	if m.otel != nil {
		m.otel.RecordRejected(ctx, rl.resource, rl.algorithm.Name(), reason)
	}
	m.publish(&RejectedEvent{
		BaseEvent:  NewBaseEvent(EventRejected, key, ctx),
		RetryAfter: rl.config.Window,
		Reason:     reason,
	})
	return &Decision{
		Allowed:    false,
		Remaining:  0,
		Limit:      rl.config.Limit,
		ResetAt:    now.Add(rl.config.Window),
		RetryAfter: rl.config.Window,
	}
}

// UpdateReputation posts one behavior observation asynchronously. It never
// blocks the admission path; when the pool is saturated the observation is
// dropped.
func (m *Manager) UpdateReputation(key string, behaviorScore float64) {
	if !m.config.Enabled || m.pool == nil {
		return
	}

	err := m.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), reputationUpdateTimeout)
		defer cancel()

		if err := m.reputation.Update(ctx, key, behaviorScore); err != nil {
			// Reputation failures are never surfaced to callers
			m.logger.DebugCtx(ctx, "reputation update failed",
				zap.String("key", key),
				zap.Error(err))
			return
		}
		m.publish(&ReputationUpdatedEvent{
			BaseEvent:     NewBaseEvent(EventReputationUpdated, key, context.Background()),
			BehaviorScore: behaviorScore,
		})
	})
	if err != nil {
		m.logger.Debug("reputation pool saturated, observation dropped",
			zap.String("key", key))
	}
}

// Reputation returns the behavior score for a scope key (neutral when the
// limiter is disabled).
func (m *Manager) Reputation(ctx context.Context, key string) float64 {
	if !m.config.Enabled || m.reputation == nil {
		return reputationNeutral
	}
	return m.reputation.Get(ctx, key)
}

// Metrics retrieves the metrics snapshot for a resource
func (m *Manager) Metrics(resource string) *MetricsSnapshot {
	m.mu.RLock()
	rl, exists := m.limiters[resource]
	m.mu.RUnlock()

	if !exists {
		return &MetricsSnapshot{
			Resource:  resource,
			Algorithm: "unknown",
		}
	}
	return rl.metrics.GetSnapshot()
}

// GetEventBus obtain event bus
func (m *Manager) GetEventBus() EventBus {
	return m.eventBus
}

// Reset clears the counter state for one key under a resource's algorithm
func (m *Manager) Reset(resource string, key string) {
	m.mu.RLock()
	rl, exists := m.limiters[resource]
	m.mu.RUnlock()

	if !exists {
		return
	}

	if err := rl.algorithm.Reset(context.Background(), m.store, key, rl.config); err != nil {
		m.logger.Warn("reset failed",
			zap.String("resource", resource),
			zap.String("key", key),
			zap.Error(err))
	}
	rl.metrics.Reset()
}

// SetOTelMetrics attaches an OpenTelemetry metrics provider
func (m *Manager) SetOTelMetrics(otel *OTelMetrics) {
	m.otel = otel
}

// GetConfig retrieve rate limiter configuration
func (m *Manager) GetConfig() Config {
	return m.config
}

// Check if the rate limiter is enabled
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}

// Close Manager
func (m *Manager) Close() error {
	if m.eventBus != nil {
		m.eventBus.Close()
	}

	if m.pool != nil {
		m.pool.Release()
	}

	if m.store != nil {
		return m.store.Close()
	}

	return nil
}

// Implements the samber/do Shutdownable interface
func (m *Manager) Shutdown() error {
	return m.Close()
}

// publish 发布事件（bus 可能为 nil，禁用时）
func (m *Manager) publish(event Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// passthrough builds the decision for unmetered admission
func (m *Manager) passthrough(cfg ResourceConfig) *Decision {
	return &Decision{
		Allowed:   true,
		Remaining: maxInt64(0, cfg.Limit),
		Limit:     cfg.Limit,
		ResetAt:   m.now().Add(cfg.Window),
	}
}

// Get or create limiter (thread-safe)
func (m *Manager) getOrCreateLimiter(resource string) *rateLimiter {
	// Try to read first
	m.mu.RLock()
	if rl, exists := m.limiters[resource]; exists {
		m.mu.RUnlock()
		return rl
	}
	m.mu.RUnlock()

	// Need to create, obtain write lock
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double check
	if rl, exists := m.limiters[resource]; exists {
		return rl
	}

	resourceConfig := m.config.GetResourceConfig(resource)
	algorithm := GetAlgorithm(resourceConfig, m.probe, m.reputation)

	rl := &rateLimiter{
		resource:  resource,
		config:    resourceConfig,
		algorithm: algorithm,
		metrics:   NewMetricsCollector(resource, resourceConfig.Algorithm),
	}
	m.limiters[resource] = rl

	m.logger.Debug("limiter instance created",
		zap.String("resource", resource),
		zap.String("algorithm", resourceConfig.Algorithm))

	return rl
}
