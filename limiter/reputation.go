package limiter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/coinfolio/go-admission/logger"
	"go.uber.org/zap"
)

// reputationNeutral is the score assumed for unknown scope keys and
// whenever the record cannot be read.
const reputationNeutral = 0.5

// ReputationReader is the read side consumed by the adaptive algorithm.
type ReputationReader interface {
	// Get returns the behavior score for a scope key in [0,1].
	// It never fails: missing records and read errors yield the neutral
	// default.
	Get(ctx context.Context, key string) float64
}

// ReputationRecord 信誉分记录
//
// Created lazily on first feedback; expires after the configured TTL of
// inactivity and is recreated with the default on next use.
type ReputationRecord struct {
	Score     float64 `json:"score"`
	Samples   int64   `json:"samples"`
	UpdatedAt float64 `json:"updated_at"` // epoch seconds
}

// ReputationStore owns per-scope behavior scores. No other component
// mutates the records directly.
type ReputationStore struct {
	store Store
	cfg   ReputationConfig
	log   *logger.CtxZapLogger
	now   func() time.Time
}

// NewReputationStore 创建信誉分存储
func NewReputationStore(store Store, cfg ReputationConfig, log *logger.CtxZapLogger) *ReputationStore {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if log == nil {
		log = logger.GetLogger("limiter")
	}
	return &ReputationStore{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Get returns the current score, defaulting to neutral on miss or failure.
// Read failures are logged at debug level and never surfaced to the caller.
func (r *ReputationStore) Get(ctx context.Context, key string) float64 {
	record, err := r.load(ctx, key)
	if err != nil {
		if err != ErrKeyNotFound {
			r.log.DebugCtx(ctx, "reputation read failed, using neutral score",
				zap.String("key", key),
				zap.Error(err))
		}
		return reputationNeutral
	}
	return clamp01(record.Score)
}

// Update folds one behavior observation into the score:
//
//	newScore = (1−α)×oldScore + α×observed
//
// clamped to [0,1]. The record TTL is refreshed on every update.
func (r *ReputationStore) Update(ctx context.Context, key string, behaviorScore float64) error {
	behaviorScore = clamp01(behaviorScore)

	record, err := r.load(ctx, key)
	if err != nil {
		if err != ErrKeyNotFound {
			return fmt.Errorf("reputation load failed: %w", err)
		}
		record = &ReputationRecord{Score: reputationNeutral}
	}

	record.Score = clamp01((1-r.cfg.Alpha)*record.Score + r.cfg.Alpha*behaviorScore)
	record.Samples++
	record.UpdatedAt = float64(r.now().UnixNano()) / float64(time.Second)

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("reputation marshal failed: %w", err)
	}

	if err := r.store.Set(ctx, r.recordKey(key), string(raw), r.cfg.TTL); err != nil {
		return fmt.Errorf("reputation write failed: %w", err)
	}
	return nil
}

// load 读取记录
func (r *ReputationStore) load(ctx context.Context, key string) (*ReputationRecord, error) {
	raw, err := r.store.Get(ctx, r.recordKey(key))
	if err != nil {
		return nil, err
	}

	var record ReputationRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("reputation unmarshal failed: %w", err)
	}
	if math.IsNaN(record.Score) {
		record.Score = reputationNeutral
	}
	return &record, nil
}

// recordKey 返回信誉分存储键
func (r *ReputationStore) recordKey(key string) string {
	return fmt.Sprintf("reputation:%s", key)
}
