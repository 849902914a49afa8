package limiter

import (
	"context"
	"time"
)

// EventType 判定事件类型
type EventType string

const (
	// EventAllowed 放行
	EventAllowed EventType = "allowed"

	// EventRejected 拒绝
	EventRejected EventType = "rejected"

	// EventFailOpen 存储不可判定，未计量放行
	EventFailOpen EventType = "fail_open"

	// EventLimitAdjusted 自适应有效阈值偏离基准阈值
	EventLimitAdjusted EventType = "limit_adjusted"

	// EventReputationUpdated 行为观测已并入信誉分
	EventReputationUpdated EventType = "reputation_updated"
)

// Event 判定路径上产生的事件
type Event interface {
	Type() EventType
	Key() string
	Context() context.Context
	Timestamp() time.Time
}

// BaseEvent 各具体事件内嵌的公共部分
type BaseEvent struct {
	eventType EventType
	key       string
	ctx       context.Context
	timestamp time.Time
}

// NewBaseEvent 以当前时间构造事件基础部分
func NewBaseEvent(eventType EventType, key string, ctx context.Context) BaseEvent {
	return BaseEvent{
		eventType: eventType,
		key:       key,
		ctx:       ctx,
		timestamp: time.Now(),
	}
}

func (e *BaseEvent) Type() EventType { return e.eventType }

// Key 事件涉及的作用域键
func (e *BaseEvent) Key() string { return e.key }

func (e *BaseEvent) Context() context.Context { return e.ctx }

func (e *BaseEvent) Timestamp() time.Time { return e.timestamp }

// AllowedEvent 放行事件
type AllowedEvent struct {
	BaseEvent
	Remaining int64
	Limit     int64
}

// RejectedEvent 拒绝事件
type RejectedEvent struct {
	BaseEvent
	RetryAfter time.Duration
	Reason     string
}

// FailOpenEvent 未计量放行。Reason 区分连接失败（store_unavailable）
// 与脚本执行失败（script_error）。
type FailOpenEvent struct {
	BaseEvent
	Reason string
	Err    error
}

// LimitAdjustedEvent 自适应阈值变化
type LimitAdjustedEvent struct {
	BaseEvent
	BaseLimit      int64
	EffectiveLimit int64
}

// ReputationUpdatedEvent 信誉分观测
type ReputationUpdatedEvent struct {
	BaseEvent
	BehaviorScore float64
}

// EventListener 事件监听器
type EventListener interface {
	OnEvent(event Event)
}

// EventListenerFunc 函数式监听器
type EventListenerFunc func(event Event)

func (f EventListenerFunc) OnEvent(event Event) {
	f(event)
}

// EventBus 事件总线
type EventBus interface {
	Subscribe(listener EventListener)
	Publish(event Event)
	Close()
}
