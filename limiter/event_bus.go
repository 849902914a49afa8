package limiter

import (
	"sync"
)

// eventBus 带缓冲的异步事件总线。Publish 永不阻塞限流判定路径：
// 缓冲满时直接丢弃事件。
type eventBus struct {
	mu        sync.RWMutex
	listeners []EventListener
	ch        chan Event
	done      chan struct{}
	closed    bool
}

// NewEventBus 创建事件总线，bufferSize <= 0 时使用默认缓冲
func NewEventBus(bufferSize int) EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	b := &eventBus{
		ch:   make(chan Event, bufferSize),
		done: make(chan struct{}),
	}
	go b.fanout()
	return b
}

func (b *eventBus) Subscribe(listener EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.listeners = append(b.listeners, listener)
}

func (b *eventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	select {
	case b.ch <- event:
	default:
		// 缓冲满，丢弃
	}
}

// Close 幂等关闭；返回前等待已入队事件派发完毕
func (b *eventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()

	<-b.done
}

func (b *eventBus) fanout() {
	defer close(b.done)

	for event := range b.ch {
		b.mu.RLock()
		ls := append([]EventListener(nil), b.listeners...)
		b.mu.RUnlock()

		for _, l := range ls {
			b.deliver(l, event)
		}
	}
}

// deliver 单独包一层，监听器 panic 不影响其余监听器和总线本身
func (b *eventBus) deliver(l EventListener, event Event) {
	defer func() {
		_ = recover()
	}()
	l.OnEvent(event)
}
