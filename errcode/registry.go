package errcode

import (
	"fmt"
	"sync"
)

// Registry 记录已分配的错误码，同一 code 被两个不同身份注册时直接 panic，
// 把冲突暴露在进程启动阶段而不是线上响应里。
type Registry struct {
	mu    sync.RWMutex
	codes map[int]string
}

var globalRegistry = &Registry{codes: make(map[int]string)}

// Register 注册到全局注册表，返回原错误便于包级变量声明时链式使用
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

func (r *Registry) Register(err *LayeredError) *LayeredError {
	identity := fmt.Sprintf("%s:%s", err.Module(), err.Message())

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.codes[err.Code()]; ok {
		// 同一身份重复注册视为幂等
		if existing != identity {
			panic(fmt.Sprintf(
				"error code conflict: code %d is already registered as %s, cannot register as %s",
				err.Code(), existing, identity,
			))
		}
		return err
	}

	r.codes[err.Code()] = identity
	return err
}

// GetAll 返回已注册错误码的快照
func (r *Registry) GetAll() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[int]string, len(r.codes))
	for code, identity := range r.codes {
		snapshot[code] = identity
	}
	return snapshot
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codes)
}

// Clear 仅用于测试
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = make(map[int]string)
}

// GetAllRegisteredCodes 返回全局注册表快照
func GetAllRegisteredCodes() map[int]string {
	return globalRegistry.GetAll()
}

// ClearGlobalRegistry 仅用于测试
func ClearGlobalRegistry() {
	globalRegistry.Clear()
}
