// Package errcode 分层错误码。码值格式 MMBBBB：MM 为两位模块码，
// BBBB 为模块内业务码，HTTP 状态映射随错误码一起定义。
package errcode

import (
	"fmt"
	"net/http"
)

// LayeredError 不可变错误值：With* 系列方法返回副本，
// 包级预定义错误可以被并发使用和派生。
type LayeredError struct {
	module     string
	code       int
	msg        string
	httpStatus int
	data       map[string]interface{}
	cause      error
}

// New 构造分层错误码。moduleCode 两位（10-99），businessCode 模块内递增，
// httpStatus 可选，缺省 200。
func New(moduleCode, businessCode int, module, msg string, httpStatus ...int) *LayeredError {
	status := http.StatusOK
	if len(httpStatus) > 0 {
		status = httpStatus[0]
	}
	return &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		msg:        msg,
		httpStatus: status,
		data:       make(map[string]interface{}),
	}
}

func (e *LayeredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *LayeredError) Code() int {
	return e.code
}

func (e *LayeredError) Module() string {
	return e.module
}

func (e *LayeredError) Message() string {
	return e.msg
}

func (e *LayeredError) HTTPStatus() int {
	return e.httpStatus
}

func (e *LayeredError) Data() map[string]interface{} {
	return e.data
}

// Cause 返回被包装的原始错误
func (e *LayeredError) Cause() error {
	return e.cause
}

// Unwrap 支持 errors.Is / errors.As 沿错误链匹配
func (e *LayeredError) Unwrap() error {
	return e.cause
}

// WithMsg 返回替换消息后的副本
func (e *LayeredError) WithMsg(msg string) *LayeredError {
	clone := *e
	clone.msg = msg
	clone.data = e.cloneData()
	return &clone
}

// WithMsgf 返回格式化消息后的副本
func (e *LayeredError) WithMsgf(format string, args ...interface{}) *LayeredError {
	return e.WithMsg(fmt.Sprintf(format, args...))
}

// WithData 返回追加一条上下文数据的副本
func (e *LayeredError) WithData(key string, value interface{}) *LayeredError {
	clone := *e
	clone.data = e.cloneData()
	clone.data[key] = value
	return &clone
}

// Wrap 返回挂上原始错误的副本
func (e *LayeredError) Wrap(cause error) *LayeredError {
	clone := *e
	clone.cause = cause
	clone.data = e.cloneData()
	return &clone
}

// Is 按错误码匹配：同码不同消息的派生值视为同一错误
func (e *LayeredError) Is(target error) bool {
	other, ok := target.(*LayeredError)
	if !ok {
		return false
	}
	return e.code == other.code
}

func (e *LayeredError) cloneData() map[string]interface{} {
	data := make(map[string]interface{}, len(e.data))
	for k, v := range e.data {
		data[k] = v
	}
	return data
}
