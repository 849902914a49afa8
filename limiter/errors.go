package limiter

import (
	"errors"
	"fmt"
)

var (
	// ErrLimitExceeded 超过限流阈值
	ErrLimitExceeded = errors.New("rate limit exceeded")

	// ErrKeyNotFound 键不存在
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("invalid config")

	// ErrStoreUnavailable 存储连不上或超时
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrScriptFailed 原子脚本执行失败。与连接失败分开，
	// 部署侧可以单独对脚本错误告警。
	ErrScriptFailed = errors.New("atomic script failed")
)

// ValidationError 配置校验错误，Resource / Field 指出出错位置
type ValidationError struct {
	Resource string
	Field    string
	Message  string
	Err      error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Resource != "" && e.Err != nil:
		return fmt.Sprintf("limiter config validation failed for resource '%s': %v", e.Resource, e.Err)
	case e.Resource != "":
		return fmt.Sprintf("limiter config validation failed for resource '%s.%s': %s", e.Resource, e.Field, e.Message)
	case e.Field != "":
		return fmt.Sprintf("limiter config validation failed for field '%s': %s", e.Field, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("limiter config validation failed: %v", e.Err)
	default:
		return "limiter config validation failed"
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
