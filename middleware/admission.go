// Package middleware Gin 中间件集合
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coinfolio/go-admission/errcode"
	"github.com/coinfolio/go-admission/limiter"
	"github.com/gin-gonic/gin"
)

// AdmissionConfig 准入中间件配置
type AdmissionConfig struct {
	// Limiter 准入控制器（必需）
	Limiter limiter.Limiter

	// Resource 资源名（默认 "http"），决定应用哪份资源配置
	Resource string

	// KeyFunc 自定义作用域键生成函数（默认：按客户端 IP）
	KeyFunc func(*gin.Context) string

	// ErrorHandler 自定义错误处理函数（默认：放行）
	// 仅在 Check 返回错误时调用；存储故障由限流器内部的
	// fail-open/fail-closed 策略吸收，不会走到这里
	ErrorHandler func(*gin.Context, error)

	// RejectHandler 自定义拒绝响应函数（默认：返回 429 + 重试信息）
	RejectHandler func(*gin.Context, *limiter.Decision)

	// SkipFunc 跳过准入检查的条件函数（可选）
	SkipFunc func(*gin.Context) bool

	// SkipPaths 跳过准入检查的路径列表（可选）
	SkipPaths []string

	// DisableHeaders 关闭 X-RateLimit-* 响应头
	DisableHeaders bool

	// Feedback 响应完成后的行为评分回调（可选）。
	// 返回值会异步写入声誉存储，不阻塞响应。
	Feedback func(*gin.Context) float64
}

// DefaultAdmissionConfig 默认准入配置
func DefaultAdmissionConfig(l limiter.Limiter) AdmissionConfig {
	return AdmissionConfig{
		Limiter:  l,
		Resource: "http",
		KeyFunc:  KeyByIP,
	}
}

// Admission 创建准入中间件
//
// 功能：
//  1. 每个请求在进入业务处理前执行一次准入检查
//  2. 支持按 IP、用户、端点、API 凭证等维度限流
//  3. 每个响应附带 X-RateLimit-Limit / Remaining / Reset 头
//  4. 拒绝时返回 429 和 Retry-After
//  5. 限流器未启用时自动放行
//
// 用法：
//
//	// 基本用法（按 IP）
//	engine.Use(middleware.Admission(manager))
//
//	// 自定义配置
//	cfg := middleware.DefaultAdmissionConfig(manager)
//	cfg.KeyFunc = middleware.KeyByAPIKey("X-API-Key")
//	cfg.SkipPaths = []string{"/healthz", "/metrics"}
//	engine.Use(middleware.AdmissionWithConfig(cfg))
func Admission(l limiter.Limiter) gin.HandlerFunc {
	return AdmissionWithConfig(DefaultAdmissionConfig(l))
}

// AdmissionWithConfig 创建自定义配置的准入中间件
func AdmissionWithConfig(cfg AdmissionConfig) gin.HandlerFunc {
	// 验证必需参数
	if cfg.Limiter == nil {
		panic("AdmissionConfig.Limiter cannot be nil")
	}

	// 应用默认值
	if cfg.Resource == "" {
		cfg.Resource = "http"
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *gin.Context, err error) {
			c.Next()
		}
	}
	if cfg.RejectHandler == nil {
		cfg.RejectHandler = defaultRejectHandler
	}

	// 构建跳过路径的 map（提高查找性能）
	skipPathsMap := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skipPathsMap[path] = true
	}

	return func(c *gin.Context) {
		// ===========================
		// 1. 检查限流器是否启用
		// ===========================
		if !cfg.Limiter.IsEnabled() {
			c.Next()
			return
		}

		// ===========================
		// 2. 检查是否跳过此路径
		// ===========================
		if skipPathsMap[c.Request.URL.Path] {
			c.Next()
			return
		}

		// ===========================
		// 3. 检查自定义跳过条件
		// ===========================
		if cfg.SkipFunc != nil && cfg.SkipFunc(c) {
			c.Next()
			return
		}

		// ===========================
		// 4. 生成作用域键
		// ===========================
		key := cfg.KeyFunc(c)

		// ===========================
		// 5. 执行准入检查
		// ===========================
		ctx := c.Request.Context()
		decision, err := cfg.Limiter.Check(ctx, cfg.Resource, key)
		if err != nil {
			// 配置类错误（存储故障已被失败策略吸收）
			cfg.ErrorHandler(c, err)
			return
		}

		// ===========================
		// 6. 附加限流响应头
		// ===========================
		if !cfg.DisableHeaders {
			writeRateLimitHeaders(c, decision)
		}

		if !decision.Allowed {
			cfg.RejectHandler(c, decision)
			return
		}

		// ===========================
		// 7. 允许通过
		// ===========================
		c.Next()

		// ===========================
		// 8. 响应完成后回写行为评分
		// ===========================
		if cfg.Feedback != nil {
			cfg.Limiter.UpdateReputation(key, cfg.Feedback(c))
		}
	}
}

// writeRateLimitHeaders 每个响应都带配额信息，包括被拒绝的
func writeRateLimitHeaders(c *gin.Context, d *limiter.Decision) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// defaultRejectHandler 默认拒绝响应：429 + 重试信息。
// retryAfter = max(0, resetAt-now) 取整秒，不足一秒的正值向上取整
func defaultRejectHandler(c *gin.Context, d *limiter.Decision) {
	var retryAfter int64
	if d.RetryAfter > 0 {
		retryAfter = int64((d.RetryAfter + time.Second - 1) / time.Second)
	}
	c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error": errcode.ErrTooManyRequests.Message(),
		"code":  errcode.ErrTooManyRequests.Code(),
		"rateLimit": gin.H{
			"limit":      d.Limit,
			"remaining":  d.Remaining,
			"resetTime":  d.ResetAt.Unix(),
			"retryAfter": retryAfter,
		},
	})
	c.Abort()
}

// KeyByIP 根据客户端 IP 生成作用域键
func KeyByIP(c *gin.Context) string {
	return limiter.BuildKey(limiter.ScopeIP, c.ClientIP())
}

// KeyGlobal 所有请求共享一个计数器
func KeyGlobal(c *gin.Context) string {
	return limiter.BuildKey(limiter.ScopeGlobal, "")
}

// KeyByEndpoint 根据路由（method + path）生成作用域键
func KeyByEndpoint(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return limiter.BuildKey(limiter.ScopeEndpoint,
		fmt.Sprintf("%s %s", strings.ToUpper(c.Request.Method), path))
}

// KeyByUser 根据用户 ID 生成作用域键
// 用户信息需要上游认证中间件写入上下文
//
// 用法：
//
//	cfg.KeyFunc = middleware.KeyByUser("user_id")
func KeyByUser(userIDKey string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		userID, exists := c.Get(userIDKey)
		if !exists {
			return limiter.BuildKey(limiter.ScopeUser, "")
		}
		return limiter.BuildKey(limiter.ScopeUser, fmt.Sprintf("%v", userID))
	}
}

// KeyByAPIKey 根据 API 凭证生成作用域键（Header 优先，Query 兜底）
//
// 用法：
//
//	cfg.KeyFunc = middleware.KeyByAPIKey("X-API-Key")
func KeyByAPIKey(headerName string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		apiKey := c.GetHeader(headerName)
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}
		return limiter.BuildKey(limiter.ScopeCredential, apiKey)
	}
}
