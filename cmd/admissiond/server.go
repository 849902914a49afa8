package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/coinfolio/go-admission/limiter"
	"github.com/coinfolio/go-admission/logger"
	"github.com/coinfolio/go-admission/middleware"
	"github.com/coinfolio/go-admission/redis"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// inflightCapacity 负载探针的归一化分母：同时处理这么多请求视为满载
const inflightCapacity = 1024

// inflightTracker 统计在途请求数，作为自适应算法的负载来源
type inflightTracker struct {
	count atomic.Int64
}

func (t *inflightTracker) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		t.count.Add(1)
		defer t.count.Add(-1)
		c.Next()
	}
}

func (t *inflightTracker) sample() float64 {
	return float64(t.count.Load()) / float64(inflightCapacity)
}

// buildInjector 组装依赖容器
func buildInjector(cfg *AppConfig, tracker *inflightTracker) (*do.RootScope, error) {
	injector := do.New()

	do.ProvideValue(injector, cfg)

	do.Provide(injector, func(i do.Injector) (*goredis.Client, error) {
		return redis.NewClient(cfg.Redis, logger.GetLogger("redis"))
	})

	do.Provide(injector, func(i do.Injector) (*limiter.SampledLoadProbe, error) {
		return limiter.NewSampledLoadProbe(cfg.Server.LoadSampleInterval, tracker.sample)
	})

	do.Provide(injector, func(i do.Injector) (*limiter.Manager, error) {
		var client *goredis.Client
		if cfg.Limiter.Enabled && cfg.Limiter.StoreType == string(limiter.StoreTypeRedis) {
			c, err := do.Invoke[*goredis.Client](i)
			if err != nil {
				return nil, err
			}
			client = c
		}

		probe, err := do.Invoke[*limiter.SampledLoadProbe](i)
		if err != nil {
			return nil, err
		}

		return limiter.NewManagerWithLogger(cfg.Limiter, logger.GetLogger("limiter"), client, probe)
	})

	return injector, nil
}

// runServe 启动网关并阻塞到收到退出信号
func runServe(ctx context.Context, cfg *AppConfig) error {
	if err := logger.Init(cfg.Logger); err != nil {
		return err
	}
	defer logger.Sync()

	log := logger.GetLogger("admissiond")

	tracker := &inflightTracker{}
	injector, err := buildInjector(cfg, tracker)
	if err != nil {
		return err
	}

	manager, err := do.Invoke[*limiter.Manager](injector)
	if err != nil {
		return err
	}
	probe := do.MustInvoke[*limiter.SampledLoadProbe](injector)

	// 指标注册在全局 MeterProvider 上；不挂 exporter 时是空操作
	otelMetrics := limiter.NewOTelMetrics(limiter.MetricsConfig{Enabled: true})
	if err := otelMetrics.RegisterMetrics(otel.GetMeterProvider().Meter("go-admission")); err != nil {
		log.Warn("otel metrics registration failed", zap.Error(err))
	} else {
		manager.SetOTelMetrics(otelMetrics)
	}

	engine := buildEngine(cfg, manager, tracker)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("admission gateway listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("store", cfg.Limiter.StoreType),
			zap.Bool("enabled", cfg.Limiter.Enabled))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown failed", zap.Error(err))
		}
		if err := probe.Close(); err != nil {
			log.Warn("load probe shutdown failed", zap.Error(err))
		}
		// 容器按依赖反序关闭，Manager 随之释放存储和事件总线
		return injector.Shutdown()
	})

	return g.Wait()
}

// buildEngine 组装路由：准入中间件在最前，管理接口绕过限流
func buildEngine(cfg *AppConfig, manager *limiter.Manager, tracker *inflightTracker) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(tracker.middleware())

	admission := middleware.DefaultAdmissionConfig(manager)
	admission.KeyFunc = keyFuncForScope(limiter.ScopeKind(cfg.Limiter.Scope))
	admission.SkipPaths = append([]string{"/healthz", "/admin/metrics"}, cfg.Limiter.SkipPaths...)
	engine.Use(middleware.AdmissionWithConfig(admission))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 管理接口：指标快照与计数器重置
	admin := engine.Group("/admin")
	admin.GET("/metrics", func(c *gin.Context) {
		resource := c.DefaultQuery("resource", "http")
		c.JSON(http.StatusOK, manager.Metrics(resource))
	})
	admin.POST("/reset", func(c *gin.Context) {
		resource := c.DefaultQuery("resource", "http")
		key := c.Query("key")
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
			return
		}
		manager.Reset(resource, key)
		c.JSON(http.StatusOK, gin.H{"status": "reset"})
	})
	admin.GET("/reputation", func(c *gin.Context) {
		key := c.Query("key")
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"key":   key,
			"score": manager.Reputation(c.Request.Context(), key),
		})
	})

	// 演示后端：真实部署把它换成反向代理或业务 handler
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "admitted"})
	})

	return engine
}

// keyFuncForScope 把配置的作用域映射为键生成函数
func keyFuncForScope(kind limiter.ScopeKind) func(*gin.Context) string {
	switch kind {
	case limiter.ScopeGlobal:
		return middleware.KeyGlobal
	case limiter.ScopeUser:
		return middleware.KeyByUser("user_id")
	case limiter.ScopeEndpoint:
		return middleware.KeyByEndpoint
	case limiter.ScopeCredential:
		return middleware.KeyByAPIKey("X-API-Key")
	default:
		return middleware.KeyByIP
	}
}
