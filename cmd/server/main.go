package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shortlink-core/internal/cache"
	"shortlink-core/internal/config"
	"shortlink-core/internal/geo"
	"shortlink-core/internal/handler"
	"shortlink-core/internal/middleware"
	"shortlink-core/internal/model"
	"shortlink-core/internal/ratelimit"
	"shortlink-core/internal/recorder"
	"shortlink-core/internal/repository"
	"shortlink-core/internal/service"
	"shortlink-core/internal/shortcode"
	"shortlink-core/pkg/database"
	auth "shortlink-core/pkg/jwt"
	"shortlink-core/pkg/logger"
	"shortlink-core/pkg/redis"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("SHORTLINK_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Options(cfg.Log)); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugaredLogger := zap.S()

	db, err := database.Open(database.Options(cfg.Database))
	if err != nil {
		sugaredLogger.Fatalf("数据库初始化失败: %v", err)
	}
	sugaredLogger.Infof("✅ 数据库连接成功 (%s)", cfg.Database.Driver)

	if err := database.Migrate(db, &model.ShortLink{}, &model.VisitEvent{}); err != nil {
		sugaredLogger.Fatalf("数据库迁移失败: %v", err)
	}
	sugaredLogger.Info("✅ 数据库迁移成功")

	links := repository.NewLinkRepository(db)
	visits := repository.NewVisitRepository(db)

	var remote cache.Remote = cache.NullRemote{}
	rc := cfg.Cache.Redis
	rdb, err := redis.NewClient(redis.Options{Host: rc.Host, Port: rc.Port, Password: rc.Password, DB: rc.DB})
	switch {
	case err != nil:
		sugaredLogger.Warnf("缓存连接失败，只使用本地缓存: %v", err)
	case rdb != nil:
		defer func() {
			if err := rdb.Close(); err != nil {
				sugaredLogger.Errorf("关闭 Redis 连接失败: %v", err)
			}
		}()
		remote = cache.NewRedisRemote(rdb, rc.Namespace, time.Duration(rc.TTLSeconds)*time.Second)
		sugaredLogger.Info("✅ 缓存连接成功")
	}

	resolution := cache.NewResolutionCache(links, cache.Options{
		Shards:   cfg.Cache.Shards,
		LocalTTL: time.Duration(cfg.Cache.LocalTTLSeconds) * time.Second,
		Remote:   remote,
	}, sugaredLogger)

	allocator, err := shortcode.NewAllocator(links, shortcode.Options{
		Strategy:    shortcode.Strategy(cfg.Allocator.Strategy),
		Length:      cfg.Allocator.Length,
		MaxAttempts: cfg.Allocator.MaxAttempts,
		NodeID:      cfg.Allocator.NodeID,
	}, sugaredLogger)
	if err != nil {
		sugaredLogger.Fatalf("短码分配器初始化失败: %v", err)
	}

	linkService := service.NewLinkService(links, visits, resolution, allocator, service.Options{
		DefaultExpiry: time.Duration(cfg.App.DefaultExpirationDays) * 24 * time.Hour,
	}, sugaredLogger)

	clickRecorder := recorder.New(
		service.NewVisitSink(visits, links, resolution, sugaredLogger),
		geo.New(cfg.Geo, sugaredLogger),
		recorder.Options{
			Workers:     cfg.Recorder.Workers,
			QueueSize:   cfg.Recorder.QueueSize,
			SinkTimeout: time.Duration(cfg.Recorder.SinkTimeoutSeconds) * time.Second,
		},
		sugaredLogger,
	)
	clickRecorder.Start()
	sugaredLogger.Info("✅ 点击记录器已启动")

	tokenManager := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.ExpirationHours)
	sugaredLogger.Info("✅ 认证管理器初始化成功")

	mw, err := buildMiddlewares(cfg, tokenManager)
	if err != nil {
		sugaredLogger.Fatalf("限流配置无效: %v", err)
	}

	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinZapRecovery(logger.Logger, true))
	router.Use(middleware.GinZapLogger(logger.Logger))

	handler.RegisterRoutes(router,
		handler.NewRedirectHandler(linkService, clickRecorder, sugaredLogger),
		handler.NewLinkHandler(linkService, cfg.App.BaseURL, sugaredLogger),
		handler.NewHealthHandler(links, resolution, clickRecorder),
		mw,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 接收其他实例的缓存失效通知
	go func() {
		if err := resolution.Listen(ctx); err != nil {
			sugaredLogger.Warnf("订阅缓存失效通知失败，本地缓存只依赖过期时间: %v", err)
		}
	}()

	go func() {
		sugaredLogger.Infof("🚀 服务启动成功, 访问 http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugaredLogger.Fatalf("服务启动失败: %v", err)
		}
	}()

	<-ctx.Done()
	sugaredLogger.Info("🛑 收到退出信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugaredLogger.Errorf("HTTP 服务关闭失败: %v", err)
	}
	// 先停止接收请求，再把队列中的访问记录写完
	if err := clickRecorder.Stop(shutdownCtx); err != nil {
		sugaredLogger.Errorf("点击记录器关闭失败: %v", err)
	}
	sugaredLogger.Info("👋 服务已退出")
}

// buildMiddlewares 每个限流策略使用独立的令牌桶
func buildMiddlewares(cfg *config.Config, tokens *auth.TokenManager) (handler.Middlewares, error) {
	mw := handler.Middlewares{
		Auth:          middleware.AuthMiddleware(tokens),
		GeneralLimit:  middleware.Passthrough(),
		StrictLimit:   middleware.Passthrough(),
		RedirectLimit: middleware.Passthrough(),
	}
	if !cfg.RateLimit.Enabled {
		return mw, nil
	}

	policies := []struct {
		name     string
		cfg      config.Policy
		fallback ratelimit.Policy
		target   *gin.HandlerFunc
	}{
		{"general", cfg.RateLimit.General, ratelimit.GeneralPolicy, &mw.GeneralLimit},
		{"strict", cfg.RateLimit.Strict, ratelimit.StrictPolicy, &mw.StrictLimit},
		{"redirect", cfg.RateLimit.Redirect, ratelimit.RedirectPolicy, &mw.RedirectLimit},
	}
	for _, p := range policies {
		policy, err := ratelimit.PolicyFromConfig(p.name, p.cfg, p.fallback)
		if err != nil {
			return mw, err
		}
		*p.target = middleware.RateLimit(ratelimit.NewLimiter(policy), cfg.RateLimit.SkipPaths)
	}
	return mw, nil
}
