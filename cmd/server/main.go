package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/config"
	"github.com/Redwinam/dida-master/internal/api/handler"
	"github.com/Redwinam/dida-master/internal/api/router"
	"github.com/Redwinam/dida-master/internal/repository"
	"github.com/Redwinam/dida-master/internal/service"
	"github.com/Redwinam/dida-master/pkg/cos"
	"github.com/Redwinam/dida-master/pkg/database"
	"github.com/Redwinam/dida-master/pkg/dida"
	"github.com/Redwinam/dida-master/pkg/gateway"
	"github.com/Redwinam/dida-master/pkg/jwt"
	applogger "github.com/Redwinam/dida-master/pkg/logger"
	"github.com/Redwinam/dida-master/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("base_url", cfg.Server.BaseURL),
		zap.Int("grace_minutes", cfg.Cron.GraceMinutes),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：失败时分发水位线退化为进程内存，限流关闭）
	var watermark service.Watermark
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，分发去重退化为单实例内存模式", zap.Error(err))
		rdb = nil
	} else {
		watermark = rdb
	}

	// 5. 外部服务
	jwtMgr := jwt.NewManager(&cfg.Auth)
	store := cos.NewClient(&cfg.COS)
	if !store.Enabled() {
		logger.Info("未配置对象存储，生成内容将内联保存")
	}

	deps := service.Deps{
		Tasks:     dida.NewClient(&cfg.Dida),
		Calendars: service.NewCalendarFactory(&cfg.CalDAV),
		Store:     store,
		Generator: gateway.NewClient(&cfg.Gateway, logger),
		Watermark: watermark,
		Trigger:   service.NewHTTPTrigger(cfg.Server.BaseURL, cfg.Cron.TriggerTimeout, jwtMgr),
	}
	if cfg.Dida.OAuth.Enabled() {
		redirect := cfg.Dida.OAuth.RedirectURL
		if redirect == "" {
			redirect = strings.TrimRight(cfg.Server.BaseURL, "/") + "/api/v1/auth/dida/callback"
		}
		deps.OAuth = dida.NewOAuth(&cfg.Dida.OAuth, redirect, &http.Client{Timeout: cfg.Dida.Timeout})
	} else {
		logger.Info("未配置滴答清单 OAuth 应用，授权接口不可用")
	}

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, deps, logger)
	h := handler.NewHandler(svc)

	// 7. 初始化路由
	engine := router.Setup(cfg, h, svc.APIKey, jwtMgr, rdb, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	// 图片转日程与生成网关调用耗时较长，写超时放宽
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
