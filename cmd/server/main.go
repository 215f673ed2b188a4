package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"osm-eval/backend/config"
	"osm-eval/backend/internal/api/handler"
	"osm-eval/backend/internal/api/router"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/internal/scheduler"
	"osm-eval/backend/internal/service"
	"osm-eval/backend/pkg/clock"
	"osm-eval/backend/pkg/database"
	"osm-eval/backend/pkg/jwt"
	applogger "osm-eval/backend/pkg/logger"
	"osm-eval/backend/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
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
		zap.String("log_level", cfg.Log.Level),
		zap.Duration("lease_duration", cfg.Lease.Duration),
		zap.String("reclaim_schedule", cfg.Lease.ReclaimSchedule),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与领取限流将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 初始化 JWT 校验
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db, cfg.Database.TxMaxAttempts)
	svc := service.NewService(cfg, repo, clock.Real{}, logger)
	h := handler.NewHandler(svc)

	// 7. 启动过期回收定时任务
	reclaimer, err := scheduler.NewReclaimer(cfg.Lease.ReclaimSchedule, svc.Reclaim, logger)
	if err != nil {
		logger.Fatal("初始化回收任务失败", zap.Error(err))
	}
	reclaimer.Start()

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, db, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // 导出可能较慢
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待进行中的回收结束
	reclaimer.Stop(ctx)

	// 关闭数据库连接
	if err := sqlDB.Close(); err != nil {
		logger.Error("关闭数据库连接失败", zap.Error(err))
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
