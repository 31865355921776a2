package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/handler"
	"cryptowallet/internal/infrastructure/cache"
	"cryptowallet/internal/infrastructure/database"
	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/infrastructure/mq"
	"cryptowallet/internal/infrastructure/oracle"
	"cryptowallet/internal/job"
	"cryptowallet/internal/logger"
	"cryptowallet/internal/service"
	"cryptowallet/pkg/idgen"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "雪花算法机器ID")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger.Init(&cfg.Log)
	defer logger.Sync()

	idgen.Init(*workerID)

	db := database.Init(&cfg.Database)
	redisClient := cache.InitRedis(&cfg.Redis)

	publisher, err := mq.NewPublisher(&cfg.MQ)
	if err != nil {
		logger.Log.Fatal("初始化消息队列失败", zap.String("driver", cfg.MQ.Driver), zap.Error(err))
	}
	defer publisher.Close()

	confirmer, err := oracle.NewConfirmer(&cfg.Oracle)
	if err != nil {
		logger.Log.Fatal("初始化充值确认服务失败", zap.Error(err))
	}

	locker := lock.NewRedisLocker(redisClient,
		cfg.Business.LockTTL(),
		cfg.Business.LockRetryInterval(),
		cfg.Business.LockMaxRetries)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, publisher, cfg)
	go outboxSender.Start(ctx)

	sweeper := job.NewDepositSweeper(db, service.NewDepositService(db, locker, cfg), confirmer, cfg)
	if err := sweeper.Start(ctx); err != nil {
		logger.Log.Fatal("启动充值确认任务失败", zap.String("spec", cfg.Business.DepositSweepSpec), zap.Error(err))
	}

	router := handler.NewRouter(db, locker, cfg)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("服务关闭异常", zap.Error(err))
	}

	logger.Log.Info("服务已关闭")
}
