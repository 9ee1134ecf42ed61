package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ki2go/api"
	"ki2go/internal/audit"
	"ki2go/internal/changerequest"
	"ki2go/internal/config"
	"ki2go/internal/infra"
	"ki2go/internal/logger"
	"ki2go/internal/organization"
	"ki2go/internal/superprompt"
	"ki2go/internal/template"
	"ki2go/internal/worker"
)

func main() {
	// 0. 加载 .env，便于集中管理 APP_* 环境变量
	if err := godotenv.Load(); err == nil {
		fmt.Println("已加载环境变量文件: .env")
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置
	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	// 3. 初始化数据库
	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer infra.CloseDatabase()

	// 4. 数据库迁移（根据配置）
	if cfg.Database.AutoMigrate {
		if err := runMigrations(db); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("跳过自动迁移（配置已禁用）")
	}

	// 5. 创建路由与 Worker
	router, workerServer := api.SetupRouter(db, cfg)

	// 6. 创建 HTTP 服务器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 7. 启动服务器（goroutine）
	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	// 启动 Worker 服务器（Redis 未启用时为 nil）
	if workerServer != nil {
		go func() {
			if err := workerServer.Run(); err != nil {
				logger.Fatal("Worker 服务器启动失败", zap.Error(err))
			}
		}()
	}

	// 8. 优雅关闭
	gracefulShutdown(server, workerServer)
}

// runMigrations 执行数据库迁移
func runMigrations(db *gorm.DB) error {
	return infra.AutoMigrate(db,
		&organization.Organization{},
		&organization.User{},
		&template.BaseTemplate{},
		&superprompt.CustomSuperprompt{},
		&superprompt.HistoryEntry{},
		&changerequest.ChangeRequest{},
		&audit.AuditLog{},
	)
}

// gracefulShutdown 等待信号并优雅关闭
func gracefulShutdown(server *http.Server, workerServer *worker.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到退出信号，开始优雅关闭...")

	if workerServer != nil {
		workerServer.Shutdown()
	}
	if err := infra.CloseRedis(); err != nil {
		logger.Error("关闭 Redis 连接失败", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP 服务器关闭失败", zap.Error(err))
		return
	}

	logger.Info("应用已退出")
}
