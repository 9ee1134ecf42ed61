package worker

import (
	"context"

	"ki2go/internal/config"
	"ki2go/internal/worker/handlers"
	"ki2go/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server 后台任务服务器
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewServer 创建 Worker 服务器
func NewServer(cfg config.RedisConfig, db *gorm.DB, logger *zap.Logger) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		},
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"notify":  3, // 通知优先
				"usage":   1,
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()

	usageHandler := handlers.NewUsageHandler(db, logger)
	mux.HandleFunc(tasks.TypeSuperpromptUsage, usageHandler.HandleSuperpromptUsage)

	crHandler := handlers.NewChangeRequestHandler(db, logger)
	mux.HandleFunc(tasks.TypeChangeRequestNotify, crHandler.HandleChangeRequestNotify)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}
}

// Run 启动 Worker 服务器（阻塞）
func (s *Server) Run() error {
	s.logger.Info("Worker 服务器启动中...")
	return s.server.Run(s.mux)
}

// Shutdown 停止 Worker 服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.server.Shutdown()
}
