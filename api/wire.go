package api

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	auditHandlers "ki2go/api/handlers/auditlogs"
	authHandlers "ki2go/api/handlers/auth"
	changerequestHandlers "ki2go/api/handlers/changerequests"
	executionHandlers "ki2go/api/handlers/executions"
	organizationHandlers "ki2go/api/handlers/organizations"
	superpromptHandlers "ki2go/api/handlers/superprompts"
	templateHandlers "ki2go/api/handlers/templates"

	"ki2go/internal/ai"
	"ki2go/internal/audit"
	"ki2go/internal/auth"
	"ki2go/internal/changerequest"
	"ki2go/internal/config"
	"ki2go/internal/execution"
	"ki2go/internal/infra"
	"ki2go/internal/infra/queue"
	"ki2go/internal/logger"
	"ki2go/internal/organization"
	"ki2go/internal/superprompt"
	"ki2go/internal/template"
	"ki2go/internal/worker"

	"go.uber.org/zap"
)

// AppContainer 应用容器，集中管理所有服务依赖
type AppContainer struct {
	// 基础设施
	DB          *gorm.DB
	Config      *config.Config
	RedisClient redis.UniversalClient
	QueueClient queue.Client

	// 认证
	JWTService *auth.JWTService

	// 核心服务
	AuditLogger          *audit.Logger
	OrganizationService  *organization.Service
	TemplateService      *template.Service
	SuperpromptService   *superprompt.Service
	Resolver             *superprompt.Resolver
	ChangeRequestService *changerequest.Service
	ExecutionService     *execution.Service
}

// Handlers 全部 HTTP Handler
type Handlers struct {
	Auth          *authHandlers.AuthHandler
	Organization  *organizationHandlers.OrganizationHandler
	Template      *templateHandlers.TemplateHandler
	Superprompt   *superpromptHandlers.SuperpromptHandler
	ChangeRequest *changerequestHandlers.ChangeRequestHandler
	Execution     *executionHandlers.ExecutionHandler
	Audit         *auditHandlers.AuditHandler
}

// BuildContainer 装配所有服务依赖
func BuildContainer(db *gorm.DB, cfg *config.Config) *AppContainer {
	container := &AppContainer{
		DB:     db,
		Config: cfg,
	}

	// Redis 可选：解析缓存与任务队列都依赖它，未启用时二者退化关闭
	if cfg.Redis.Enabled {
		rdb, err := infra.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis 不可用，解析缓存与异步任务将被禁用", zap.Error(err))
		} else {
			container.RedisClient = rdb
			container.QueueClient = queue.NewClient(cfg.Redis)
		}
	}

	var resolveCache *superprompt.ResolveCache
	if container.RedisClient != nil && cfg.Resolver.CacheEnabled {
		resolveCache = superprompt.NewResolveCache(container.RedisClient, cfg.Resolver.CacheTTLSeconds)
	}

	container.JWTService = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenMinutes)
	container.AuditLogger = audit.NewLogger(db)
	container.OrganizationService = organization.NewService(db)
	container.TemplateService = template.NewService(db, container.AuditLogger)
	container.SuperpromptService = superprompt.NewService(db, resolveCache, container.AuditLogger)
	container.Resolver = superprompt.NewResolver(db, resolveCache)
	container.ChangeRequestService = changerequest.NewService(
		db,
		container.SuperpromptService,
		container.TemplateService,
		container.QueueClient,
		container.AuditLogger,
	)
	container.ExecutionService = execution.NewService(
		container.Resolver,
		ai.NewCompleter(cfg.AI.OpenAI),
		container.QueueClient,
	)

	return container
}

// BuildHandlers 装配所有 HTTP Handler
func BuildHandlers(c *AppContainer) *Handlers {
	return &Handlers{
		Auth:          authHandlers.NewAuthHandler(c.OrganizationService, c.JWTService, c.AuditLogger),
		Organization:  organizationHandlers.NewOrganizationHandler(c.OrganizationService),
		Template:      templateHandlers.NewTemplateHandler(c.TemplateService),
		Superprompt:   superpromptHandlers.NewSuperpromptHandler(c.SuperpromptService, c.Resolver),
		ChangeRequest: changerequestHandlers.NewChangeRequestHandler(c.ChangeRequestService),
		Execution:     executionHandlers.NewExecutionHandler(c.ExecutionService),
		Audit:         auditHandlers.NewAuditHandler(c.AuditLogger),
	}
}

// SetupRouter 设置并返回 Gin 路由和 Worker 服务器
// Redis 未启用时 Worker 为 nil，调用方据此决定是否启动。
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *worker.Server) {
	gin.SetMode(ginMode(cfg.Server.Mode))

	container := BuildContainer(db, cfg)
	handlers := BuildHandlers(container)

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), CORS())

	RegisterRoutes(router, container, handlers)

	var workerServer *worker.Server
	if container.RedisClient != nil {
		workerServer = worker.NewServer(cfg.Redis, db, logger.Get())
	}

	return router, workerServer
}

func ginMode(mode string) string {
	switch mode {
	case "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
