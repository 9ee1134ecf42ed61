package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ki2go/internal/auth"
	"ki2go/internal/infra"
	"ki2go/internal/metrics"
)

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, container *AppContainer, h *Handlers) {
	router.Use(metrics.Middleware())

	router.GET("/health", healthCheck)
	router.GET("/metrics", metrics.Handler())

	// 认证 API（公开，不需要 JWT）
	router.POST("/api/auth/login", h.Auth.Login)

	api := router.Group("/api")
	api.Use(auth.AuthMiddleware(container.JWTService))

	admin := auth.RequireAdmin()

	// 组织与用户管理
	api.POST("/organizations", admin, h.Organization.CreateOrganization)
	api.GET("/organizations/:id", admin, h.Organization.GetOrganization)
	api.POST("/users", admin, h.Organization.CreateUser)

	// 基础模板管理
	api.GET("/templates", admin, h.Template.ListTemplates)
	api.POST("/templates", admin, h.Template.CreateTemplate)
	api.GET("/templates/:id", h.Template.GetTemplate)
	api.PUT("/templates/:id", admin, h.Template.UpdateTemplate)

	// 自定义模板管理与解析
	api.POST("/superprompts", admin, h.Superprompt.CreateSuperprompt)
	api.GET("/superprompts", admin, h.Superprompt.ListSuperprompts)
	api.POST("/superprompts/resolve", h.Superprompt.Resolve)
	api.GET("/superprompts/:id", admin, h.Superprompt.GetSuperprompt)
	api.PATCH("/superprompts/:id", admin, h.Superprompt.UpdateSuperprompt)
	api.PUT("/superprompts/:id/target", admin, h.Superprompt.AssignTarget)
	api.PUT("/superprompts/:id/status", admin, h.Superprompt.SetStatus)
	api.DELETE("/superprompts/:id", admin, h.Superprompt.DeleteSuperprompt)
	api.GET("/superprompts/:id/history", admin, h.Superprompt.ListHistory)
	api.GET("/superprompts/:id/history/diff", admin, h.Superprompt.DiffHistory)

	// 变更请求工作流
	api.POST("/change-requests", h.ChangeRequest.SubmitChangeRequest)
	api.GET("/change-requests", admin, h.ChangeRequest.ListChangeRequests)
	api.GET("/change-requests/:id", admin, h.ChangeRequest.GetChangeRequest)
	api.PUT("/change-requests/:id/process", admin, h.ChangeRequest.ProcessChangeRequest)

	// 任务执行
	api.POST("/executions", h.Execution.RunTask)

	// 审计日志
	api.GET("/audit-logs", admin, h.Audit.ListByResource)
}

// healthCheck 健康检查
func healthCheck(c *gin.Context) {
	status := "ok"
	httpStatus := http.StatusOK
	if err := infra.HealthCheck(); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, gin.H{"status": status})
}
