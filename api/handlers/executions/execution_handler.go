package executions

import (
	"github.com/gin-gonic/gin"

	"ki2go/internal/auth"
	"ki2go/internal/common"
	"ki2go/internal/execution"
)

// ExecutionHandler 任务执行 Handler
type ExecutionHandler struct {
	service *execution.Service
}

// NewExecutionHandler 创建 ExecutionHandler 实例
func NewExecutionHandler(service *execution.Service) *ExecutionHandler {
	return &ExecutionHandler{service: service}
}

// RunTask 执行一次任务
// POST /api/executions
func (h *ExecutionHandler) RunTask(c *gin.Context) {
	var req execution.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	caller := auth.MustUserContext(c)
	req.UserID = caller.UserID
	if caller.OrganizationID != "" {
		req.OrganizationID = &caller.OrganizationID
	}

	result, err := h.service.Run(c.Request.Context(), &req)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}
