package auditlogs

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"ki2go/internal/audit"
	"ki2go/internal/common"
)

// AuditHandler 审计日志查询 Handler
type AuditHandler struct {
	logger *audit.Logger
}

// NewAuditHandler 创建 AuditHandler 实例
func NewAuditHandler(auditLogger *audit.Logger) *AuditHandler {
	return &AuditHandler{logger: auditLogger}
}

// ListByResource 按资源查询审计日志
// GET /api/audit-logs?resource=custom_superprompt&resource_id=xxx&limit=50
func (h *AuditHandler) ListByResource(c *gin.Context) {
	resource := c.Query("resource")
	resourceID := c.Query("resource_id")
	if resource == "" || resourceID == "" {
		common.ResponseBadRequest(c, "resource 与 resource_id 不能为空")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	logs, err := h.logger.ListByResource(c.Request.Context(), resource, resourceID, limit)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, logs)
}
