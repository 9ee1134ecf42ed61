package superprompts

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"ki2go/internal/auth"
	"ki2go/internal/common"
	"ki2go/internal/superprompt"
)

// SuperpromptHandler 自定义模板管理 Handler
type SuperpromptHandler struct {
	service  *superprompt.Service
	resolver *superprompt.Resolver
}

// NewSuperpromptHandler 创建 SuperpromptHandler 实例
func NewSuperpromptHandler(service *superprompt.Service, resolver *superprompt.Resolver) *SuperpromptHandler {
	return &SuperpromptHandler{service: service, resolver: resolver}
}

// CreateSuperprompt 创建自定义模板
// POST /api/superprompts
func (h *SuperpromptHandler) CreateSuperprompt(c *gin.Context) {
	var req superprompt.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.Actor = auth.MustUserContext(c).UserID

	sp, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, sp)
}

// ListSuperprompts 查询自定义模板列表
// GET /api/superprompts?base_template_id=&organization_id=&status=&target_type=
func (h *SuperpromptHandler) ListSuperprompts(c *gin.Context) {
	var req superprompt.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	items, total, err := h.service.List(c.Request.Context(), &req)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseList(c, items, total, &req.PaginationRequest)
}

// GetSuperprompt 查询单个自定义模板
// GET /api/superprompts/:id
func (h *SuperpromptHandler) GetSuperprompt(c *gin.Context) {
	sp, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, sp)
}

// UpdateSuperprompt 按稀疏补丁更新自定义模板
// PATCH /api/superprompts/:id
func (h *SuperpromptHandler) UpdateSuperprompt(c *gin.Context) {
	var patch superprompt.UpdatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	patch.Actor = auth.MustUserContext(c).UserID

	sp, err := h.service.Update(c.Request.Context(), c.Param("id"), &patch)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, sp)
}

// AssignTargetRequest 重定目标请求
type AssignTargetRequest struct {
	OrganizationID *string `json:"organizationId"`
	UserID         *string `json:"userId"`
}

// AssignTarget 重新指定目标范围
// PUT /api/superprompts/:id/target
func (h *SuperpromptHandler) AssignTarget(c *gin.Context) {
	var req AssignTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	sp, err := h.service.AssignTarget(c.Request.Context(), c.Param("id"),
		req.OrganizationID, req.UserID, auth.MustUserContext(c).UserID)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, sp)
}

// SetStatusRequest 状态切换请求
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus 切换状态
// PUT /api/superprompts/:id/status
func (h *SuperpromptHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req.Status, auth.MustUserContext(c).UserID)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, nil)
}

// DeleteSuperprompt 删除自定义模板（级联删除历史）
// DELETE /api/superprompts/:id
func (h *SuperpromptHandler) DeleteSuperprompt(c *gin.Context) {
	err := h.service.Delete(c.Request.Context(), c.Param("id"), auth.MustUserContext(c).UserID)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// ListHistory 查询版本历史
// GET /api/superprompts/:id/history?limit=50
func (h *SuperpromptHandler) ListHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, err := h.service.ListHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, entries)
}

// DiffHistory 生成两个历史版本之间的统一 diff
// GET /api/superprompts/:id/history/diff?from=1&to=3
func (h *SuperpromptHandler) DiffHistory(c *gin.Context) {
	from, err := strconv.Atoi(c.Query("from"))
	if err != nil {
		common.ResponseBadRequest(c, "from 必须为版本号")
		return
	}
	to, err := strconv.Atoi(c.Query("to"))
	if err != nil {
		common.ResponseBadRequest(c, "to 必须为版本号")
		return
	}

	diff, err := h.service.DiffVersions(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"diff": diff})
}

// ResolveRequest 解析请求
// UserID / OrganizationID 缺省时取调用方自身的身份。
type ResolveRequest struct {
	BaseTemplateID string  `json:"baseTemplateId" binding:"required"`
	UserID         *string `json:"userId"`
	OrganizationID *string `json:"organizationId"`
}

// Resolve 解析生效模板
// POST /api/superprompts/resolve
func (h *SuperpromptHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	caller := auth.MustUserContext(c)
	userID := caller.UserID
	if req.UserID != nil {
		userID = *req.UserID
	}
	orgID := req.OrganizationID
	if orgID == nil && caller.OrganizationID != "" {
		orgID = &caller.OrganizationID
	}

	res, err := h.resolver.Resolve(c.Request.Context(), req.BaseTemplateID, userID, orgID)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, res)
}
