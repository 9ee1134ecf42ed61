package templates

import (
	"github.com/gin-gonic/gin"

	"ki2go/internal/auth"
	"ki2go/internal/common"
	"ki2go/internal/template"
)

// TemplateHandler 基础模板管理 Handler
type TemplateHandler struct {
	service *template.Service
}

// NewTemplateHandler 创建 TemplateHandler 实例
func NewTemplateHandler(service *template.Service) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// ListTemplates 查询基础模板列表
// GET /api/templates?keyword=&page=1&page_size=20
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	var req template.ListRequest
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

// GetTemplate 查询单个基础模板
// GET /api/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tmpl, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, tmpl)
}

// CreateTemplate 创建基础模板
// POST /api/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req template.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.Actor = auth.MustUserContext(c).UserID

	tmpl, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, tmpl)
}

// UpdateTemplate 更新基础模板
// PUT /api/templates/:id
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	var req template.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.Actor = auth.MustUserContext(c).UserID

	tmpl, err := h.service.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, tmpl)
}
