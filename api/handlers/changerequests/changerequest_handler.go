package changerequests

import (
	"github.com/gin-gonic/gin"

	"ki2go/internal/auth"
	"ki2go/internal/changerequest"
	"ki2go/internal/common"
)

// ChangeRequestHandler 变更请求工作流 Handler
type ChangeRequestHandler struct {
	service *changerequest.Service
}

// NewChangeRequestHandler 创建 ChangeRequestHandler 实例
func NewChangeRequestHandler(service *changerequest.Service) *ChangeRequestHandler {
	return &ChangeRequestHandler{service: service}
}

// SubmitChangeRequest 客户提交变更请求
// POST /api/change-requests
func (h *ChangeRequestHandler) SubmitChangeRequest(c *gin.Context) {
	var req changerequest.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.Requester = auth.MustUserContext(c)

	cr, err := h.service.Submit(c.Request.Context(), &req)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, cr)
}

// ListChangeRequests 查询变更请求列表（附全量状态计数）
// GET /api/change-requests?status=&priority=&superprompt_id=
func (h *ChangeRequestHandler) ListChangeRequests(c *gin.Context) {
	var req changerequest.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.service.List(c.Request.Context(), &req)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}

// GetChangeRequest 查询单个变更请求
// GET /api/change-requests/:id
func (h *ChangeRequestHandler) GetChangeRequest(c *gin.Context) {
	cr, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, cr)
}

// ProcessChangeRequest 管理员处理变更请求
// PUT /api/change-requests/:id/process
func (h *ChangeRequestHandler) ProcessChangeRequest(c *gin.Context) {
	var req changerequest.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.Actor = auth.MustUserContext(c).UserID

	cr, err := h.service.Process(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, cr)
}
