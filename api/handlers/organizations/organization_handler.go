package organizations

import (
	"github.com/gin-gonic/gin"

	"ki2go/internal/common"
	"ki2go/internal/organization"
)

// OrganizationHandler 组织与用户管理 Handler
type OrganizationHandler struct {
	service *organization.Service
}

// NewOrganizationHandler 创建 OrganizationHandler 实例
func NewOrganizationHandler(service *organization.Service) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

// CreateOrganization 创建组织
// POST /api/organizations
func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	var req organization.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	org, err := h.service.CreateOrganization(c.Request.Context(), &req)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, org)
}

// GetOrganization 查询单个组织
// GET /api/organizations/:id
func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	org, err := h.service.GetOrganization(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, org)
}

// CreateUser 创建用户
// POST /api/users
func (h *OrganizationHandler) CreateUser(c *gin.Context) {
	var req organization.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), &req)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, user)
}
