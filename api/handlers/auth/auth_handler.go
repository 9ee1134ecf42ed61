package auth

import (
	"github.com/gin-gonic/gin"

	"ki2go/internal/audit"
	"ki2go/internal/auth"
	"ki2go/internal/common"
	"ki2go/internal/organization"
)

// AuthHandler 认证 Handler
type AuthHandler struct {
	organizations *organization.Service
	jwt           *auth.JWTService
	audit         *audit.Logger
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(organizations *organization.Service, jwtService *auth.JWTService, auditLogger *audit.Logger) *AuthHandler {
	return &AuthHandler{organizations: organizations, jwt: jwtService, audit: auditLogger}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	AccessToken string             `json:"accessToken"`
	User        *organization.User `json:"user"`
}

// Login 用户登录
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.organizations.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		h.audit.LogAction(ctx, nil, req.Email, nil, audit.EventUserLoginFailed, "user", req.Email, nil)
		common.ResponseFromError(c, err)
		return
	}

	orgID := ""
	if user.OrganizationID != nil {
		orgID = *user.OrganizationID
	}
	token, err := h.jwt.GenerateAccessToken(user.ID, orgID, user.Role)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}

	h.audit.LogAction(ctx, nil, user.ID, user.OrganizationID, audit.EventUserLogin, "user", user.ID, nil)
	common.ResponseSuccess(c, &LoginResponse{AccessToken: token, User: user})
}
