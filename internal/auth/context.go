package auth

import "github.com/gin-gonic/gin"

// 角色定义
const (
	RoleAdmin    = "admin"    // 平台管理员
	RoleCustomer = "customer" // 普通客户用户
)

// ContextKey 上下文键类型
type ContextKey string

// UserContextKey 用户上下文键
const UserContextKey ContextKey = "user"

// UserContext 每次调用携带的身份上下文
// OrganizationID 可能为空（平台管理员不一定归属某个组织）。
type UserContext struct {
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId,omitempty"`
	Role           string `json:"role"`
}

// IsAdmin 判断调用者是否为平台管理员
func (u *UserContext) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// GetUserContext 从 gin 上下文获取用户上下文
func GetUserContext(c *gin.Context) (*UserContext, bool) {
	value, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil, false
	}
	userCtx, ok := value.(*UserContext)
	return userCtx, ok
}

// MustUserContext 获取用户上下文，未认证时返回空上下文
// 仅用于已挂载 AuthMiddleware 的路由。
func MustUserContext(c *gin.Context) *UserContext {
	if userCtx, ok := GetUserContext(c); ok {
		return userCtx
	}
	return &UserContext{}
}
