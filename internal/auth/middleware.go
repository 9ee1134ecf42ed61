package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware JWT 认证中间件
func AuthMiddleware(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "缺少认证令牌",
			})
			c.Abort()
			return
		}

		token := ExtractTokenFromBearer(authHeader)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "无效的令牌格式",
			})
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "令牌验证失败: " + err.Error(),
			})
			c.Abort()
			return
		}

		if claims.TokenType != "access" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "令牌类型错误",
			})
			c.Abort()
			return
		}

		// 将用户信息存入上下文
		c.Set(string(UserContextKey), &UserContext{
			UserID:         claims.UserID,
			OrganizationID: claims.OrganizationID,
			Role:           claims.Role,
		})

		c.Next()
	}
}

// RequireAdmin 管理员权限检查中间件
// 必须挂载在 AuthMiddleware 之后。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "未认证",
			})
			c.Abort()
			return
		}

		if !userCtx.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "需要管理员权限",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
