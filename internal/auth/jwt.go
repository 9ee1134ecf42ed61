package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims JWT 令牌声明
type Claims struct {
	UserID         string `json:"uid"`
	OrganizationID string `json:"org,omitempty"`
	Role           string `json:"role"`
	TokenType      string `json:"typ"` // access
	jwt.RegisteredClaims
}

// JWTService JWT 令牌签发与验证服务
type JWTService struct {
	secret       []byte
	issuer       string
	accessExpiry time.Duration
}

// NewJWTService 创建 JWTService 实例
// accessTokenMinutes <= 0 时默认 60 分钟
func NewJWTService(secret, issuer string, accessTokenMinutes int) *JWTService {
	if accessTokenMinutes <= 0 {
		accessTokenMinutes = 60
	}
	return &JWTService{
		secret:       []byte(secret),
		issuer:       issuer,
		accessExpiry: time.Duration(accessTokenMinutes) * time.Minute,
	}
}

// GenerateAccessToken 签发访问令牌
func (s *JWTService) GenerateAccessToken(userID, organizationID, role string) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID:         userID,
		OrganizationID: organizationID,
		Role:           role,
		TokenType:      "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("签发令牌失败: %w", err)
	}
	return signed, nil
}

// ValidateToken 验证令牌并返回声明
func (s *JWTService) ValidateToken(_ context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名算法: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("解析令牌失败: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("令牌无效")
	}
	return claims, nil
}

// ExtractTokenFromBearer 从 "Bearer xxx" 头中提取纯令牌
func ExtractTokenFromBearer(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) > len(prefix) && authHeader[:len(prefix)] == prefix {
		return authHeader[len(prefix):]
	}
	return ""
}
