package organization

import (
	"context"
	"errors"
	"fmt"

	"ki2go/internal/auth"
	"ki2go/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service 组织与用户管理服务
type Service struct {
	db *gorm.DB
}

// NewService 创建 Service 实例
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateOrganizationRequest 创建组织请求
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateOrganization 创建组织
func (s *Service) CreateOrganization(ctx context.Context, req *CreateOrganizationRequest) (*Organization, error) {
	if req.Name == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "组织名称不能为空")
	}

	org := &Organization{
		ID:     uuid.New().String(),
		Name:   req.Name,
		Status: "active",
	}
	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		return nil, fmt.Errorf("创建组织失败: %w", err)
	}
	return org, nil
}

// GetOrganization 查询单个组织
func (s *Service) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	err := s.db.WithContext(ctx).
		Scopes(common.NotDeleted()).
		Where("id = ?", id).
		First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessErrorWithCode(common.CodeOrganizationNotFound)
		}
		return nil, fmt.Errorf("查询组织失败: %w", err)
	}
	return &org, nil
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	OrganizationID *string `json:"organizationId"`
	Email          string  `json:"email" binding:"required,email"`
	Password       string  `json:"password" binding:"required,min=8"`
	DisplayName    string  `json:"displayName"`
	Role           string  `json:"role"`
}

// CreateUser 创建用户
func (s *Service) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "邮箱和密码不能为空")
	}

	role := req.Role
	if role == "" {
		role = auth.RoleCustomer
	}
	if role != auth.RoleAdmin && role != auth.RoleCustomer {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "角色无效")
	}

	if req.OrganizationID != nil {
		if _, err := s.GetOrganization(ctx, *req.OrganizationID); err != nil {
			return nil, err
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:             uuid.New().String(),
		OrganizationID: req.OrganizationID,
		Email:          req.Email,
		PasswordHash:   hash,
		DisplayName:    req.DisplayName,
		Role:           role,
		Status:         "active",
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return user, nil
}

// GetUser 查询单个用户
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Scopes(common.NotDeleted()).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessErrorWithCode(common.CodeUserNotFound)
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// Authenticate 校验邮箱与密码，返回可登录的用户
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Scopes(common.NotDeleted()).
		Where("email = ? AND status = ?", email, "active").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessErrorWithCode(common.CodeInvalidCredentials)
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, common.NewBusinessErrorWithCode(common.CodeInvalidCredentials)
	}

	return &user, nil
}
