package template

import (
	"context"
	"errors"
	"fmt"

	"ki2go/internal/audit"
	"ki2go/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service 基础模板管理服务
type Service struct {
	db    *gorm.DB
	audit *audit.Logger
}

// NewService 创建 Service 实例
func NewService(db *gorm.DB, auditLogger *audit.Logger) *Service {
	return &Service{db: db, audit: auditLogger}
}

// CreateRequest 创建基础模板请求
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	UniqueID    string `json:"uniqueId"`
	Description string `json:"description"`
	Superprompt string `json:"superprompt" binding:"required"`
	Actor       string `json:"-"`
}

// Create 创建基础模板
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*BaseTemplate, error) {
	if req.Name == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "模板名称不能为空")
	}
	if req.Superprompt == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "Superprompt 内容不能为空")
	}

	tmpl := &BaseTemplate{
		ID:          uuid.New().String(),
		Name:        req.Name,
		UniqueID:    req.UniqueID,
		Description: req.Description,
		Superprompt: req.Superprompt,
	}
	if tmpl.UniqueID == "" {
		tmpl.UniqueID = "KI2GO-" + tmpl.ID[:8]
	}

	if err := s.db.WithContext(ctx).Create(tmpl).Error; err != nil {
		return nil, fmt.Errorf("创建基础模板失败: %w", err)
	}

	s.audit.LogAction(ctx, nil, req.Actor, nil, audit.EventTemplateCreate, "base_template", tmpl.ID, nil)
	return tmpl, nil
}

// Get 查询单个基础模板
func (s *Service) Get(ctx context.Context, id string) (*BaseTemplate, error) {
	return getTemplate(s.db.WithContext(ctx), id)
}

// getTemplate 在给定连接/事务上查询基础模板
func getTemplate(db *gorm.DB, id string) (*BaseTemplate, error) {
	var tmpl BaseTemplate
	err := db.Scopes(common.NotDeleted()).Where("id = ?", id).First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessErrorWithCode(common.CodeTemplateNotFound)
		}
		return nil, fmt.Errorf("查询基础模板失败: %w", err)
	}
	return &tmpl, nil
}

// ListRequest 查询基础模板列表请求
type ListRequest struct {
	Keyword string `form:"keyword"`
	common.PaginationRequest
}

// List 查询基础模板列表
func (s *Service) List(ctx context.Context, req *ListRequest) ([]*BaseTemplate, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&BaseTemplate{}).
		Scopes(common.NotDeleted())

	if req.Keyword != "" {
		query = query.Where("name LIKE ?", "%"+req.Keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计基础模板数量失败: %w", err)
	}

	var templates []*BaseTemplate
	err := query.
		Order("created_at DESC").
		Limit(req.GetPageSize()).
		Offset(req.GetOffset()).
		Find(&templates).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询基础模板列表失败: %w", err)
	}

	return templates, total, nil
}

// UpdateRequest 更新基础模板请求（稀疏补丁）
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Superprompt *string `json:"superprompt"`
	Actor       string  `json:"-"`
}

// Update 更新基础模板
func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*BaseTemplate, error) {
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Superprompt != nil {
		if *req.Superprompt == "" {
			return nil, common.NewBusinessError(common.CodeInvalidRequest, "Superprompt 内容不能为空")
		}
		updates["superprompt"] = *req.Superprompt
	}
	if len(updates) == 0 {
		return tmpl, nil
	}

	if err := s.db.WithContext(ctx).Model(tmpl).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("更新基础模板失败: %w", err)
	}

	s.audit.LogAction(ctx, nil, req.Actor, nil, audit.EventTemplateUpdate, "base_template", id, nil)
	return s.Get(ctx, id)
}

// PromoteRequest 将某个 Superprompt 回写到基础模板的请求
type PromoteRequest struct {
	TemplateID       string // 目标基础模板
	Superprompt      string // 新内容
	SourceOverrideID string // 来源的自定义模板
	SourceRequestID  string // 触发回写的 Change Request（可为空）
	Actor            string // 执行回写的管理员
}

// PromoteSuperprompt 将审核通过的 Superprompt 内容回写到共享的基础模板。
//
// 这是一个影响面极大的操作：所有以该基础模板为回退层的调用方都会看到新内容。
// 因此它是独立命名、独立审计的操作，不作为普通更新的布尔开关存在。
// tx 不为 nil 时在该事务内执行（与 Change Request 处理同事务提交）。
func (s *Service) PromoteSuperprompt(ctx context.Context, tx *gorm.DB, req *PromoteRequest) error {
	if req.Superprompt == "" {
		return common.NewBusinessError(common.CodeInvalidRequest, "回写内容不能为空")
	}

	db := s.db
	if tx != nil {
		db = tx
	}
	db = db.WithContext(ctx)

	tmpl, err := getTemplate(db, req.TemplateID)
	if err != nil {
		return err
	}

	if err := db.Model(tmpl).Update("superprompt", req.Superprompt).Error; err != nil {
		return fmt.Errorf("回写基础模板失败: %w", err)
	}

	s.audit.LogAction(ctx, tx, req.Actor, nil, audit.EventTemplatePromote, "base_template", req.TemplateID, map[string]any{
		"source_override_id": req.SourceOverrideID,
		"source_request_id":  req.SourceRequestID,
	})
	return nil
}
