package superprompt

import (
	"context"
	"errors"
	"fmt"

	"ki2go/internal/audit"
	"ki2go/internal/common"
	"ki2go/internal/template"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service 自定义模板（Override）存储服务
//
// 所有多语句变更均在单个事务内完成；版本递增通过 UPDATE 的
// WHERE version = ? 条件做乐观校验，杜绝并发丢失更新。
type Service struct {
	db    *gorm.DB
	cache *ResolveCache // 可为 nil（未启用缓存）
	audit *audit.Logger
}

// NewService 创建 Service 实例
func NewService(db *gorm.DB, cache *ResolveCache, auditLogger *audit.Logger) *Service {
	return &Service{db: db, cache: cache, audit: auditLogger}
}

// deriveTargetType 由目标字段推导范围类型，二者同时指定视为非法
func deriveTargetType(organizationID, userID *string) (string, error) {
	hasOrg := organizationID != nil && *organizationID != ""
	hasUser := userID != nil && *userID != ""

	switch {
	case hasOrg && hasUser:
		return "", common.NewBusinessErrorWithCode(common.CodeInvalidTarget)
	case hasUser:
		return TargetUser, nil
	case hasOrg:
		return TargetOrganization, nil
	default:
		return TargetGlobal, nil
	}
}

// normalizeTarget 将空字符串指针归一化为 nil
func normalizeTarget(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}

// CreateRequest 创建自定义模板请求
type CreateRequest struct {
	BaseTemplateID string         `json:"baseTemplateId" binding:"required"`
	OrganizationID *string        `json:"organizationId"`
	UserID         *string        `json:"userId"`
	Name           string         `json:"name" binding:"required"`
	Description    string         `json:"description"`
	Superprompt    string         `json:"superprompt" binding:"required"`
	Metadata       map[string]any `json:"metadata"`
	Actor          string         `json:"-"`
}

// Create 创建自定义模板，版本从 1 开始并写入初始历史条目
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*CustomSuperprompt, error) {
	if req.Name == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "模板名称不能为空")
	}
	if req.Superprompt == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "Superprompt 内容不能为空")
	}

	orgID := normalizeTarget(req.OrganizationID)
	userID := normalizeTarget(req.UserID)
	targetType, err := deriveTargetType(orgID, userID)
	if err != nil {
		return nil, err
	}

	base, err := s.baseTemplate(ctx, req.BaseTemplateID)
	if err != nil {
		return nil, err
	}

	targetID := orgID
	if targetType == TargetUser {
		targetID = userID
	}

	sp := &CustomSuperprompt{
		ID:             uuid.New().String(),
		BaseTemplateID: base.ID,
		OrganizationID: orgID,
		UserID:         userID,
		TargetType:     targetType,
		Name:           req.Name,
		Description:    req.Description,
		Superprompt:    req.Superprompt,
		Status:         StatusActive,
		IsActive:       true,
		Version:        1,
		UniqueID:       BuildUniqueID(base.UniqueID, targetType, targetID, 1),
		Metadata:       req.Metadata,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sp).Error; err != nil {
			return fmt.Errorf("创建自定义模板失败: %w", err)
		}
		return appendHistory(tx, sp.ID, 1, req.Superprompt, req.Actor, InitialChangeDescription)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, sp.BaseTemplateID)
	s.audit.LogAction(ctx, nil, req.Actor, orgID, audit.EventSuperpromptCreate, "custom_superprompt", sp.ID, map[string]any{
		"base_template_id": sp.BaseTemplateID,
		"target_type":      targetType,
	})
	return sp, nil
}

// Get 查询单个自定义模板
func (s *Service) Get(ctx context.Context, id string) (*CustomSuperprompt, error) {
	return getSuperprompt(s.db.WithContext(ctx), id)
}

func getSuperprompt(db *gorm.DB, id string) (*CustomSuperprompt, error) {
	var sp CustomSuperprompt
	if err := db.Where("id = ?", id).First(&sp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessErrorWithCode(common.CodeSuperpromptNotFound)
		}
		return nil, fmt.Errorf("查询自定义模板失败: %w", err)
	}
	return &sp, nil
}

// ListRequest 查询自定义模板列表请求
type ListRequest struct {
	BaseTemplateID string `form:"base_template_id"`
	OrganizationID string `form:"organization_id"`
	Status         string `form:"status"`
	TargetType     string `form:"target_type"`
	common.PaginationRequest
}

// List 查询自定义模板列表（支持过滤）
func (s *Service) List(ctx context.Context, req *ListRequest) ([]*CustomSuperprompt, int64, error) {
	query := s.db.WithContext(ctx).Model(&CustomSuperprompt{})

	if req.BaseTemplateID != "" {
		query = query.Where("base_template_id = ?", req.BaseTemplateID)
	}
	if req.OrganizationID != "" {
		query = query.Where("organization_id = ?", req.OrganizationID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.TargetType != "" {
		query = query.Where("target_type = ?", req.TargetType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计自定义模板数量失败: %w", err)
	}

	var items []*CustomSuperprompt
	err := query.
		Order("created_at DESC").
		Limit(req.GetPageSize()).
		Offset(req.GetOffset()).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询自定义模板列表失败: %w", err)
	}

	return items, total, nil
}

// UpdatePatch 稀疏补丁：nil 表示不修改该字段
//
// Superprompt 变更触发版本递增并写入历史；纯元数据修改不动版本。
// ExpectedVersion 非 nil 时做乐观并发校验，不匹配返回版本冲突。
type UpdatePatch struct {
	Name              *string        `json:"name"`
	Description       *string        `json:"description"`
	Superprompt       *string        `json:"superprompt"`
	Metadata          map[string]any `json:"metadata"`
	ChangeDescription string         `json:"changeDescription"`
	ExpectedVersion   *int           `json:"expectedVersion"`
	Actor             string         `json:"-"`
}

// Update 按补丁更新自定义模板，返回更新后的记录
func (s *Service) Update(ctx context.Context, id string, patch *UpdatePatch) (*CustomSuperprompt, error) {
	var updated *CustomSuperprompt

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getSuperprompt(tx, id)
		if err != nil {
			return err
		}

		if patch.ExpectedVersion != nil && *patch.ExpectedVersion != current.Version {
			return common.NewBusinessErrorWithCode(common.CodeVersionConflict)
		}

		updates := make(map[string]any)
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.Metadata != nil {
			updates["metadata"] = datatypes.JSONMap(patch.Metadata)
		}

		contentChanged := patch.Superprompt != nil && *patch.Superprompt != current.Superprompt
		newVersion := current.Version
		if contentChanged {
			if *patch.Superprompt == "" {
				return common.NewBusinessError(common.CodeInvalidRequest, "Superprompt 内容不能为空")
			}
			newVersion = current.Version + 1
			updates["superprompt"] = *patch.Superprompt
			updates["version"] = newVersion
			updates["unique_id"] = BuildUniqueID(
				s.baseUniqueID(tx, current.BaseTemplateID),
				current.TargetType, currentTargetID(current), newVersion,
			)
		}

		if len(updates) == 0 {
			updated = current
			return nil
		}

		// WHERE version = 旧版本：与并发编辑碰撞时零行命中，整个事务回滚
		result := tx.Model(&CustomSuperprompt{}).
			Where("id = ? AND version = ?", id, current.Version).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("更新自定义模板失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return common.NewBusinessErrorWithCode(common.CodeVersionConflict)
		}

		if contentChanged {
			desc := patch.ChangeDescription
			if desc == "" {
				desc = DefaultChangeDescription
			}
			if err := appendHistory(tx, id, newVersion, *patch.Superprompt, patch.Actor, desc); err != nil {
				return err
			}
		}

		updated, err = getSuperprompt(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, updated.BaseTemplateID)
	s.audit.LogAction(ctx, nil, patch.Actor, updated.OrganizationID, audit.EventSuperpromptUpdate, "custom_superprompt", id, map[string]any{
		"version": updated.Version,
	})
	return updated, nil
}

// AssignTarget 重新指定目标范围并重建展示标识
// 不触碰版本与历史。
func (s *Service) AssignTarget(ctx context.Context, id string, organizationID, userID *string, actor string) (*CustomSuperprompt, error) {
	orgID := normalizeTarget(organizationID)
	uid := normalizeTarget(userID)
	targetType, err := deriveTargetType(orgID, uid)
	if err != nil {
		return nil, err
	}

	var updated *CustomSuperprompt
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getSuperprompt(tx, id)
		if err != nil {
			return err
		}

		targetID := orgID
		if targetType == TargetUser {
			targetID = uid
		}

		updates := map[string]any{
			"organization_id": orgID,
			"user_id":         uid,
			"target_type":     targetType,
			"unique_id": BuildUniqueID(
				s.baseUniqueID(tx, current.BaseTemplateID),
				targetType, targetID, current.Version,
			),
		}
		if err := tx.Model(current).Updates(updates).Error; err != nil {
			return fmt.Errorf("重定目标失败: %w", err)
		}

		updated, err = getSuperprompt(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, updated.BaseTemplateID)
	s.audit.LogAction(ctx, nil, actor, orgID, audit.EventSuperpromptRetarget, "custom_superprompt", id, map[string]any{
		"target_type": targetType,
	})
	return updated, nil
}

// SetStatus 状态切换，遗留的 isActive 标志随状态联动
func (s *Service) SetStatus(ctx context.Context, id, status, actor string) error {
	if !ValidStatuses[status] {
		return common.NewBusinessErrorWithCode(common.CodeInvalidStatus)
	}

	sp, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Model(sp).Updates(map[string]any{
		"status":    status,
		"is_active": status == StatusActive,
	}).Error
	if err != nil {
		return fmt.Errorf("更新状态失败: %w", err)
	}

	s.cache.Invalidate(ctx, sp.BaseTemplateID)
	s.audit.LogAction(ctx, nil, actor, sp.OrganizationID, audit.EventSuperpromptStatus, "custom_superprompt", id, map[string]any{
		"status": status,
	})
	return nil
}

// Delete 删除自定义模板并级联删除其全部历史
// 记录不存在时静默成功（幂等），绝不触碰无关行。
func (s *Service) Delete(ctx context.Context, id, actor string) error {
	sp, err := s.Get(ctx, id)
	if err != nil {
		var be *common.BusinessError
		if errors.As(err, &be) && be.Code == common.CodeSuperpromptNotFound {
			return nil
		}
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("superprompt_id = ?", id).Delete(&HistoryEntry{}).Error; err != nil {
			return fmt.Errorf("删除版本历史失败: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&CustomSuperprompt{}).Error; err != nil {
			return fmt.Errorf("删除自定义模板失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, sp.BaseTemplateID)
	s.audit.LogAction(ctx, nil, actor, sp.OrganizationID, audit.EventSuperpromptDelete, "custom_superprompt", id, nil)
	return nil
}

// SetStatusTx 在调用方事务内切换状态，不触发缓存失效与审计
// 供 Change Request 流程对 Override 加锁/解锁使用。
func (s *Service) SetStatusTx(tx *gorm.DB, id, status string) error {
	if !ValidStatuses[status] {
		return common.NewBusinessErrorWithCode(common.CodeInvalidStatus)
	}

	result := tx.Model(&CustomSuperprompt{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":    status,
			"is_active": status == StatusActive,
		})
	if result.Error != nil {
		return fmt.Errorf("更新状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return common.NewBusinessErrorWithCode(common.CodeSuperpromptNotFound)
	}
	return nil
}

// ApplyChangeRequest 实施 Change Request 的内容替换请求
type ApplyChangeRequest struct {
	SuperpromptID     string
	NewSuperprompt    string
	ChangeDescription string
	Actor             string
}

// ApplyChange 在调用方事务内实施一次审核通过的内容替换。
//
// 顺序是硬约束：先把当前内容按当前版本号快照进历史（变更前文本不可丢失），
// 再覆盖内容、版本 +1、状态恢复为 active。返回替换后的记录。
func (s *Service) ApplyChange(ctx context.Context, tx *gorm.DB, req *ApplyChangeRequest) (*CustomSuperprompt, error) {
	if req.NewSuperprompt == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "Superprompt 内容不能为空")
	}

	current, err := getSuperprompt(tx, req.SuperpromptID)
	if err != nil {
		return nil, err
	}

	if err := appendHistory(tx, current.ID, current.Version, current.Superprompt, req.Actor, SnapshotChangeDescription); err != nil {
		return nil, err
	}

	newVersion := current.Version + 1
	result := tx.Model(&CustomSuperprompt{}).
		Where("id = ? AND version = ?", current.ID, current.Version).
		Updates(map[string]any{
			"superprompt": req.NewSuperprompt,
			"version":     newVersion,
			"status":      StatusActive,
			"is_active":   true,
			"unique_id": BuildUniqueID(
				s.baseUniqueID(tx, current.BaseTemplateID),
				current.TargetType, currentTargetID(current), newVersion,
			),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("实施内容替换失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, common.NewBusinessErrorWithCode(common.CodeVersionConflict)
	}

	desc := req.ChangeDescription
	if desc == "" {
		desc = DefaultChangeDescription
	}
	if err := appendHistory(tx, current.ID, newVersion, req.NewSuperprompt, req.Actor, desc); err != nil {
		return nil, err
	}

	return getSuperprompt(tx, current.ID)
}

// InvalidateResolutionCache 使指定基础模板的解析缓存失效
func (s *Service) InvalidateResolutionCache(ctx context.Context, baseTemplateID string) {
	s.cache.Invalidate(ctx, baseTemplateID)
}

// baseTemplate 查询基础模板，不存在时返回 CodeTemplateNotFound
func (s *Service) baseTemplate(ctx context.Context, id string) (*template.BaseTemplate, error) {
	var tmpl template.BaseTemplate
	err := s.db.WithContext(ctx).
		Scopes(common.NotDeleted()).
		Where("id = ?", id).
		First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessErrorWithCode(common.CodeTemplateNotFound)
		}
		return nil, fmt.Errorf("查询基础模板失败: %w", err)
	}
	return &tmpl, nil
}

// baseUniqueID 查询基础模板的展示标识；查不到时退化为模板ID
func (s *Service) baseUniqueID(db *gorm.DB, baseTemplateID string) string {
	var tmpl template.BaseTemplate
	if err := db.Where("id = ?", baseTemplateID).First(&tmpl).Error; err != nil {
		return baseTemplateID
	}
	return tmpl.UniqueID
}

// currentTargetID 取当前目标标识（用户级取用户，组织级取组织）
func currentTargetID(sp *CustomSuperprompt) *string {
	if sp.TargetType == TargetUser {
		return sp.UserID
	}
	return sp.OrganizationID
}
