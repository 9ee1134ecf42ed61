package superprompt

import (
	"context"
	"errors"
	"fmt"

	"ki2go/internal/common"
	"ki2go/internal/metrics"
	"ki2go/internal/template"

	"gorm.io/gorm"
)

// Resolver 解析引擎：为一次调用上下文确定生效的 Superprompt。
//
// 严格按 用户级 → 组织级 → 全局 → 基础模板 的优先级取第一个命中，
// 非 active 状态的变体在任何层级都会被跳过并继续向下回退。
// 无副作用，可高频调用。
type Resolver struct {
	db    *gorm.DB
	cache *ResolveCache // 可为 nil
}

// NewResolver 创建 Resolver 实例
func NewResolver(db *gorm.DB, cache *ResolveCache) *Resolver {
	return &Resolver{db: db, cache: cache}
}

// Resolve 解析生效模板
// userID 为空表示无用户上下文；organizationID 为 nil 表示无组织上下文。
func (r *Resolver) Resolve(ctx context.Context, baseTemplateID, userID string, organizationID *string) (*Resolution, error) {
	orgID := ""
	if organizationID != nil {
		orgID = *organizationID
	}

	if cached, ok := r.cache.Get(ctx, baseTemplateID, orgID, userID); ok {
		metrics.ResolutionsTotal.WithLabelValues(cached.Type, "hit").Inc()
		return cached, nil
	}

	res, err := r.resolve(ctx, baseTemplateID, userID, orgID)
	if err != nil {
		return nil, err
	}

	r.cache.Set(ctx, baseTemplateID, orgID, userID, res)
	metrics.ResolutionsTotal.WithLabelValues(res.Type, "miss").Inc()
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, baseTemplateID, userID, orgID string) (*Resolution, error) {
	// 1. 用户级
	if userID != "" {
		sp, err := r.findResolvable(ctx, "base_template_id = ? AND user_id = ?", baseTemplateID, userID)
		if err != nil {
			return nil, err
		}
		if sp != nil {
			return overrideResolution(ResolutionUser, sp), nil
		}
	}

	// 2. 组织级（user_id 必须为空，避免命中他人的用户级变体）
	if orgID != "" {
		sp, err := r.findResolvable(ctx, "base_template_id = ? AND organization_id = ? AND user_id IS NULL", baseTemplateID, orgID)
		if err != nil {
			return nil, err
		}
		if sp != nil {
			return overrideResolution(ResolutionOrganization, sp), nil
		}
	}

	// 3. 全局自定义
	sp, err := r.findResolvable(ctx, "base_template_id = ? AND organization_id IS NULL AND user_id IS NULL", baseTemplateID)
	if err != nil {
		return nil, err
	}
	if sp != nil {
		return overrideResolution(ResolutionGlobal, sp), nil
	}

	// 4. 基础模板本身
	var base template.BaseTemplate
	err = r.db.WithContext(ctx).
		Scopes(common.NotDeleted()).
		Where("id = ?", baseTemplateID).
		First(&base).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessErrorWithCode(common.CodeTemplateNotFound)
		}
		return nil, fmt.Errorf("查询基础模板失败: %w", err)
	}

	return &Resolution{
		Type:           ResolutionBase,
		BaseTemplateID: base.ID,
		Superprompt:    base.Superprompt,
	}, nil
}

// findResolvable 查询指定条件下可被选中的变体；无命中返回 (nil, nil)
func (r *Resolver) findResolvable(ctx context.Context, query string, args ...any) (*CustomSuperprompt, error) {
	var sp CustomSuperprompt
	err := r.db.WithContext(ctx).
		Where(query, args...).
		Where("status = ? OR (status = '' AND is_active = ?)", StatusActive, true).
		Order("updated_at DESC").
		First(&sp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询自定义模板失败: %w", err)
	}
	return &sp, nil
}

func overrideResolution(resType string, sp *CustomSuperprompt) *Resolution {
	return &Resolution{
		Type:           resType,
		BaseTemplateID: sp.BaseTemplateID,
		Superprompt:    sp.Superprompt,
		Override:       sp,
	}
}
