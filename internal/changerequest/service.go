package changerequest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ki2go/internal/audit"
	"ki2go/internal/auth"
	"ki2go/internal/common"
	"ki2go/internal/infra/queue"
	"ki2go/internal/logger"
	"ki2go/internal/metrics"
	"ki2go/internal/superprompt"
	"ki2go/internal/template"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service Change Request 工作流服务
//
// 提交与处理均在单个事务内完成对请求行和目标 Override 的联动变更；
// 请求行只追加、只流转，永不删除。
type Service struct {
	db           *gorm.DB
	superprompts *superprompt.Service
	templates    *template.Service
	queue        queue.Client // 可为 nil（未启用队列）
	audit        *audit.Logger
}

// NewService 创建 Service 实例
func NewService(db *gorm.DB, superprompts *superprompt.Service, templates *template.Service, queueClient queue.Client, auditLogger *audit.Logger) *Service {
	return &Service{
		db:           db,
		superprompts: superprompts,
		templates:    templates,
		queue:        queueClient,
		audit:        auditLogger,
	}
}

// SubmitRequest 客户提交变更请求
type SubmitRequest struct {
	SuperpromptID string `json:"superpromptId" binding:"required"`
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description" binding:"required"`
	Reason        string `json:"reason"`
	Priority      string `json:"priority"`

	Requester *auth.UserContext `json:"-"`
}

// Submit 提交变更请求
//
// 调用方必须是平台管理员，或目标 Override 的访问持有者
// （Override 指向该用户本人，或指向该用户所属组织）。
// 提交成功后目标 Override 进入 change_requested 状态，
// 解析引擎在请求处理完毕前不再选中它。
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*ChangeRequest, error) {
	if len(req.Title) < MinTitleLength {
		return nil, common.NewBusinessError(common.CodeInvalidRequest,
			fmt.Sprintf("标题不能少于 %d 个字符", MinTitleLength))
	}
	if len(req.Description) < MinDescriptionLength {
		return nil, common.NewBusinessError(common.CodeInvalidRequest,
			fmt.Sprintf("描述不能少于 %d 个字符", MinDescriptionLength))
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !ValidPriorities[priority] {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "无效的优先级")
	}
	if req.Requester == nil || req.Requester.UserID == "" {
		return nil, common.NewBusinessErrorWithCode(common.CodeUnauthorized)
	}

	sp, err := s.superprompts.Get(ctx, req.SuperpromptID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(req.Requester, sp) {
		return nil, common.NewBusinessErrorWithCode(common.CodeForbidden)
	}

	cr := &ChangeRequest{
		ID:             uuid.New().String(),
		SuperpromptID:  sp.ID,
		RequestedBy:    req.Requester.UserID,
		OrganizationID: sp.OrganizationID,
		Title:          req.Title,
		Description:    req.Description,
		Reason:         req.Reason,
		Priority:       priority,
		Status:         StatusOpen,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(cr).Error; err != nil {
			return fmt.Errorf("创建变更请求失败: %w", err)
		}
		// 锁定目标 Override，解析引擎回退到下一层级
		return s.superprompts.SetStatusTx(tx, sp.ID, superprompt.StatusChangeRequested)
	})
	if err != nil {
		return nil, err
	}

	s.superprompts.InvalidateResolutionCache(ctx, sp.BaseTemplateID)
	s.enqueueNotify(cr.ID)
	s.audit.LogAction(ctx, nil, req.Requester.UserID, sp.OrganizationID, audit.EventChangeRequestSubmit, "change_request", cr.ID, map[string]any{
		"superprompt_id": sp.ID,
		"priority":       priority,
	})
	metrics.ChangeRequestsTotal.WithLabelValues(StatusOpen).Inc()
	return cr, nil
}

// canAccess 判断调用方是否为目标 Override 的访问持有者
func (s *Service) canAccess(caller *auth.UserContext, sp *superprompt.CustomSuperprompt) bool {
	if caller.IsAdmin() {
		return true
	}
	if sp.UserID != nil && *sp.UserID == caller.UserID {
		return true
	}
	if sp.OrganizationID != nil && caller.OrganizationID != "" && *sp.OrganizationID == caller.OrganizationID {
		return true
	}
	return false
}

// ProcessRequest 管理员处理变更请求
type ProcessRequest struct {
	Status         string  `json:"status" binding:"required"`
	ReviewNote     string  `json:"reviewNote"`
	AssignedTo     *string `json:"assignedTo"`
	NewSuperprompt string  `json:"newSuperprompt"`
	PromoteToBase  bool    `json:"promoteToBase"`
	Actor          string  `json:"-"`
}

// Process 流转变更请求状态
//
// 终态请求拒绝任何再流转。状态为 implemented 且携带新内容时：
// 先快照旧内容、再覆盖并版本 +1、Override 恢复 active；
// 勾选 PromoteToBase 时额外将新内容回写到共享的基础模板（同事务）。
// rejected / closed 仅解除 Override 锁定，不改动其内容。
// CompletedAt 在首次进入终态时写入一次，之后不再变更。
func (s *Service) Process(ctx context.Context, id string, req *ProcessRequest) (*ChangeRequest, error) {
	if !ValidStatuses[req.Status] {
		return nil, common.NewBusinessErrorWithCode(common.CodeInvalidStatus)
	}

	var processed *ChangeRequest
	var baseTemplateID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cr, err := getChangeRequest(tx, id)
		if err != nil {
			return err
		}
		if IsTerminal(cr.Status) {
			return common.NewBusinessErrorWithCode(common.CodeChangeRequestClosed)
		}

		// 事务内记下基础模板，提交后据此失效解析缓存
		err = tx.Model(&superprompt.CustomSuperprompt{}).
			Select("base_template_id").
			Where("id = ?", cr.SuperpromptID).
			Scan(&baseTemplateID).Error
		if err != nil {
			return fmt.Errorf("查询目标 Override 失败: %w", err)
		}

		updates := map[string]any{"status": req.Status}
		if req.ReviewNote != "" {
			updates["review_note"] = req.ReviewNote
		}
		if req.AssignedTo != nil {
			updates["assigned_to"] = req.AssignedTo
		}
		if IsTerminal(req.Status) {
			now := time.Now()
			updates["completed_at"] = &now
		}

		switch req.Status {
		case StatusImplemented:
			if req.NewSuperprompt != "" {
				sp, err := s.superprompts.ApplyChange(ctx, tx, &superprompt.ApplyChangeRequest{
					SuperpromptID:     cr.SuperpromptID,
					NewSuperprompt:    req.NewSuperprompt,
					ChangeDescription: cr.Title,
					Actor:             req.Actor,
				})
				if err != nil {
					return err
				}
				if req.PromoteToBase {
					err = s.templates.PromoteSuperprompt(ctx, tx, &template.PromoteRequest{
						TemplateID:       sp.BaseTemplateID,
						Superprompt:      req.NewSuperprompt,
						SourceOverrideID: sp.ID,
						SourceRequestID:  cr.ID,
						Actor:            req.Actor,
					})
					if err != nil {
						return err
					}
				}
			} else {
				// 无新内容的 implemented：仅解除锁定
				if err := s.superprompts.SetStatusTx(tx, cr.SuperpromptID, superprompt.StatusActive); err != nil {
					return err
				}
			}
		case StatusRejected, StatusClosed:
			// 解除锁定，内容保持原样
			if err := s.superprompts.SetStatusTx(tx, cr.SuperpromptID, superprompt.StatusActive); err != nil {
				return err
			}
		}

		if err := tx.Model(cr).Updates(updates).Error; err != nil {
			return fmt.Errorf("更新变更请求失败: %w", err)
		}

		processed, err = getChangeRequest(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.superprompts.InvalidateResolutionCache(ctx, baseTemplateID)
	s.audit.LogAction(ctx, nil, req.Actor, processed.OrganizationID, audit.EventChangeRequestProcess, "change_request", id, map[string]any{
		"status":          req.Status,
		"promote_to_base": req.PromoteToBase,
	})
	metrics.ChangeRequestsTotal.WithLabelValues(req.Status).Inc()
	return processed, nil
}

// Get 查询单个变更请求
func (s *Service) Get(ctx context.Context, id string) (*ChangeRequest, error) {
	return getChangeRequest(s.db.WithContext(ctx), id)
}

func getChangeRequest(db *gorm.DB, id string) (*ChangeRequest, error) {
	var cr ChangeRequest
	if err := db.Where("id = ?", id).First(&cr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessErrorWithCode(common.CodeChangeRequestNotFound)
		}
		return nil, fmt.Errorf("查询变更请求失败: %w", err)
	}
	return &cr, nil
}

// ListRequest 查询变更请求列表请求
type ListRequest struct {
	Status         string `form:"status"`
	SuperpromptID  string `form:"superprompt_id"`
	OrganizationID string `form:"organization_id"`
	Priority       string `form:"priority"`
	common.PaginationRequest
}

// ListResult 列表查询结果
// Counts 恒基于全量数据统计，与过滤条件和分页无关。
type ListResult struct {
	Items  []*ChangeRequest `json:"items"`
	Total  int64            `json:"total"`
	Counts StatusCounts     `json:"counts"`
}

// List 查询变更请求列表（支持过滤），并附带全量的按状态计数
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResult, error) {
	query := s.db.WithContext(ctx).Model(&ChangeRequest{})

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.SuperpromptID != "" {
		query = query.Where("superprompt_id = ?", req.SuperpromptID)
	}
	if req.OrganizationID != "" {
		query = query.Scopes(common.ByOrganization(req.OrganizationID))
	}
	if req.Priority != "" {
		query = query.Where("priority = ?", req.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("统计变更请求数量失败: %w", err)
	}

	var items []*ChangeRequest
	err := query.
		Order("created_at DESC").
		Limit(req.GetPageSize()).
		Offset(req.GetOffset()).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("查询变更请求列表失败: %w", err)
	}

	counts, err := s.countByStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &ListResult{Items: items, Total: total, Counts: *counts}, nil
}

// countByStatus 统计全量的按状态计数
func (s *Service) countByStatus(ctx context.Context) (*StatusCounts, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&ChangeRequest{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("统计变更请求状态分布失败: %w", err)
	}

	counts := &StatusCounts{}
	for _, row := range rows {
		counts.Total += row.Count
		switch row.Status {
		case StatusOpen:
			counts.Open = row.Count
		case StatusInReview:
			counts.InReview = row.Count
		case StatusInProgress:
			counts.InProgress = row.Count
		case StatusImplemented:
			counts.Implemented = row.Count
		case StatusRejected:
			counts.Rejected = row.Count
		case StatusClosed:
			counts.Closed = row.Count
		}
	}
	return counts, nil
}

// enqueueNotify 投递管理员通知任务，失败仅记日志不阻断提交
func (s *Service) enqueueNotify(requestID string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueChangeRequestNotify(requestID); err != nil {
		logger.Warn("投递变更请求通知任务失败",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}
