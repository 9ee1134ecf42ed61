package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ki2go/internal/changerequest"
	"ki2go/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChangeRequestHandler 处理 Change Request 通知任务
type ChangeRequestHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewChangeRequestHandler 创建 ChangeRequestHandler 实例
func NewChangeRequestHandler(db *gorm.DB, logger *zap.Logger) *ChangeRequestHandler {
	return &ChangeRequestHandler{db: db, logger: logger}
}

// HandleChangeRequestNotify 将新请求标记为已通知并输出通知日志
// 实际的通知渠道（邮件/Webhook）在渠道接入前以结构化日志落地。
func (h *ChangeRequestHandler) HandleChangeRequestNotify(ctx context.Context, task *asynq.Task) error {
	var payload tasks.ChangeRequestNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload failed: %w", err)
	}

	var req changerequest.ChangeRequest
	if err := h.db.WithContext(ctx).Where("id = ?", payload.RequestID).First(&req).Error; err != nil {
		return fmt.Errorf("查询 Change Request 失败: %w", err)
	}

	err := h.db.WithContext(ctx).
		Model(&req).
		Updates(map[string]any{
			"notified_at":           time.Now().UTC(),
			"notification_attempts": gorm.Expr("notification_attempts + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("更新通知状态失败: %w", err)
	}

	h.logger.Info("新 Change Request 待处理",
		zap.String("request_id", req.ID),
		zap.String("title", req.Title),
		zap.String("priority", req.Priority),
	)
	return nil
}
