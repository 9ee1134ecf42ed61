package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ki2go/internal/superprompt"
	"ki2go/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UsageHandler 处理模板使用计数任务
type UsageHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUsageHandler 创建 UsageHandler 实例
func NewUsageHandler(db *gorm.DB, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{db: db, logger: logger}
}

// HandleSuperpromptUsage 累加使用计数并刷新最近使用时间
func (h *UsageHandler) HandleSuperpromptUsage(ctx context.Context, task *asynq.Task) error {
	var payload tasks.SuperpromptUsagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload failed: %w", err)
	}

	err := h.db.WithContext(ctx).
		Model(&superprompt.CustomSuperprompt{}).
		Where("id = ?", payload.SuperpromptID).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("更新使用计数失败: %w", err)
	}

	h.logger.Debug("使用计数已更新", zap.String("superprompt_id", payload.SuperpromptID))
	return nil
}
