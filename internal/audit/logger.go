package audit

import (
	"context"
	"encoding/json"
	"time"

	"ki2go/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Logger 将审计事件写入 audit_logs 表。
//
// 写入失败时静默降级为应用日志，不向业务流程抛错，
// 避免审计故障中断正常操作。
type Logger struct {
	db *gorm.DB
}

// NewLogger 创建审计日志记录器
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// LogAction 记录一条审计事件
// tx 不为 nil 时在该事务内写入（与业务变更同生共死），否则使用自身连接。
func (l *Logger) LogAction(ctx context.Context, tx *gorm.DB, actorID string, organizationID *string, event EventType, resource, resourceID string, details any) {
	if l == nil || actorID == "" {
		return
	}

	db := l.db
	if tx != nil {
		db = tx
	}

	var detailsJSON []byte
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = b
		}
	}

	entry := &AuditLog{
		ID:             uuid.New().String(),
		ActorID:        actorID,
		OrganizationID: organizationID,
		Action:         string(event),
		Resource:       resource,
		ResourceID:     resourceID,
		Details:        detailsJSON,
		CreatedAt:      time.Now().UTC(),
	}

	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Warn("审计日志写入失败",
			zap.String("action", string(event)),
			zap.String("resource", resource),
			zap.Error(err),
		)
	}
}

// ListByResource 按资源查询审计日志（最近的在前）
func (l *Logger) ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]*AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []*AuditLog
	err := l.db.WithContext(ctx).
		Where("resource = ? AND resource_id = ?", resource, resourceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
