package audit

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 审计日志记录
// 仅追加，业务流程不读取；供管理员追溯操作来源。
type AuditLog struct {
	ID             string         `json:"id" gorm:"primaryKey;type:uuid"`
	ActorID        string         `json:"actorId" gorm:"size:100;not null;index"`
	OrganizationID *string        `json:"organizationId,omitempty" gorm:"type:uuid;index"`
	Action         string         `json:"action" gorm:"size:100;not null;index"`
	Resource       string         `json:"resource" gorm:"size:100;not null"`
	ResourceID     string         `json:"resourceId" gorm:"size:100;index"`
	Details        datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

// TableName 指定表名
func (AuditLog) TableName() string {
	return "audit_logs"
}
