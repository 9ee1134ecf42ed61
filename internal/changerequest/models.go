package changerequest

import (
	"time"

	"ki2go/internal/common"
)

// Change Request 状态机
// open → in_review → in_progress → {implemented | rejected} → closed
// implemented / rejected / closed 为终态，进入后不再接受任何流转。
const (
	StatusOpen        = "open"
	StatusInReview    = "in_review"
	StatusInProgress  = "in_progress"
	StatusImplemented = "implemented"
	StatusRejected    = "rejected"
	StatusClosed      = "closed"
)

// 优先级
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidStatuses 合法状态集合
var ValidStatuses = map[string]bool{
	StatusOpen:        true,
	StatusInReview:    true,
	StatusInProgress:  true,
	StatusImplemented: true,
	StatusRejected:    true,
	StatusClosed:      true,
}

// ValidPriorities 合法优先级集合
var ValidPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityNormal: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// IsTerminal 判断状态是否为终态
func IsTerminal(status string) bool {
	return status == StatusImplemented || status == StatusRejected || status == StatusClosed
}

// 提交校验下限
const (
	MinTitleLength       = 5
	MinDescriptionLength = 20
)

// ChangeRequest 客户提交的模板变更请求
// 仅追加 + 状态流转，永不删除（保留为审计痕迹）。
type ChangeRequest struct {
	ID             string  `json:"id" gorm:"primaryKey;type:uuid"`
	SuperpromptID  string  `json:"superpromptId" gorm:"type:uuid;not null;index"`
	RequestedBy    string  `json:"requestedBy" gorm:"type:uuid;not null;index"`
	OrganizationID *string `json:"organizationId,omitempty" gorm:"type:uuid;index"`

	// 请求内容
	Title       string `json:"title" gorm:"size:255;not null"`
	Description string `json:"description" gorm:"type:text;not null"`
	Reason      string `json:"reason,omitempty" gorm:"type:text"`
	Priority    string `json:"priority" gorm:"size:50;not null;default:normal"`

	// 处理状态
	Status     string  `json:"status" gorm:"size:50;not null;default:open;index"`
	ReviewNote string  `json:"reviewNote,omitempty" gorm:"type:text"`
	AssignedTo *string `json:"assignedTo,omitempty" gorm:"type:uuid"`

	// 通知投递状态（由后台任务维护）
	NotifiedAt           *time.Time `json:"notifiedAt,omitempty"`
	NotificationAttempts int        `json:"notificationAttempts" gorm:"default:0"`

	// CompletedAt 仅在首次进入终态时写入一次
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	common.TimestampModel
}

// TableName 指定表名
func (ChangeRequest) TableName() string {
	return "change_requests"
}

// StatusCounts 按状态的聚合计数（恒基于全量数据，与列表过滤无关）
type StatusCounts struct {
	Open        int64 `json:"open"`
	InReview    int64 `json:"in_review"`
	InProgress  int64 `json:"in_progress"`
	Implemented int64 `json:"implemented"`
	Rejected    int64 `json:"rejected"`
	Closed      int64 `json:"closed"`
	Total       int64 `json:"total"`
}
