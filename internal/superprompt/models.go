package superprompt

import (
	"time"

	"ki2go/internal/common"

	"gorm.io/datatypes"
)

// 自定义模板状态
const (
	StatusActive          = "active"           // 可被解析引擎选中
	StatusPaused          = "paused"           // 暂停使用
	StatusArchived        = "archived"         // 已归档（软退役）
	StatusChangeRequested = "change_requested" // 存在未决的 Change Request，解析时跳过
)

// 目标范围类型（写入时计算并持久化，读取时不再从可空字段推导）
const (
	TargetUser         = "user"         // 用户级，最高优先级
	TargetOrganization = "organization" // 组织级
	TargetGlobal       = "global"       // 全局自定义
)

// 解析结果类型
const (
	ResolutionUser         = "user"
	ResolutionOrganization = "organization"
	ResolutionGlobal       = "global"
	ResolutionBase         = "base"
)

// 变更描述默认值（客户可见的德语界面文案）
const (
	InitialChangeDescription  = "Initiale Version erstellt"
	DefaultChangeDescription  = "Template aktualisiert"
	SnapshotChangeDescription = "Sicherung vor Umsetzung der Änderungsanforderung"
)

// ValidStatuses 合法状态集合
var ValidStatuses = map[string]bool{
	StatusActive:          true,
	StatusPaused:          true,
	StatusArchived:        true,
	StatusChangeRequested: true,
}

// CustomSuperprompt 基础模板的自定义变体（Override）
//
// 目标范围三选一：用户级（UserID 非空）、组织级（OrganizationID 非空且 UserID 为空）、
// 全局（两者均空）。TargetType 在写入时固定，二者同时指定视为非法输入。
type CustomSuperprompt struct {
	ID             string  `json:"id" gorm:"primaryKey;type:uuid"`
	BaseTemplateID string  `json:"baseTemplateId" gorm:"type:uuid;not null;index"`
	OrganizationID *string `json:"organizationId,omitempty" gorm:"type:uuid;index"`
	UserID         *string `json:"userId,omitempty" gorm:"type:uuid;index"`
	TargetType     string  `json:"targetType" gorm:"size:50;not null;index"` // user, organization, global

	// 模板信息
	Name        string `json:"name" gorm:"size:255;not null"`
	Description string `json:"description" gorm:"type:text"`
	Superprompt string `json:"superprompt" gorm:"type:text;not null"`

	// 状态
	Status   string `json:"status" gorm:"size:50;not null;default:active"`
	IsActive bool   `json:"isActive" gorm:"default:true"` // 遗留布尔标志，始终等于 status == active

	// 版本（内容变更时单调递增，详见 Service.Update）
	Version int `json:"version" gorm:"not null;default:1"`

	// 展示标识（由基础模板 + 目标范围 + 版本派生）
	UniqueID string `json:"uniqueId" gorm:"size:255;not null;index"`

	// 使用统计
	UsageCount int64      `json:"usageCount" gorm:"default:0"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`

	// 营销/ROI/文档处理等附加元数据
	Metadata datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`

	common.TimestampModel
}

// TableName 指定表名
func (CustomSuperprompt) TableName() string {
	return "custom_superprompts"
}

// IsResolvable 判断是否可被解析引擎选中
func (p *CustomSuperprompt) IsResolvable() bool {
	if p.Status != "" {
		return p.Status == StatusActive
	}
	return p.IsActive // 仅有遗留标志的历史数据
}

// HistoryEntry 版本历史条目（仅追加）
//
// 每次内容变更写入一条；除随 Override 级联删除外永不修改或移除。
type HistoryEntry struct {
	ID                string    `json:"id" gorm:"primaryKey;type:uuid"`
	SuperpromptID     string    `json:"superpromptId" gorm:"type:uuid;not null;index"`
	Version           int       `json:"version" gorm:"not null"`
	Superprompt       string    `json:"superprompt" gorm:"type:text;not null"`
	ChangedBy         string    `json:"changedBy" gorm:"size:100;not null"`
	ChangeDescription string    `json:"changeDescription" gorm:"type:text"`
	CreatedAt         time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
}

// TableName 指定表名
func (HistoryEntry) TableName() string {
	return "superprompt_history"
}

// Resolution 解析引擎的输出
// Type 为 base 时 Override 为 nil，内容来自基础模板本身。
type Resolution struct {
	Type           string             `json:"type"` // user, organization, global, base
	BaseTemplateID string             `json:"baseTemplateId"`
	Superprompt    string             `json:"superprompt"`
	Override       *CustomSuperprompt `json:"override,omitempty"`
}
