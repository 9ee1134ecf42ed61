package template

import "ki2go/internal/common"

// BaseTemplate 平台自有的基础模板
// 所有组织共享的默认 Superprompt 定义，解析引擎的最终回退层。
type BaseTemplate struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string `json:"name" gorm:"size:255;not null"`
	UniqueID    string `json:"uniqueId" gorm:"size:100;not null;uniqueIndex"`
	Description string `json:"description" gorm:"type:text"`
	Superprompt string `json:"superprompt" gorm:"type:text;not null"`

	common.TimestampModel
	common.SoftDeleteModel
}

// TableName 指定表名
func (BaseTemplate) TableName() string {
	return "base_templates"
}
