package organization

import "ki2go/internal/common"

// Organization 客户组织
type Organization struct {
	ID     string `json:"id" gorm:"primaryKey;type:uuid"`
	Name   string `json:"name" gorm:"size:255;not null"`
	Status string `json:"status" gorm:"size:50;not null;default:active"` // active, disabled

	common.TimestampModel
	common.SoftDeleteModel
}

// User 平台用户
// Role 为 admin 时该用户是平台管理员；OrganizationID 可为空（平台侧账号）。
type User struct {
	ID             string  `json:"id" gorm:"primaryKey;type:uuid"`
	OrganizationID *string `json:"organizationId,omitempty" gorm:"type:uuid;index"`
	Email          string  `json:"email" gorm:"size:255;not null;uniqueIndex"`
	PasswordHash   string  `json:"-" gorm:"size:255;not null"`
	DisplayName    string  `json:"displayName" gorm:"size:255"`
	Role           string  `json:"role" gorm:"size:50;not null;default:customer"` // admin, customer
	Status         string  `json:"status" gorm:"size:50;not null;default:active"` // active, disabled

	common.TimestampModel
	common.SoftDeleteModel
}
