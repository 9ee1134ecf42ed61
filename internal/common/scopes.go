package common

import "gorm.io/gorm"

// NotDeleted 过滤已软删除的记录（默认查询行为）
// 使用方法：db.Scopes(common.NotDeleted()).Find(&users)
func NotDeleted() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("deleted_at IS NULL")
	}
}

// ByOrganization 按组织ID过滤
// 使用方法：db.Scopes(common.ByOrganization(orgID)).Find(&rows)
func ByOrganization(organizationID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("organization_id = ?", organizationID)
	}
}
