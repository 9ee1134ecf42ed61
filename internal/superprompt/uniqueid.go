package superprompt

import (
	"fmt"
	"strings"
)

// BuildUniqueID 生成展示用标识，编码基础模板、目标范围与版本。
//
// 形如 KI2GO-<base>-ORG-a1b2c3d4-v3 / KI2GO-<base>-GLOBAL-v1。
// 同一 (基础模板, 目标, 版本) 组合的结果是确定的，重定目标或版本递增后重新生成。
func BuildUniqueID(baseUniqueID, targetType string, targetID *string, version int) string {
	parts := []string{baseUniqueID}

	switch targetType {
	case TargetUser:
		parts = append(parts, "USER")
	case TargetOrganization:
		parts = append(parts, "ORG")
	default:
		parts = append(parts, "GLOBAL")
	}

	if targetID != nil && *targetID != "" {
		ident := *targetID
		if len(ident) > 8 {
			ident = ident[:8]
		}
		parts = append(parts, ident)
	}

	parts = append(parts, fmt.Sprintf("v%d", version))
	return strings.Join(parts, "-")
}
