package audit

// EventType 审计事件类型
type EventType string

// Superprompt 相关事件
const (
	EventSuperpromptCreate   EventType = "superprompt.create"   // 创建自定义模板
	EventSuperpromptUpdate   EventType = "superprompt.update"   // 更新自定义模板
	EventSuperpromptRetarget EventType = "superprompt.retarget" // 重新指定目标范围
	EventSuperpromptStatus   EventType = "superprompt.status"   // 状态切换
	EventSuperpromptDelete   EventType = "superprompt.delete"   // 删除（含历史级联）
)

// 基础模板相关事件
const (
	EventTemplateCreate  EventType = "template.create"  // 创建基础模板
	EventTemplateUpdate  EventType = "template.update"  // 更新基础模板
	EventTemplatePromote EventType = "template.promote" // Superprompt 回写基础模板（影响所有回退层）
)

// Change Request 相关事件
const (
	EventChangeRequestSubmit  EventType = "changerequest.submit"  // 客户提交
	EventChangeRequestProcess EventType = "changerequest.process" // 管理员处理
)

// 认证相关事件
const (
	EventUserLogin       EventType = "user.login"        // 用户登录
	EventUserLoginFailed EventType = "user.login.failed" // 用户登录失败
)
