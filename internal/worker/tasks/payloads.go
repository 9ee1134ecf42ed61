package tasks

// 任务类型
const (
	TypeSuperpromptUsage    = "superprompt:usage"    // 记录一次模板使用
	TypeChangeRequestNotify = "changerequest:notify" // 通知管理员有新的 Change Request
)

// SuperpromptUsagePayload 使用计数任务载荷
type SuperpromptUsagePayload struct {
	SuperpromptID string `json:"superprompt_id"`
}

// ChangeRequestNotifyPayload 通知任务载荷
type ChangeRequestNotifyPayload struct {
	RequestID string `json:"request_id"`
}
