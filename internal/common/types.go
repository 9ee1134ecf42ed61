package common

// ============================================================================
// 通用请求类型
// ============================================================================

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `json:"page" form:"page" binding:"omitempty,min=1"`           // 页码，从1开始
	PageSize int `json:"page_size" form:"page_size" binding:"omitempty,min=1"` // 每页数量
}

// DefaultPagination 返回默认分页参数
func DefaultPagination() PaginationRequest {
	return PaginationRequest{
		Page:     1,
		PageSize: 20,
	}
}

// GetOffset 计算数据库查询的偏移量
func (p PaginationRequest) GetOffset() int {
	if p.Page < 1 {
		p.Page = 1
	}
	return (p.Page - 1) * p.GetPageSize()
}

// GetPageSize 获取每页数量，提供默认值
func (p PaginationRequest) GetPageSize() int {
	if p.PageSize < 1 {
		return 20
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// ============================================================================
// 通用响应类型
// ============================================================================

// APIResponse 统一API响应格式
type APIResponse struct {
	Success bool   `json:"success"`           // 是否成功
	Data    any    `json:"data,omitempty"`    // 响应数据
	Message string `json:"message,omitempty"` // 提示信息
	Code    int    `json:"code"`              // 业务状态码
}

// SuccessResponse 成功响应
func SuccessResponse(data any) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
		Code:    0,
	}
}

// SuccessMessageResponse 成功响应（带消息）
func SuccessMessageResponse(message string, data any) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
		Message: message,
		Code:    0,
	}
}

// ErrorResponse 错误响应
func ErrorResponse(code int, message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
		Code:    code,
	}
}

// PaginationMeta 分页元信息
type PaginationMeta struct {
	Page       int   `json:"page"`        // 当前页码
	PageSize   int   `json:"page_size"`   // 每页数量
	Total      int64 `json:"total"`       // 总记录数
	TotalPages int   `json:"total_pages"` // 总页数
}

// CalculateTotalPages 计算总页数
func (m *PaginationMeta) CalculateTotalPages() {
	if m.PageSize > 0 {
		m.TotalPages = int((m.Total + int64(m.PageSize) - 1) / int64(m.PageSize))
	}
}

// NewPaginationMeta 创建分页元信息
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	meta := PaginationMeta{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}
	meta.CalculateTotalPages()
	return meta
}

// ListResponse 列表响应（包含分页信息）
type ListResponse struct {
	Items      any            `json:"items"`      // 数据列表
	Pagination PaginationMeta `json:"pagination"` // 分页信息
}

// NewListResponse 创建列表响应
func NewListResponse(items any, page, pageSize int, total int64) ListResponse {
	return ListResponse{
		Items:      items,
		Pagination: NewPaginationMeta(page, pageSize, total),
	}
}

// ============================================================================
// 业务状态码定义
// ============================================================================

const (
	// 成功状态码
	CodeSuccess = 0

	// 通用错误码 (1000-1999)
	CodeInvalidRequest = 1000 // 请求参数错误
	CodeUnauthorized   = 1001 // 未授权
	CodeForbidden      = 1002 // 禁止访问
	CodeNotFound       = 1003 // 资源不存在
	CodeConflict       = 1004 // 资源冲突
	CodeInternalError  = 1005 // 内部错误

	// 组织/用户相关错误码 (2000-2099)
	CodeOrganizationNotFound = 2000 // 组织不存在
	CodeUserNotFound         = 2010 // 用户不存在
	CodeInvalidCredentials   = 2012 // 凭证无效

	// 模板相关错误码 (3000-3099)
	CodeTemplateNotFound    = 3000 // 基础模板不存在
	CodeSuperpromptNotFound = 3001 // 自定义 Superprompt 不存在
	CodeVersionConflict     = 3002 // 版本号冲突（乐观锁校验失败）
	CodeInvalidTarget       = 3003 // 目标范围无效（组织与用户不能同时指定）
	CodeHistoryNotFound     = 3004 // 历史版本不存在

	// Change Request 相关错误码 (5000-5099)
	CodeChangeRequestNotFound = 5000 // Change Request 不存在
	CodeChangeRequestClosed   = 5001 // Change Request 已处于终态
	CodeInvalidStatus         = 5002 // 状态值无效

	// 任务执行相关错误码 (6000-6099)
	CodeExecutionFailed = 6000 // 任务执行失败
)

// ErrorMessages 错误码对应的默认消息
var ErrorMessages = map[int]string{
	CodeSuccess:        "操作成功",
	CodeInvalidRequest: "请求参数错误",
	CodeUnauthorized:   "未授权，请先登录",
	CodeForbidden:      "无权限访问",
	CodeNotFound:       "资源不存在",
	CodeConflict:       "资源冲突",
	CodeInternalError:  "系统内部错误",

	CodeOrganizationNotFound: "组织不存在",
	CodeUserNotFound:         "用户不存在",
	CodeInvalidCredentials:   "用户名或密码错误",

	CodeTemplateNotFound:    "基础模板不存在",
	CodeSuperpromptNotFound: "自定义模板不存在",
	CodeVersionConflict:     "模板已被其他操作修改，请刷新后重试",
	CodeInvalidTarget:       "目标范围无效：组织与用户不能同时指定",
	CodeHistoryNotFound:     "历史版本不存在",

	CodeChangeRequestNotFound: "Change Request 不存在",
	CodeChangeRequestClosed:   "Change Request 已处于终态，无法继续处理",
	CodeInvalidStatus:         "状态值无效",

	CodeExecutionFailed: "任务执行失败",
}

// GetErrorMessage 获取错误码对应的默认消息
func GetErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "未知错误"
}

// ============================================================================
// 业务错误
// ============================================================================

// BusinessError 业务错误
type BusinessError struct {
	Code    int    // 错误码
	Message string // 错误信息
}

// Error 实现error接口
func (e *BusinessError) Error() string {
	return e.Message
}

// NewBusinessError 创建业务错误
func NewBusinessError(code int, message string) *BusinessError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}

// NewBusinessErrorWithCode 根据错误码创建业务错误
func NewBusinessErrorWithCode(code int) *BusinessError {
	return NewBusinessError(code, GetErrorMessage(code))
}

// AsBusinessError 尝试将错误断言为业务错误
func AsBusinessError(err error) (*BusinessError, bool) {
	be, ok := err.(*BusinessError)
	return be, ok
}
