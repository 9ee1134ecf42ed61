package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResponseSuccess 返回成功响应
func ResponseSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse(data))
}

// ResponseSuccessMessage 返回成功响应（带消息）
func ResponseSuccessMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, SuccessMessageResponse(message, data))
}

// ResponseCreated 返回创建成功响应（201）
func ResponseCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, SuccessResponse(data))
}

// ResponseNoContent 返回无内容响应（204）
func ResponseNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ResponseList 返回分页列表响应
func ResponseList(c *gin.Context, items any, total int64, req *PaginationRequest) {
	if req == nil {
		defaultReq := DefaultPagination()
		req = &defaultReq
	}

	c.JSON(http.StatusOK, SuccessResponse(NewListResponse(items, req.Page, req.GetPageSize(), total)))
}

// ResponseError 返回错误响应
func ResponseError(c *gin.Context, code int, message string) {
	if message == "" {
		message = GetErrorMessage(code)
	}

	// 业务状态码映射到 HTTP 状态码
	httpStatus := http.StatusInternalServerError
	switch code {
	case CodeInvalidRequest, CodeInvalidTarget, CodeInvalidStatus, CodeChangeRequestClosed:
		httpStatus = http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidCredentials:
		httpStatus = http.StatusUnauthorized
	case CodeForbidden:
		httpStatus = http.StatusForbidden
	case CodeNotFound, CodeOrganizationNotFound, CodeUserNotFound,
		CodeTemplateNotFound, CodeSuperpromptNotFound, CodeHistoryNotFound,
		CodeChangeRequestNotFound:
		httpStatus = http.StatusNotFound
	case CodeConflict, CodeVersionConflict:
		httpStatus = http.StatusConflict
	}

	c.JSON(httpStatus, ErrorResponse(code, message))
}

// ResponseFromError 将服务层错误转换为统一错误响应
// 业务错误按其错误码映射，其余错误一律按内部错误处理。
func ResponseFromError(c *gin.Context, err error) {
	if be, ok := AsBusinessError(err); ok {
		ResponseError(c, be.Code, be.Message)
		return
	}
	ResponseError(c, CodeInternalError, err.Error())
}

// ResponseBadRequest 返回参数错误响应
func ResponseBadRequest(c *gin.Context, message string) {
	ResponseError(c, CodeInvalidRequest, message)
}

// ResponseUnauthorized 返回未认证响应
func ResponseUnauthorized(c *gin.Context, message string) {
	ResponseError(c, CodeUnauthorized, message)
}

// ResponseForbidden 返回无权限响应
func ResponseForbidden(c *gin.Context, message string) {
	ResponseError(c, CodeForbidden, message)
}

// ResponseNotFound 返回资源不存在响应
func ResponseNotFound(c *gin.Context, message string) {
	ResponseError(c, CodeNotFound, message)
}

// AbortWithError 中断并返回错误
func AbortWithError(c *gin.Context, code int, message string) {
	ResponseError(c, code, message)
	c.Abort()
}
