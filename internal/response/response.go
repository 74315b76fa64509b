package response

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/i18n"
	"github.com/weiwangfds/ditdrive/internal/logger"
)

// Response 统一返回值结构体
// @Description API统一响应格式
type Response struct {
	// 状态码，0表示成功，非0表示失败
	Code int `json:"code" example:"0"`
	// 响应消息
	Message string `json:"message" example:"success"`
	// 响应数据
	Data interface{} `json:"data,omitempty"`
	// 错误详情，仅客户端错误返回
	Details string `json:"details,omitempty"`
	// 请求ID，用于链路追踪
	RequestID string `json:"request_id,omitempty" example:"req_123456789"`
	// 时间戳
	Timestamp int64 `json:"timestamp" example:"1640995200"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	response := Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTimestamp(),
	}
	c.JSON(http.StatusOK, response)
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	response := Response{
		Code:      0,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTimestamp(),
	}
	c.JSON(http.StatusOK, response)
}

// BadRequest 400错误响应
func BadRequest(c *gin.Context, message string) {
	response := Response{
		Code:      int(apperrors.ErrInvalidParams),
		Message:   message,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTimestamp(),
	}
	c.JSON(http.StatusBadRequest, response)
}

// Unauthorized 401错误响应
func Unauthorized(c *gin.Context, message string) {
	response := Response{
		Code:      int(apperrors.ErrUnauthorized),
		Message:   message,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTimestamp(),
	}
	c.JSON(http.StatusUnauthorized, response)
}

// Forbidden 403错误响应
func Forbidden(c *gin.Context, message string) {
	response := Response{
		Code:      int(apperrors.ErrForbidden),
		Message:   message,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTimestamp(),
	}
	c.JSON(http.StatusForbidden, response)
}

// NotFound 404错误响应
func NotFound(c *gin.Context, message string) {
	response := Response{
		Code:      int(apperrors.ErrNotFound),
		Message:   message,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTimestamp(),
	}
	c.JSON(http.StatusNotFound, response)
}

// InternalServerError 500错误响应
func InternalServerError(c *gin.Context, message string) {
	response := Response{
		Code:      int(apperrors.ErrInternalServer),
		Message:   message,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTimestamp(),
	}
	c.JSON(http.StatusInternalServerError, response)
}

// Created 201创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTimestamp(),
	})
}

// ErrorWithStatus 使用指定HTTP状态码的错误响应
func ErrorWithStatus(c *gin.Context, status int, code int, message string) {
	c.JSON(status, Response{
		Code:      code,
		Message:   message,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTimestamp(),
	})
}

// FromError 将服务层错误转换为响应
// AppError 按错误码映射HTTP状态，其余错误一律视为500并记录日志
func FromError(c *gin.Context, err error) {
	if appErr, ok := apperrors.GetAppError(err); ok {
		status := appErr.Code.HTTPStatus()
		resp := Response{
			Code:      int(appErr.Code),
			Message:   localize(c, appErr),
			RequestID: getRequestID(c),
			Timestamp: getCurrentTimestamp(),
		}
		if status >= http.StatusInternalServerError {
			logger.WithField("request_id", resp.RequestID).Errorf("请求处理失败: %v", err)
		} else {
			resp.Details = appErr.Details
		}
		c.JSON(status, resp)
		return
	}
	logger.WithField("request_id", getRequestID(c)).Errorf("未分类的错误: %v", err)
	ErrorWithStatus(c, http.StatusInternalServerError, int(apperrors.ErrInternalServer),
		apperrors.GetErrorMessage(apperrors.ErrInternalServer))
}

// localize 按 Accept-Language 返回错误码对应的消息，不支持的语言保留原消息
func localize(c *gin.Context, appErr *apperrors.AppError) string {
	lang := strings.TrimSpace(strings.SplitN(strings.SplitN(c.GetHeader("Accept-Language"), ",", 2)[0], ";", 2)[0])
	if lang == "" || !i18n.GetInstance().IsSupportedLanguage(lang) {
		return appErr.Message
	}
	return apperrors.GetErrorMessageWithLang(appErr.Code, lang)
}

// getRequestID 获取请求ID
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getCurrentTimestamp 获取当前时间戳
func getCurrentTimestamp() int64 {
	return nowFunc().Unix()
}

// nowFunc 当前时间来源，测试中可替换
var nowFunc = time.Now
