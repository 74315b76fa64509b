package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/weiwangfds/ditdrive/internal/i18n"
)

// ErrorCode 错误码类型
type ErrorCode int

// 定义错误码常量
const (
	// 通用错误码 (1000-1999)
	ErrSuccess            ErrorCode = 0    // 成功
	ErrInternalServer     ErrorCode = 1000 // 服务器内部错误
	ErrInvalidParams      ErrorCode = 1001 // 参数错误
	ErrUnauthorized       ErrorCode = 1002 // 未授权
	ErrForbidden          ErrorCode = 1003 // 禁止访问
	ErrNotFound           ErrorCode = 1004 // 资源未找到
	ErrTooManyRequests    ErrorCode = 1006 // 请求过于频繁
	ErrServiceUnavailable ErrorCode = 1007 // 服务不可用

	// 文件相关错误码 (2000-2999)
	ErrFileNotFound     ErrorCode = 2000 // 文件未找到
	ErrFileUploadFailed ErrorCode = 2002 // 文件上传失败
	ErrFileDeleteFailed ErrorCode = 2003 // 文件删除失败
	ErrFileReadFailed   ErrorCode = 2004 // 文件读取失败
	ErrFileWriteFailed  ErrorCode = 2005 // 文件写入失败
	ErrFileSizeTooLarge ErrorCode = 2006 // 文件大小超限

	// 目录树与存储错误码 (3000-3999)
	ErrFolderNotFound ErrorCode = 3000 // 文件夹未找到
	ErrPathViolation  ErrorCode = 3001 // 物理路径越出存储根目录
	ErrStorageIO      ErrorCode = 3002 // 存储读写失败
	ErrShareNotFound  ErrorCode = 3003 // 分享链接不存在
	ErrArchiveFailed  ErrorCode = 3004 // 打包导出失败
	ErrInvalidName    ErrorCode = 3005 // 名称无效

	// 数据库相关错误码 (4000-4999)
	ErrDatabaseConnection  ErrorCode = 4000 // 数据库连接错误
	ErrDatabaseQuery       ErrorCode = 4001 // 数据库查询错误
	ErrDatabaseInsert      ErrorCode = 4002 // 数据库插入错误
	ErrDatabaseUpdate      ErrorCode = 4003 // 数据库更新错误
	ErrDatabaseDelete      ErrorCode = 4004 // 数据库删除错误
	ErrDatabaseTransaction ErrorCode = 4005 // 数据库事务错误
	ErrRecordNotFound      ErrorCode = 4006 // 记录未找到
	ErrRecordAlreadyExists ErrorCode = 4007 // 记录已存在

	// 认证相关错误码 (5000-5999)
	ErrInvalidCredentials ErrorCode = 5000 // 账号或密码错误
	ErrTokenInvalid       ErrorCode = 5001 // 令牌无效
	ErrUserNotFound       ErrorCode = 5002 // 用户不存在
)

// AppError 应用错误结构体
// @Description 应用程序统一错误格式
type AppError struct {
	// 错误码
	Code ErrorCode `json:"code"`
	// 错误消息
	Message string `json:"message"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// 原始错误
	OriginalError error `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误，便于 errors.Is / errors.As 穿透
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// WithDetails 添加详细错误信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithOriginalError 添加原始错误
func (e *AppError) WithOriginalError(err error) *AppError {
	e.OriginalError = err
	if e.Details == "" && err != nil {
		e.Details = err.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetails 创建带详细信息的应用错误
func NewWithDetails(code ErrorCode, message string, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// FromCode 使用错误码对应的默认消息创建应用错误
func FromCode(code ErrorCode) *AppError {
	return New(code, GetErrorMessage(code))
}

// Wrap 包装原始错误
func Wrap(code ErrorCode, message string, err error) *AppError {
	appErr := &AppError{
		Code:          code,
		Message:       message,
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// WrapCode 使用错误码的默认消息包装原始错误
func WrapCode(code ErrorCode, err error) *AppError {
	return Wrap(code, GetErrorMessage(code), err)
}

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError 从错误链中提取应用错误
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode 判断错误链中是否存在指定错误码之一
func HasCode(err error, codes ...ErrorCode) bool {
	appErr, ok := GetAppError(err)
	if !ok {
		return false
	}
	for _, code := range codes {
		if appErr.Code == code {
			return true
		}
	}
	return false
}

// IsNotFound 判断是否属于"未找到"类错误
func IsNotFound(err error) bool {
	return HasCode(err, ErrNotFound, ErrFileNotFound, ErrFolderNotFound, ErrShareNotFound, ErrRecordNotFound, ErrUserNotFound)
}

// HTTPStatus 返回错误码对应的HTTP状态码
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrSuccess:
		return http.StatusOK
	case ErrInvalidParams, ErrInvalidName, ErrPathViolation:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidCredentials, ErrTokenInvalid:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound, ErrFileNotFound, ErrFolderNotFound, ErrShareNotFound, ErrRecordNotFound, ErrUserNotFound:
		return http.StatusNotFound
	case ErrRecordAlreadyExists:
		return http.StatusConflict
	case ErrFileSizeTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	case ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 错误码到i18n键的映射
var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:            "success",
	ErrInternalServer:     "internal_server_error",
	ErrInvalidParams:      "invalid_params",
	ErrUnauthorized:       "unauthorized",
	ErrForbidden:          "forbidden",
	ErrNotFound:           "not_found",
	ErrTooManyRequests:    "too_many_requests",
	ErrServiceUnavailable: "service_unavailable",

	ErrFileNotFound:     "file_not_found",
	ErrFileUploadFailed: "file_upload_failed",
	ErrFileDeleteFailed: "file_delete_failed",
	ErrFileReadFailed:   "file_read_failed",
	ErrFileWriteFailed:  "file_write_failed",
	ErrFileSizeTooLarge: "file_size_too_large",

	ErrFolderNotFound: "folder_not_found",
	ErrPathViolation:  "path_violation",
	ErrStorageIO:      "storage_io",
	ErrShareNotFound:  "share_not_found",
	ErrArchiveFailed:  "archive_failed",
	ErrInvalidName:    "invalid_name",

	ErrDatabaseConnection:  "database_connection",
	ErrDatabaseQuery:       "database_query",
	ErrDatabaseInsert:      "database_insert",
	ErrDatabaseUpdate:      "database_update",
	ErrDatabaseDelete:      "database_delete",
	ErrDatabaseTransaction: "database_transaction",
	ErrRecordNotFound:      "record_not_found",
	ErrRecordAlreadyExists: "record_already_exists",

	ErrInvalidCredentials: "invalid_credentials",
	ErrTokenInvalid:       "token_invalid",
	ErrUserNotFound:       "user_not_found",
}

// GetErrorMessage 根据错误码获取错误消息（使用默认语言）
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang 根据错误码和语言获取错误消息
// 参数:
//   - code: 错误码
//   - lang: 语言代码，如zh-CN、en-US
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}
