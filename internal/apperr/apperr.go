package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误分类，决定客户端收到的错误码
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindInvalidState
	KindInvalidInput
)

// String 返回线上协议使用的错误码
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindInvalidInput:
		return "INVALID_INPUT"
	default:
		return "INTERNAL"
	}
}

// AppError 业务错误
// Code 用于 errors.Is 比较，Message 是返回给客户端的文本
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is 按 Code 匹配，包装后的错误仍等于原哨兵错误
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New 创建新错误
func New(kind Kind, code, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// WithMessage 复制错误并替换消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// KindOf 获取错误分类，非 AppError 视为内部错误
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf 获取错误消息
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}

var (
	ErrInternal     = New(KindInternal, "INTERNAL", "Internal server error")
	ErrInvalidInput = New(KindInvalidInput, "INVALID_INPUT", "Invalid request")
)
