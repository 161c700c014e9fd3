// Package apperr 定义账本与传输层共用的错误码
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 机器可读的错误码
type Code string

const (
	// CodeValidation 铸造参数不合法
	CodeValidation Code = "VALIDATION_FAILED"
	// CodeAlreadyClaimed 新手礼包已领取
	CodeAlreadyClaimed Code = "STARTER_PACK_ALREADY_CLAIMED"
	// CodeNotFound 卡牌不存在
	CodeNotFound Code = "CARD_NOT_FOUND"
	// CodeInsufficientBalance 余额不足
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	// CodeForbidden 调用者无权执行操作
	CodeForbidden Code = "FORBIDDEN"

	// 传输层错误
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeWrongChain        Code = "WRONG_CHAIN"
	CodeSignatureRejected Code = "SIGNATURE_REJECTED"

	CodeInternal Code = "INTERNAL"
)

// HTTPStatus 把错误码映射为HTTP状态码
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAlreadyClaimed, CodeInsufficientBalance, CodeWrongChain:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized, CodeSignatureRejected:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// IsTransport 是否属于钱包/网络层错误
func (c Code) IsTransport() bool {
	switch c {
	case CodeUnauthorized, CodeWrongChain, CodeSignatureRejected:
		return true
	}
	return false
}

// Error 带错误码的错误
type Error struct {
	Code    Code
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is 按错误码匹配，使 errors.Is(err, ErrValidation) 成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// 哨兵错误，只用于 errors.Is 比较
var (
	ErrValidation          = &Error{Code: CodeValidation}
	ErrAlreadyClaimed      = &Error{Code: CodeAlreadyClaimed}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance}
	ErrForbidden           = &Error{Code: CodeForbidden}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized}
	ErrWrongChain          = &Error{Code: CodeWrongChain}
	ErrSignatureRejected   = &Error{Code: CodeSignatureRejected}
)

// New 创建带错误码的错误
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Invalid 创建字段校验错误
func Invalid(field, format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// CodeOf 取出错误链中的错误码，没有时返回 CodeInternal
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
