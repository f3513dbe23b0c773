package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = errors.New("short link not found")
	ErrDeactivated        = errors.New("this link has been deactivated")
	ErrExpired            = errors.New("this link has expired")
	ErrPasswordRequired   = errors.New("password required")
	ErrPasswordIncorrect  = errors.New("password incorrect")
	ErrAliasTaken         = errors.New("alias already taken")
	ErrInvalidAlias       = errors.New("invalid alias")
	ErrInvalidURL         = errors.New("invalid target URL")
	ErrCodeConflict       = errors.New("short code already exists")
	ErrCodeSpaceExhausted = errors.New("failed to allocate a free short code")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrForbidden          = errors.New("not the owner of this link")
	ErrUnauthorized       = errors.New("authentication required")
)

// 错误码，写入响应体的 code 字段
const (
	CodeNotFound           = "NOT_FOUND"
	CodeDeactivated        = "LINK_DEACTIVATED"
	CodeExpired            = "LINK_EXPIRED"
	CodePasswordRequired   = "PASSWORD_REQUIRED"
	CodePasswordIncorrect  = "PASSWORD_INCORRECT"
	CodeAliasTaken         = "ALIAS_TAKEN"
	CodeInvalidAlias       = "INVALID_ALIAS"
	CodeInvalidURL         = "INVALID_URL"
	CodeCodeSpaceExhausted = "CODE_SPACE_EXHAUSTED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeBadRequest         = "BAD_REQUEST"
	CodeInternal           = "INTERNAL_ERROR"
)

type BusinessError struct {
	Code    string
	Message string
	Cause   error
}

func (e *BusinessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Cause
}

func NewBusinessError(code, message string, cause error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetBusinessError 从错误链中提取 BusinessError
func GetBusinessError(err error) *BusinessError {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		return businessErr
	}
	return nil
}

type mapping struct {
	target error
	status int
	code   string
}

// 顺序即优先级
var mappings = []mapping{
	{ErrNotFound, http.StatusNotFound, CodeNotFound},
	{ErrDeactivated, http.StatusBadRequest, CodeDeactivated},
	{ErrExpired, http.StatusGone, CodeExpired},
	{ErrPasswordRequired, http.StatusForbidden, CodePasswordRequired},
	{ErrPasswordIncorrect, http.StatusForbidden, CodePasswordIncorrect},
	{ErrAliasTaken, http.StatusConflict, CodeAliasTaken},
	{ErrInvalidAlias, http.StatusBadRequest, CodeInvalidAlias},
	{ErrInvalidURL, http.StatusBadRequest, CodeInvalidURL},
	{ErrCodeSpaceExhausted, http.StatusServiceUnavailable, CodeCodeSpaceExhausted},
	{ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{ErrForbidden, http.StatusForbidden, CodeForbidden},
	{ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
}

// Describe 把领域错误映射为状态码、错误码和可以直接展示给调用方的消息。
// 未知错误统一按 500 处理，不暴露细节
func Describe(err error) (int, string, string) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			if be := GetBusinessError(err); be != nil {
				return m.status, m.code, be.Message
			}
			return m.status, m.code, m.target.Error()
		}
	}
	if be := GetBusinessError(err); be != nil && be.Code == CodeBadRequest {
		return http.StatusBadRequest, be.Code, be.Message
	}
	return http.StatusInternalServerError, CodeInternal, "internal server error"
}

// Body 统一的错误响应体
type Body struct {
	Code  string `json:"code"`
	Error string `json:"error"`
	Path  string `json:"path"`
}

// NewBody 根据错误生成响应体和状态码
func NewBody(err error, path string) (int, Body) {
	status, code, msg := Describe(err)
	return status, Body{Code: code, Error: msg, Path: path}
}

// IsClientError 判断错误是否由调用方输入导致
func IsClientError(err error) bool {
	status, _, _ := Describe(err)
	return status >= 400 && status < 500
}
