package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", ErrNotFound, http.StatusNotFound, CodeNotFound},
		{"deactivated", ErrDeactivated, http.StatusBadRequest, CodeDeactivated},
		{"expired", ErrExpired, http.StatusGone, CodeExpired},
		{"password required", ErrPasswordRequired, http.StatusForbidden, CodePasswordRequired},
		{"password incorrect", ErrPasswordIncorrect, http.StatusForbidden, CodePasswordIncorrect},
		{"alias taken", ErrAliasTaken, http.StatusConflict, CodeAliasTaken},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
		{"exhausted", ErrCodeSpaceExhausted, http.StatusServiceUnavailable, CodeCodeSpaceExhausted},
		{"wrapped", fmt.Errorf("resolve abc: %w", ErrExpired), http.StatusGone, CodeExpired},
		{"business wrapping sentinel", NewBusinessError("X", "alias", ErrAliasTaken), http.StatusConflict, CodeAliasTaken},
		{"bad request", NewBusinessError(CodeBadRequest, "bad body", nil), http.StatusBadRequest, CodeBadRequest},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := Describe(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestBusinessError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("duplicate key")
	err := NewBusinessError("DATABASE_ERROR", "failed to create link", cause)

	assert.Equal(t, "failed to create link: duplicate key", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Same(t, err, GetBusinessError(fmt.Errorf("wrap: %w", err)))
	assert.Nil(t, GetBusinessError(cause))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(ErrNotFound))
	assert.False(t, IsClientError(ErrCodeSpaceExhausted))
	assert.False(t, IsClientError(fmt.Errorf("db down")))
	assert.True(t, IsClientError(NewBusinessError(CodeBadRequest, "bad body", nil)))
}

func TestNewBody(t *testing.T) {
	status, body := NewBody(fmt.Errorf("resolve abc: %w", ErrExpired), "/r/abc")
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, Body{Code: CodeExpired, Error: ErrExpired.Error(), Path: "/r/abc"}, body)

	status, body = NewBody(NewBusinessError(CodeInvalidAlias, "alias must be 3-20 characters", ErrInvalidAlias), "/api/links")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "alias must be 3-20 characters", body.Error)

	status, body = NewBody(fmt.Errorf("dial tcp 10.0.0.5:3306: connection refused"), "/r/abc")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body.Error, "内部错误不暴露细节")
}
