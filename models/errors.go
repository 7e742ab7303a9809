package models

import (
	"errors"
	"fmt"
	"net/http"
)

// エラーコード。クライアントに返す "status" の値として固定。
const (
	ErrCodeForbidden             = "forbidden"
	ErrCodeUnauthorized          = "unauthorized"
	ErrCodeInvalidFormat         = "invalid_format"
	ErrCodeInvalidOrExpiredToken = "invalid_or_expired_token"
	ErrCodeAlreadyCheckedIn      = "already_checked_in"
	ErrCodeInvalidRecipientRole  = "invalid_recipient_role"
	ErrCodeRecipientNotFound     = "recipient_not_found"
	ErrCodePersistenceFailure    = "persistence_failure"
	ErrCodeRateLimited           = "rate_limited"
)

// AppError は業務ルール違反や保存失敗を呼び出し元に伝えるエラー。
// Code と Status はハンドラーがそのままレスポンスに使う。
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is はコードが一致すれば同じエラーとみなす
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrForbidden = &AppError{Code: ErrCodeForbidden, Message: "Admin role and an active account are required", Status: http.StatusForbidden}

	ErrUnauthorized = &AppError{Code: ErrCodeUnauthorized, Message: "Unauthorized or inactive user", Status: http.StatusUnauthorized}

	ErrInvalidFormat = &AppError{Code: ErrCodeInvalidFormat, Message: "Invalid format", Status: http.StatusBadRequest}

	// 存在しない・使用済み・期限切れを区別しない
	ErrInvalidOrExpiredToken = &AppError{Code: ErrCodeInvalidOrExpiredToken, Message: "Invalid, expired, or already used QR code.", Status: http.StatusBadRequest}

	ErrAlreadyCheckedIn = &AppError{Code: ErrCodeAlreadyCheckedIn, Message: "You have already checked in today!", Status: http.StatusBadRequest}

	ErrInvalidRecipientRole = &AppError{Code: ErrCodeInvalidRecipientRole, Message: "Specific recipient role must be member or trainer", Status: http.StatusBadRequest}

	ErrRecipientNotFound = &AppError{Code: ErrCodeRecipientNotFound, Message: "Recipient not found or inactive", Status: http.StatusNotFound}

	ErrPersistenceFailure = &AppError{Code: ErrCodePersistenceFailure, Message: "Database error", Status: http.StatusInternalServerError}
)

// NewInvalidFormatError は入力形式エラーを理由付きで生成する
func NewInvalidFormatError(reason string) *AppError {
	return &AppError{Code: ErrCodeInvalidFormat, Message: reason, Status: http.StatusBadRequest}
}

// NewForbiddenError は権限エラーを理由付きで生成する
func NewForbiddenError(reason string) *AppError {
	return &AppError{Code: ErrCodeForbidden, Message: reason, Status: http.StatusForbidden}
}

// NewPersistenceError はストレージのエラーを包む
func NewPersistenceError(message string, err error) *AppError {
	return &AppError{Code: ErrCodePersistenceFailure, Message: message, Status: http.StatusInternalServerError, Err: err}
}

// AsAppError は err を AppError として取り出す。AppError でなければ PersistenceFailure 扱い。
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewPersistenceError("Internal server error", err)
}
