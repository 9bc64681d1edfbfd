// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// APIError はHTTPステータスに対応付けられた分類済みエラーを表す。
// 例外フィルタはこの型を認識してステータスコードとメッセージを決定する。
type APIError struct {
	Status  int            // HTTPステータスコード
	Code    string         // エラーコード
	Message string         // エラーメッセージ
	Details map[string]any // 構造化されたエラー本文（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	ErrCodeOnboardingIncomplete = "ONBOARDING_INCOMPLETE"
	ErrCodeHTTP                 = "HTTP_ERROR"
)

// standardBody はステータスコード・メッセージ・ステータス名からなる標準のエラー本文を生成する。
func standardBody(status int, message string) map[string]any {
	return map[string]any{
		"statusCode": status,
		"message":    message,
		"error":      http.StatusText(status),
	}
}

// NewHTTPError は任意のステータスとメッセージを持つエラーを生成する。
// 構造化された本文は持たない。
func NewHTTPError(status int, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    ErrCodeHTTP,
		Message: message,
	}
}

// NewHTTPErrorWithBody は構造化された本文を持つエラーを生成する。
// 本文にmessageが含まれていればそれをエラーメッセージとし、codeがあればエラーコードとする。
func NewHTTPErrorWithBody(status int, body map[string]any) *APIError {
	message := http.StatusText(status)
	if m, ok := body["message"].(string); ok && m != "" {
		message = m
	}
	code := ErrCodeHTTP
	if c, ok := body["code"].(string); ok && c != "" {
		code = c
	}
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: body,
	}
}

// NewBadRequestError は不正リクエストエラーを生成する。
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    ErrCodeBadRequest,
		Message: message,
		Details: standardBody(http.StatusBadRequest, message),
	}
}

// NewValidationError は入力検証エラーを生成する。
// fieldsにはフィールド名ごとの検証失敗理由を渡す。
func NewValidationError(message string, fields map[string]string) *APIError {
	body := standardBody(http.StatusBadRequest, message)
	if len(fields) > 0 {
		body["fields"] = fields
	}
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    ErrCodeValidation,
		Message: message,
		Details: body,
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Code:    ErrCodeUnauthorized,
		Message: message,
		Details: standardBody(http.StatusUnauthorized, message),
	}
}

// NewForbiddenError は権限エラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Status:  http.StatusForbidden,
		Code:    ErrCodeForbidden,
		Message: message,
		Details: standardBody(http.StatusForbidden, message),
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    ErrCodeNotFound,
		Message: message,
		Details: standardBody(http.StatusNotFound, message),
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    ErrCodeUserNotFound,
		Message: "User not found",
		Details: standardBody(http.StatusNotFound, "User not found"),
	}
}

// NewMethodNotAllowedError は未対応メソッドのエラーを生成する。
func NewMethodNotAllowedError(method, path string) *APIError {
	message := fmt.Sprintf("Cannot %s %s", method, path)
	return &APIError{
		Status:  http.StatusMethodNotAllowed,
		Code:    ErrCodeMethodNotAllowed,
		Message: message,
		Details: standardBody(http.StatusMethodNotAllowed, message),
	}
}

// NewRouteNotFoundError は未定義ルートへのアクセスエラーを生成する。
func NewRouteNotFoundError(method, path string) *APIError {
	return NewNotFoundError(fmt.Sprintf("Cannot %s %s", method, path))
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	message := "Too many requests. Please try again later."
	return &APIError{
		Status:  http.StatusTooManyRequests,
		Code:    ErrCodeRateLimited,
		Message: message,
		Details: standardBody(http.StatusTooManyRequests, message),
	}
}

// NewOnboardingIncompleteError はオンボーディング未完了のまま完了処理を要求された場合のエラーを生成する。
// detailsには各ステップの達成状況を含める。
func NewOnboardingIncompleteError(steps OnboardingSteps) *APIError {
	message := "Cannot complete onboarding - not all steps are finished"
	body := standardBody(http.StatusBadRequest, message)
	body["steps"] = steps
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    ErrCodeOnboardingIncomplete,
		Message: message,
		Details: body,
	}
}
