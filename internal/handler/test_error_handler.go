package handler

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/cvision/cvision-api/internal/model"
)

// TestErrorHandler は例外フィルタの動作確認用にエラーを発生させるハンドラー。
// 本番環境では登録しない。
type TestErrorHandler struct{}

// InternalError はGET /test/error/500 で分類されていないエラーを返す。
func (TestErrorHandler) InternalError(http.ResponseWriter, *http.Request) error {
	return errors.New("This is a test internal server error")
}

// BadRequest はGET /test/error/400 で400エラーを返す。
func (TestErrorHandler) BadRequest(http.ResponseWriter, *http.Request) error {
	return model.NewBadRequestError("Invalid request parameters for testing")
}

// NotFound はGET /test/error/404 で404エラーを返す。
func (TestErrorHandler) NotFound(http.ResponseWriter, *http.Request) error {
	return model.NewHTTPError(http.StatusNotFound, "Test resource not found")
}

// Custom はGET /test/error/custom で構造化された本文を持つ422エラーを返す。
func (TestErrorHandler) Custom(http.ResponseWriter, *http.Request) error {
	return model.NewHTTPErrorWithBody(http.StatusUnprocessableEntity, map[string]any{
		"message": "Custom error with details",
		"code":    "CUSTOM_ERROR",
		"field":   "testField",
	})
}
