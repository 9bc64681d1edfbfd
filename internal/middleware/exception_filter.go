package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/cvision/cvision-api/internal/config"
	"github.com/cvision/cvision-api/internal/model"
)

// stackTracer はgithub.com/pkg/errorsが付与するスタックトレースを取り出すためのインターフェース。
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// productionMessages は本番環境で返すステータス別の固定メッセージ。
var productionMessages = map[int]string{
	http.StatusBadRequest:          "Invalid request parameters",
	http.StatusUnauthorized:        "Authentication required",
	http.StatusForbidden:           "Access denied",
	http.StatusNotFound:            "Resource not found",
	http.StatusMethodNotAllowed:    "Method not allowed",
	http.StatusTooManyRequests:     "Rate limit exceeded",
	http.StatusInternalServerError: "Internal server error",
	http.StatusServiceUnavailable:  "Service temporarily unavailable",
}

// ProductionMessage はステータスコードに対応する利用者向けの固定メッセージを返す。
func ProductionMessage(status int) string {
	if msg, ok := productionMessages[status]; ok {
		return msg
	}
	return "An error occurred"
}

// ExceptionFilter はハンドラーやミドルウェアで発生したエラーを統一エラーレスポンスに変換する。
// *model.APIErrorはそのステータスを使い、それ以外は500として扱う。
type ExceptionFilter struct {
	env         string
	development bool
	verboseLogs bool
	logger      *slog.Logger
}

// NewExceptionFilter はExceptionFilterを生成する。
// 開発環境では生のエラーメッセージ・スタック・詳細を返し、それ以外では固定メッセージのみを返す。
// 開発環境またはdebugレベルでは、エラーの詳細をログに記録する。
func NewExceptionFilter(env, logLevel string, logger *slog.Logger) *ExceptionFilter {
	if logger == nil {
		logger = slog.Default()
	}
	development := env == config.EnvDevelopment
	return &ExceptionFilter{
		env:         env,
		development: development,
		verboseLogs: development || logLevel == "debug",
		logger:      logger,
	}
}

// Handle はerrをエラーエンベロープとして書き込む。
func (f *ExceptionFilter) Handle(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	rawMessage := err.Error()
	var details map[string]any

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.Status
		rawMessage = apiErr.Message
		details = apiErr.Details
	}

	requestID := RequestIDFromContext(r.Context())
	if requestID == "" {
		requestID = GenerateRequestID()
		w.Header().Set(RequestIDHeader, requestID)
	}

	body := ErrorEnvelope{
		Status:     "error",
		StatusCode: status,
		Timestamp:  Timestamp(time.Now()),
		Path:       r.URL.RequestURI(),
		RequestID:  requestID,
	}

	stack := stackOf(err)
	if f.development {
		body.Message = rawMessage
		body.Stack = stack
		if details != nil {
			body.Details = details
		}
		body.Environment = f.env
	} else {
		body.Message = ProductionMessage(status)
		if msg, ok := details["message"]; ok {
			body.Details = map[string]any{"message": msg}
		}
	}

	f.log(r, err, body, stack)
	writeJSON(w, status, body)
}

// HandlerFunc はエラーを返すハンドラーをhttp.HandlerFuncに変換する。
func (f *ExceptionFilter) HandlerFunc(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			f.Handle(w, r, err)
		}
	}
}

// NotFound は未定義ルートへのリクエストを404として処理する。
func (f *ExceptionFilter) NotFound(w http.ResponseWriter, r *http.Request) {
	f.Handle(w, r, model.NewRouteNotFoundError(r.Method, r.URL.Path))
}

// MethodNotAllowed は未対応メソッドのリクエストを405として処理する。
func (f *ExceptionFilter) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	f.Handle(w, r, model.NewMethodNotAllowedError(r.Method, r.URL.Path))
}

func (f *ExceptionFilter) log(r *http.Request, err error, body ErrorEnvelope, stack string) {
	if f.verboseLogs {
		attrs := []any{
			slog.String("error", err.Error()),
			slog.Int("statusCode", body.StatusCode),
			slog.String("method", r.Method),
			slog.String("path", body.Path),
			slog.String("requestId", body.RequestID),
		}
		if stack != "" {
			attrs = append(attrs, slog.String("stack", stack))
		}
		f.logger.ErrorContext(r.Context(), "request failed", attrs...)
		return
	}

	f.logger.ErrorContext(r.Context(), "request failed",
		slog.String("message", body.Message),
		slog.Int("statusCode", body.StatusCode),
		slog.String("path", body.Path),
		slog.String("requestId", body.RequestID),
	)
}

// stackOf はerrの連鎖のうち最も内側のスタックトレースを文字列で返す。
func stackOf(err error) string {
	var deepest stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			deepest = st
		}
	}
	if deepest == nil {
		return ""
	}
	return fmt.Sprintf("%+v", deepest.StackTrace())
}
