package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/pkg/errors"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 例外フィルタ経由で500レスポンスを返すミドルウェアを生成する。
// http.ErrAbortHandlerによる中断は再送出する。
func NewRecoveryMiddleware(filter *ExceptionFilter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				filter.Handle(w, r, errors.Errorf("panic: %v", rec))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
