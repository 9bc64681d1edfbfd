package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// RequestIDHeader はリクエストIDを返すレスポンスヘッダー。
const RequestIDHeader = "X-Request-ID"

const requestIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateRequestID は "req_<UNIXミリ秒>_<英小文字と数字9桁>" 形式のIDを生成する。
func GenerateRequestID() string {
	suffix, err := gonanoid.Generate(requestIDAlphabet, 9)
	if err != nil {
		// 乱数源の失敗時も一意性の低いIDで処理を継続する
		suffix = fmt.Sprintf("%09d", time.Now().Nanosecond())
	}
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), suffix)
}

// NewRequestIDMiddleware はリクエストごとにIDを採番し、
// コンテキストとX-Request-IDレスポンスヘッダーに設定するミドルウェアを返す。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GenerateRequestID()
			w.Header().Set(RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
