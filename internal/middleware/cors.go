package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// NewCORSMiddleware はrs/corsによるCORSミドルウェアを返す。
// allowedOriginsが空の場合はリクエスト元のオリジンをそのまま許可する（モバイルアプリと開発用クライアント向け）。
// credentials送信と共存するため、ワイルドカード(*)は返さない。
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch,
			http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}
	if len(allowedOrigins) == 0 {
		opts.AllowOriginFunc = func(string) bool { return true }
	} else {
		opts.AllowedOrigins = allowedOrigins
	}

	return cors.New(opts).Handler
}
