package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cvision/cvision-api/internal/auth"
	"github.com/cvision/cvision-api/internal/metrics"
	"github.com/cvision/cvision-api/internal/model"
)

// 認証失敗時のメッセージ
const (
	msgAuthorizationRequired = "Authorization header is required"
	msgBearerRequired        = "Bearer token is required"
	msgInvalidToken          = "Invalid or expired token"
)

// Authenticator はBearerトークンからユーザーを解決するインターフェース。
type Authenticator interface {
	Authenticate(ctx context.Context, idToken string) (*auth.Result, error)
}

// NewAuthGuard はAuthorizationヘッダーのBearerトークンを検証し、
// 解決したユーザーとトークンをコンテキストに注入するミドルウェアを返す。
// このミドルウェアを通さずに登録したルートは公開ルートとなる。
func NewAuthGuard(authn Authenticator, filter *ExceptionFilter, recorder metrics.Recorder) func(next http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				recorder.RecordAuthAttempt(metrics.AuthResultMissingToken)
				filter.Handle(w, r, model.NewUnauthorizedError(msgAuthorizationRequired))
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				recorder.RecordAuthAttempt(metrics.AuthResultMissingToken)
				filter.Handle(w, r, model.NewUnauthorizedError(msgBearerRequired))
				return
			}

			result, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					recorder.RecordAuthAttempt(metrics.AuthResultInvalidToken)
					slog.DebugContext(r.Context(), "authentication failed", slog.String("error", err.Error()))
					filter.Handle(w, r, model.NewUnauthorizedError(msgInvalidToken))
					return
				}
				recorder.RecordAuthAttempt(metrics.AuthResultError)
				filter.Handle(w, r, err)
				return
			}

			if result.Created {
				recorder.RecordAuthAttempt(metrics.AuthResultCreated)
			} else {
				recorder.RecordAuthAttempt(metrics.AuthResultSuccess)
			}

			ctx := ContextWithUser(r.Context(), result.User, result.Token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken は "Bearer <token>" 形式のヘッダーからトークンを取り出す。スキーム名は大文字小文字を区別しない。
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
