// Package middleware はHTTPミドルウェアと、統一レスポンス形式の書き込みを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/cvision/cvision-api/internal/firebase"
	"github.com/cvision/cvision-api/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userContextKey      = contextKey("user")
	userIDContextKey    = contextKey("user_id")
	tokenContextKey     = contextKey("identity_token")
	requestIDContextKey = contextKey("request_id")
	userIDSinkKey       = contextKey("user_id_sink")
)

// ContextWithUser は認証済みユーザーとIDトークンをコンテキストに注入する。
func ContextWithUser(ctx context.Context, user *model.User, token *firebase.Token) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	ctx = context.WithValue(ctx, userIDContextKey, user.ID)
	if sink, ok := ctx.Value(userIDSinkKey).(*string); ok && sink != nil {
		*sink = user.ID
	}
	if token != nil {
		ctx = context.WithValue(ctx, tokenContextKey, token)
	}
	return ctx
}

// UserFromContext は認証ガードが注入したユーザーを返す。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// IdentityTokenFromContext は認証ガードが注入した検証済みIDトークンを返す。
func IdentityTokenFromContext(ctx context.Context) (*firebase.Token, bool) {
	token, ok := ctx.Value(tokenContextKey).(*firebase.Token)
	return token, ok && token != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ガードを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDのみを注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// RequestIDFromContext はRequestIDミドルウェアが採番したIDを返す。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// withUserIDSink は下流で認証されたユーザーIDを上流のミドルウェアに書き戻す先を登録する。
func withUserIDSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, userIDSinkKey, sink)
}
