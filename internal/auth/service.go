// Package auth はIDトークンからローカルユーザーを解決する認証処理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cvision/cvision-api/internal/firebase"
	"github.com/cvision/cvision-api/internal/model"
	"github.com/cvision/cvision-api/internal/repository"
)

// ErrUnauthenticated はトークン検証またはユーザー参照に失敗した場合に返す。
var ErrUnauthenticated = errors.New("unauthenticated")

// TokenVerifier はIDトークンを検証するインターフェース。
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebase.Token, error)
}

// Result は認証結果。
type Result struct {
	User    *model.User
	Token   *firebase.Token
	Created bool // 今回の認証でユーザーが作成されたか
}

// Service はIDトークンの検証とローカルユーザーの解決を行う。
type Service struct {
	verifier TokenVerifier
	userRepo repository.UserRepository
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(verifier TokenVerifier, userRepo repository.UserRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{verifier: verifier, userRepo: userRepo, logger: logger}
}

// Authenticate はIDトークンを検証し、対応するユーザーを返す。
// 既存ユーザーはupdated_atを更新し、未登録ならトークンの情報から作成する。
// 検証・参照・タイムスタンプ更新の失敗はErrUnauthenticated、作成失敗はそれ以外のエラーを返す。
func (s *Service) Authenticate(ctx context.Context, idToken string) (*Result, error) {
	token, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Debug("id token verification failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := s.userRepo.FindByFirebaseUID(ctx, token.UID)
	if err != nil {
		s.logger.Error("failed to look up user", slog.String("firebase_uid", token.UID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if user != nil {
		touched, err := s.userRepo.Touch(ctx, user.ID)
		if err != nil {
			s.logger.Error("failed to update user timestamp", slog.String("user_id", user.ID), slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		if touched == nil {
			return nil, fmt.Errorf("%w: user %s no longer exists", ErrUnauthenticated, user.ID)
		}
		return &Result{User: touched, Token: token}, nil
	}

	created, err := s.userRepo.UpsertByFirebaseUID(ctx, newUserFromToken(token))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("new user created",
		slog.String("user_id", created.ID),
		slog.String("email", created.Email),
		slog.String("sign_in_provider", token.SignInProvider),
	)
	return &Result{User: created, Token: token, Created: true}, nil
}

// newUserFromToken はトークンのメール・表示名・画像から新規ユーザーを組み立てる。
func newUserFromToken(token *firebase.Token) *model.User {
	user := &model.User{
		FirebaseUID: token.UID,
		Email:       token.Email,
	}
	if token.Name != "" {
		name := token.Name
		user.FirstName = &name
	}
	if token.Picture != "" {
		picture := token.Picture
		user.ProfileImage = &picture
	}
	return user
}
