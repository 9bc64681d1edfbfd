// Package handler はHTTPルーティングとリクエストハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cvision/cvision-api/internal/middleware"
	"github.com/cvision/cvision-api/internal/model"
)

// maxProfileBodyBytes はプロフィール更新リクエストボディの上限サイズ。
const maxProfileBodyBytes = 64 << 10

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.User, error)
	GetOnboardingStatus(ctx context.Context, user *model.User) (*model.OnboardingStatus, error)
	CompleteOnboarding(ctx context.Context, userID string) (*model.User, error)
	GetUserStats(ctx context.Context, userID string) (*model.UserStats, error)
}

// UserHandler はユーザープロフィールとオンボーディングのHTTPハンドラー。
// 各メソッドは認証ガードを通過したリクエストでのみ呼び出される。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// GetProfile はログインユーザーのプロフィールを返す。
// GET /users/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	profile, err := h.service.GetProfile(r.Context(), user.ID)
	if err != nil {
		return err
	}

	middleware.WriteSuccess(w, r, http.StatusOK, profile)
	return nil
}

// UpdateProfile はログインユーザーのプロフィールを部分更新する。
// PUT /users/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	var req model.ProfileUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProfileBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return model.NewBadRequestError("Invalid request body: " + err.Error())
	}
	// ボディはJSON値1つのみ受け付ける
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return model.NewBadRequestError("Invalid request body: unexpected data after JSON object")
	}

	updated, err := h.service.UpdateProfile(r.Context(), user.ID, req)
	if err != nil {
		return err
	}

	middleware.WriteSuccess(w, r, http.StatusOK, updated)
	return nil
}

// GetOnboardingStatus はオンボーディングの完了フラグと各ステップの状況を返す。
// GET /users/onboarding-status
func (h *UserHandler) GetOnboardingStatus(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	status, err := h.service.GetOnboardingStatus(r.Context(), user)
	if err != nil {
		return err
	}

	middleware.WriteSuccess(w, r, http.StatusOK, status)
	return nil
}

// CompleteOnboarding はオンボーディングを完了にする。
// PUT /users/complete-onboarding
func (h *UserHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	updated, err := h.service.CompleteOnboarding(r.Context(), user.ID)
	if err != nil {
		return err
	}

	middleware.WriteSuccess(w, r, http.StatusOK, updated)
	return nil
}

// GetStats はログインユーザーの利用統計を返す。
// GET /users/stats
func (h *UserHandler) GetStats(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	stats, err := h.service.GetUserStats(r.Context(), user.ID)
	if err != nil {
		return err
	}

	middleware.WriteSuccess(w, r, http.StatusOK, stats)
	return nil
}

// currentUser は認証ガードが注入したユーザーを取り出す。
func currentUser(r *http.Request) (*model.User, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return nil, model.NewUnauthorizedError("Authentication required")
	}
	return user, nil
}
