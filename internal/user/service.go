// Package user はユーザープロフィールとオンボーディングのドメインロジックを提供する。
package user

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cvision/cvision-api/internal/model"
	"github.com/cvision/cvision-api/internal/repository"
)

// TextSanitizer はプロフィールのテキスト項目を無害化するインターフェース。
type TextSanitizer interface {
	SanitizePtr(raw *string) *string
}

// URLValidator はユーザー入力のURLを検証するインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Service はユーザープロフィールのサービス層。
type Service struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	store       repository.Store
	sanitizer   TextSanitizer
	urlGuard    URLValidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	store repository.Store,
	sanitizer TextSanitizer,
	urlGuard URLValidator,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		store:       store,
		sanitizer:   sanitizer,
		urlGuard:    urlGuard,
		logger:      logger,
		now:         time.Now,
	}
}

// GetProfile はユーザーのプロフィールを関連情報付きで返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := s.profileRepo.FindProfile(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load profile")
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError()
	}
	return profile, nil
}

// UpdateProfile はプロフィールを部分更新する。
// テキスト項目はHTMLを除去してから保存し、profileImageは公開ホストのhttp(s) URLのみ受け付ける。
func (s *Service) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.User, error) {
	clean := model.ProfileUpdate{
		FirstName:   s.sanitizer.SanitizePtr(update.FirstName),
		LastName:    s.sanitizer.SanitizePtr(update.LastName),
		University:  s.sanitizer.SanitizePtr(update.University),
		Major:       s.sanitizer.SanitizePtr(update.Major),
		CareerGoals: s.sanitizer.SanitizePtr(update.CareerGoals),
	}

	if update.ProfileImage != nil {
		image := strings.TrimSpace(*update.ProfileImage)
		if image != "" {
			if err := s.urlGuard.ValidateURL(image); err != nil {
				return nil, model.NewValidationError("Invalid request parameters", map[string]string{
					"profileImage": err.Error(),
				})
			}
		}
		clean.ProfileImage = &image
	}

	user, err := s.userRepo.UpdateProfile(ctx, userID, clean)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update profile")
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	s.logger.Info("profile updated", slog.String("user_id", userID))
	return user, nil
}

// GetOnboardingSteps はプロフィールの入力状況からオンボーディングの各ステップを判定する。
func (s *Service) GetOnboardingSteps(ctx context.Context, userID string) (model.OnboardingSteps, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return model.OnboardingSteps{}, errors.Wrap(err, "failed to load user")
	}
	if user == nil {
		return model.OnboardingSteps{}, model.NewUserNotFoundError()
	}

	counts, err := s.profileRepo.CountRelations(ctx, userID)
	if err != nil {
		return model.OnboardingSteps{}, errors.Wrap(err, "failed to count user relations")
	}

	return onboardingSteps(user, counts), nil
}

func onboardingSteps(user *model.User, counts model.ProfileCounts) model.OnboardingSteps {
	return model.OnboardingSteps{
		ProfileCompleted:      model.HasText(user.FirstName) && model.HasText(user.LastName),
		AcademicInfoCompleted: model.HasText(user.University) && model.HasText(user.Major),
		CareerGoalsSet:        model.HasText(user.CareerGoals),
		CVUploaded:            counts.CVs > 0,
	}
}

// GetOnboardingStatus は完了フラグと各ステップの達成状況を返す。
func (s *Service) GetOnboardingStatus(ctx context.Context, user *model.User) (*model.OnboardingStatus, error) {
	steps, err := s.GetOnboardingSteps(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &model.OnboardingStatus{Completed: user.OnboardingCompleted, Steps: steps}, nil
}

// CompleteOnboarding はすべてのステップが達成済みの場合のみ完了フラグを立てる。
// 判定と更新はユーザー行をロックした同一トランザクション内で行う。
func (s *Service) CompleteOnboarding(ctx context.Context, userID string) (*model.User, error) {
	var completed *model.User
	err := s.store.WithinTx(ctx, func(users repository.UserRepository, profiles repository.ProfileRepository) error {
		user, err := users.LockByID(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to load user")
		}
		if user == nil {
			return model.NewUserNotFoundError()
		}

		counts, err := profiles.CountRelations(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to count user relations")
		}
		if steps := onboardingSteps(user, counts); !steps.AllCompleted() {
			return model.NewOnboardingIncompleteError(steps)
		}

		completed, err = users.SetOnboardingCompleted(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to complete onboarding")
		}
		if completed == nil {
			return model.NewUserNotFoundError()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("onboarding completed", slog.String("user_id", userID))
	return completed, nil
}

// GetUserStats は関連件数と登録からの経過日数を返す。
func (s *Service) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user")
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	counts, err := s.profileRepo.CountRelations(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count user relations")
	}

	days := int(math.Floor(s.now().Sub(user.CreatedAt).Hours() / 24))
	if days < 0 {
		days = 0
	}

	return &model.UserStats{
		CVs:              counts.CVs,
		Skills:           counts.Skills,
		Roadmaps:         counts.Roadmaps,
		DaysSinceJoining: days,
		LastUpdated:      user.UpdatedAt,
	}, nil
}
