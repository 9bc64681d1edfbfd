package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cvision/cvision-api/internal/model"
)

// GormProfileRepo はGORMを使用したプロフィール集約リポジトリ。
type GormProfileRepo struct {
	db *gorm.DB
}

// NewGormProfileRepo はGormProfileRepoを生成する。
func NewGormProfileRepo(db *gorm.DB) *GormProfileRepo {
	return &GormProfileRepo{db: db}
}

// FindProfile はユーザーに保有スキル（スキル本体付き）、最新のアクティブなロードマップ1件、
// 関連件数を付加して返す。見つからない場合はnilを返す。
func (r *GormProfileRepo) FindProfile(ctx context.Context, userID string) (*model.Profile, error) {
	db := r.db.WithContext(ctx)

	var user model.User
	err := db.Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	profile := &model.Profile{
		User:     user,
		Skills:   []model.UserSkill{},
		Roadmaps: []model.Roadmap{},
	}

	if err := db.Preload("Skill").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&profile.Skills).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load user skills")
	}

	if err := db.Where("user_id = ? AND status = ?", userID, model.RoadmapStatusActive).
		Order("created_at DESC").
		Limit(1).
		Find(&profile.Roadmaps).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load active roadmap")
	}

	counts, err := r.CountRelations(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.Count = counts

	return profile, nil
}

// CountRelations はユーザーのCV・ロードマップ・保有スキルの件数を返す。
func (r *GormProfileRepo) CountRelations(ctx context.Context, userID string) (model.ProfileCounts, error) {
	db := r.db.WithContext(ctx)
	var counts model.ProfileCounts

	if err := db.Model(&model.CV{}).Where("user_id = ?", userID).Count(&counts.CVs).Error; err != nil {
		return model.ProfileCounts{}, errors.Wrap(err, "failed to count cvs")
	}
	if err := db.Model(&model.Roadmap{}).Where("user_id = ?", userID).Count(&counts.Roadmaps).Error; err != nil {
		return model.ProfileCounts{}, errors.Wrap(err, "failed to count roadmaps")
	}
	if err := db.Model(&model.UserSkill{}).Where("user_id = ?", userID).Count(&counts.Skills).Error; err != nil {
		return model.ProfileCounts{}, errors.Wrap(err, "failed to count user skills")
	}

	return counts, nil
}

// compile-time interface check
var _ ProfileRepository = (*GormProfileRepo)(nil)
