package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cvision/cvision-api/internal/model"
)

// GormUserRepo はGORMを使用したユーザーリポジトリ。
type GormUserRepo struct {
	db *gorm.DB
}

// NewGormUserRepo はGormUserRepoを生成する。
func NewGormUserRepo(db *gorm.DB) *GormUserRepo {
	return &GormUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *GormUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByFirebaseUID はFirebase UIDでユーザーを検索する。見つからない場合はnilを返す。
func (r *GormUserRepo) FindByFirebaseUID(ctx context.Context, firebaseUID string) (*model.User, error) {
	return r.first(ctx, "firebase_uid = ?", firebaseUID)
}

// UpsertByFirebaseUID はfirebase_uidの一意制約を使ってユーザーを原子的に作成する。
// 競合時にRETURNINGで得られるIDは挿入しようとした値になり得るため、作成後に読み直す。
func (r *GormUserRepo) UpsertByFirebaseUID(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	row := *user
	row.CreatedAt = now
	row.UpdatedAt = now

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "firebase_uid"}},
			DoUpdates: clause.Assignments(map[string]any{"updated_at": now}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert user")
	}

	stored, err := r.FindByFirebaseUID(ctx, user.FirebaseUID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.Errorf("user %s vanished after upsert", user.FirebaseUID)
	}
	return stored, nil
}

// Touch はユーザーのupdated_atを現在時刻に更新し、更新後のユーザーを返す。
// 見つからない場合はnilを返す。
func (r *GormUserRepo) Touch(ctx context.Context, id string) (*model.User, error) {
	user, err := r.updateColumns(ctx, id, map[string]any{"updated_at": time.Now().UTC()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to touch user")
	}
	return user, nil
}

// LockByID は指定IDのユーザーを行ロック付きで取得する。見つからない場合はnilを返す。
// トランザクション内で使用する（SQLiteではロック句は出力されない）。
func (r *GormUserRepo) LockByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock user")
	}
	return &user, nil
}

// UpdateProfile はnil以外のフィールドとupdated_atを更新し、更新後のユーザーを返す。
// 見つからない場合はnilを返す。
func (r *GormUserRepo) UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error) {
	values := map[string]any{"updated_at": time.Now().UTC()}
	set := func(column string, v *string) {
		if v != nil {
			values[column] = *v
		}
	}
	set("first_name", update.FirstName)
	set("last_name", update.LastName)
	set("university", update.University)
	set("major", update.Major)
	set("career_goals", update.CareerGoals)
	set("profile_image", update.ProfileImage)

	return r.updateColumns(ctx, id, values)
}

// SetOnboardingCompleted はオンボーディング完了フラグとupdated_atを更新する。
// 見つからない場合はnilを返す。
func (r *GormUserRepo) SetOnboardingCompleted(ctx context.Context, id string) (*model.User, error) {
	return r.updateColumns(ctx, id, map[string]any{
		"onboarding_completed": true,
		"updated_at":           time.Now().UTC(),
	})
}

func (r *GormUserRepo) updateColumns(ctx context.Context, id string, values map[string]any) (*model.User, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumns(values)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to update user")
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

func (r *GormUserRepo) first(ctx context.Context, query string, arg any) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}
	return &user, nil
}

// compile-time interface check
var _ UserRepository = (*GormUserRepo)(nil)
