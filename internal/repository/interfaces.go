// Package repository はデータ永続化のインターフェースとGORMによる実装を提供する。
package repository

import (
	"context"

	"github.com/cvision/cvision-api/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByFirebaseUID はFirebase UIDでユーザーを検索する。見つからない場合はnilを返す。
	FindByFirebaseUID(ctx context.Context, firebaseUID string) (*model.User, error)

	// UpsertByFirebaseUID はfirebase_uidをキーにユーザーを作成する。
	// 同一UIDの行が既に存在する場合はupdated_atのみ更新し、その行を返す。
	// 同一UIDで並行に呼び出されても行は1件しか作成されない。
	UpsertByFirebaseUID(ctx context.Context, user *model.User) (*model.User, error)

	// Touch はユーザーのupdated_atを現在時刻に更新し、更新後のユーザーを返す。
	// 見つからない場合はnilを返す。
	Touch(ctx context.Context, id string) (*model.User, error)

	// LockByID はトランザクション内で指定IDのユーザーを行ロック付きで取得する。
	// 見つからない場合はnilを返す。
	LockByID(ctx context.Context, id string) (*model.User, error)

	// UpdateProfile はnil以外のフィールドとupdated_atを更新し、更新後のユーザーを返す。
	// 見つからない場合はnilを返す。
	UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error)

	// SetOnboardingCompleted はオンボーディング完了フラグを立てる。
	// 見つからない場合はnilを返す。
	SetOnboardingCompleted(ctx context.Context, id string) (*model.User, error)
}

// ProfileRepository はプロフィール集約の読み取りインターフェース。
type ProfileRepository interface {
	// FindProfile はユーザーに保有スキル、最新のアクティブなロードマップ、件数を付加して返す。
	// 見つからない場合はnilを返す。
	FindProfile(ctx context.Context, userID string) (*model.Profile, error)

	// CountRelations はユーザーのCV・ロードマップ・保有スキルの件数を返す。
	CountRelations(ctx context.Context, userID string) (model.ProfileCounts, error)
}
