package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/cvision/cvision-api/internal/database"
)

// Store は同一トランザクションに束縛されたリポジトリで処理を実行する。
type Store interface {
	// WithinTx はfnをトランザクション内で実行する。fnがエラーを返すとロールバックし、そのエラーをそのまま返す。
	WithinTx(ctx context.Context, fn func(users UserRepository, profiles ProfileRepository) error) error
}

// GormStore はdatabase.DBのトランザクションを使うStore。
type GormStore struct {
	db *database.DB
}

// NewGormStore はGormStoreを生成する。
func NewGormStore(db *database.DB) *GormStore {
	return &GormStore{db: db}
}

// WithinTx はfnをトランザクション内で実行する。
func (s *GormStore) WithinTx(ctx context.Context, fn func(users UserRepository, profiles ProfileRepository) error) error {
	return s.db.Transaction(ctx, func(tx *gorm.DB) error {
		return fn(NewGormUserRepo(tx), NewGormProfileRepo(tx))
	})
}

// compile-time interface check
var _ Store = (*GormStore)(nil)
