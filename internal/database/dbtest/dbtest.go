// Package dbtest はテスト用のインメモリSQLiteデータベースを提供する。
package dbtest

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cvision/cvision-api/internal/model"
)

// Open はスキーマ適用済みのインメモリSQLiteをGORMで開く。
// 接続は1本に固定する（:memory: は接続ごとに別データベースになるため）。
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&model.User{}, &model.Skill{}, &model.UserSkill{}, &model.Roadmap{}, &model.CV{}); err != nil {
		t.Fatalf("failed to migrate sqlite schema: %v", err)
	}

	return db
}
