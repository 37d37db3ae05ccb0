// Package dbtest はテスト用のインメモリDBを用意する。
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pos/internal/infra/db"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open はテストごとに独立したSQLiteを開いてマイグレーションする。
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	// 接続1本＋共有キャッシュで、同じテスト内は同じDBを見る
	dsn := fmt.Sprintf("file:pos_test_%d?mode=memory&cache=shared", seq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}
