// Package dbtest 提供测试用的内存 SQLite 数据库
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/anoixa/media-album/database"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 为每个测试创建独立的内存数据库并完成迁移
// extra 为测试自带的额外模型（例如引用相册的业务表）
func Open(t *testing.T, extra ...interface{}) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))
	if len(extra) > 0 {
		require.NoError(t, db.AutoMigrate(extra...))
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}
