// Package dbtest opens isolated in-memory SQLite databases carrying the full
// schema, for service and repository tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/vendorflow-backend/pkg/db"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
)

// AllModels lists every persisted model in dependency order.
func AllModels() []any {
	return []any{
		&models.Vendor{},
		&models.User{},
		&models.UserRole{},
		&models.Order{},
		&models.OrderItem{},
		&models.Assignment{},
		&models.Dispatch{},
		&models.DispatchItem{},
		&models.DispatchAttachment{},
		&models.GoodsReceiptNote{},
		&models.GRNItem{},
		&models.Ticket{},
		&models.AuditLogEntry{},
		&models.Notification{},
		&models.OutboxEvent{},
	}
}

// Open returns a migrated database private to the calling test. The pool is
// pinned to one connection so nested statements must run on the tx handle.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=off", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

// OpenClient wraps Open in the shared db.Client.
func OpenClient(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.Wrap(conn), conn
}
