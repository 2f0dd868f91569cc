package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTxOptions_AcceptsIsolationLevel(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	if err := client.WithTxOptions(context.Background(), opts, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "serial"}).Error
	}); err != nil {
		t.Fatalf("WithTxOptions failed: %v", err)
	}
}

func TestSetLocalTimeoutsIsNoopOnSQLite(t *testing.T) {
	db := newTestDB(t)
	if Dialect(db) != "sqlite" {
		t.Fatalf("unexpected dialect %q", Dialect(db))
	}
	if err := SetLocalTimeouts(db, time.Second); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := db.Create(&testModel{Name: "dup"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	if !IsUniqueViolation(pgErr, "orders_order_number_key") {
		t.Fatalf("expected pg unique violation to match constraint")
	}
	if IsUniqueViolation(pgErr, "other_constraint") {
		t.Fatalf("constraint mismatch should not match")
	}
}

func TestClassifyTxError(t *testing.T) {
	serial := fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})
	if got := pkgerrors.As(ClassifyTxError(serial, "delete order")); got == nil || got.Code() != pkgerrors.CodeConcurrency {
		t.Fatalf("expected concurrency code, got %v", got)
	}
	if got := pkgerrors.As(ClassifyTxError(context.DeadlineExceeded, "confirm")); got == nil || got.Code() != pkgerrors.CodeConcurrency {
		t.Fatalf("expected deadline to classify as concurrency, got %v", got)
	}
	typed := pkgerrors.New(pkgerrors.CodeOrderLocked, "locked")
	if ClassifyTxError(typed, "x") != error(typed) {
		t.Fatalf("typed errors should pass through")
	}
	if got := pkgerrors.As(ClassifyTxError(errors.New("io"), "x")); got == nil || got.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %v", got)
	}
	if ClassifyTxError(nil, "x") != nil {
		t.Fatalf("nil stays nil")
	}
}

func TestPing(t *testing.T) {
	client := Wrap(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestQueryLoggerReportsSlowAndFailedQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: buf}), 10*time.Millisecond)
	fc := func() (string, int64) { return "SELECT 1", 1 }

	q.Trace(context.Background(), time.Now(), fc, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast queries should not be logged: %s", buf.String())
	}

	q.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	if !bytes.Contains(buf.Bytes(), []byte(`"slow query"`)) || !bytes.Contains(buf.Bytes(), []byte(`"sql":"SELECT 1"`)) {
		t.Fatalf("expected slow query entry: %s", buf.String())
	}

	buf.Reset()
	q.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
	q.Trace(context.Background(), time.Now(), fc, &pgconn.PgError{Code: "23505"})
	if buf.Len() != 0 {
		t.Fatalf("expected outcomes should not be logged: %s", buf.String())
	}
	q.Trace(context.Background(), time.Now(), fc, errors.New("connection reset"))
	if !bytes.Contains(buf.Bytes(), []byte(`"query failed"`)) {
		t.Fatalf("expected failure entry: %s", buf.String())
	}

	buf.Reset()
	q.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), fc, errors.New("x"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode should drop everything: %s", buf.String())
	}
}
