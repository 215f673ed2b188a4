//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"osm-eval/backend/internal/model"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/pkg/database"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=osm_eval password=osm_eval_password dbname=osm_eval_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), database.GormConfig("silent"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 使用与生产一致的迁移脚本建表（含部分唯一索引）
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "数据库迁移失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

// seedSubject 入库 n 份答卷，科目名随机以隔离各测试
func seedSubject(t *testing.T, n int) (subject string, cleanup func()) {
	t.Helper()
	subject = "S" + uuid.NewString()[:8]
	items := make([]model.WorkItem, n)
	for i := range items {
		items[i] = model.WorkItem{
			Barcode:     fmt.Sprintf("%s-%03d", subject, i+1),
			SubjectCode: subject,
			ExamName:    "MidSem",
			CreatedAt:   time.Now().UTC(),
		}
	}
	repo := repository.NewRepository(testDB, 1)
	if _, err := repo.WorkItem.BatchInsert(context.Background(), items); err != nil {
		t.Fatalf("入库答卷失败: %v", err)
	}
	cleanup = func() {
		testDB.Where("subject_code = ?", subject).Delete(&model.Lease{})
		testDB.Where("subject_code = ?", subject).Delete(&model.WorkItem{})
	}
	return subject, cleanup
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction Rollback / Commit
// ═══════════════════════════════════════════════════════════

func TestTransaction_Rollback(t *testing.T) {
	subject, cleanup := seedSubject(t, 1)
	defer cleanup()

	repo := repository.NewRepository(testDB, 1)
	ctx := context.Background()

	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.WorkItem.MarkAssigned(ctx, []string{subject + "-001"}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	if err == nil {
		t.Fatal("期望事务返回错误")
	}

	item, err := repo.WorkItem.GetByBarcode(ctx, subject+"-001")
	if err != nil {
		t.Fatalf("查询答卷失败: %v", err)
	}
	if item.IsAssigned {
		t.Fatal("期望回滚后答卷仍未分配")
	}
}

// ═══════════════════════════════════════════════════════════
// Test: SKIP LOCKED 互斥
// ═══════════════════════════════════════════════════════════

// 事务 A 锁住前 3 份未提交期间，事务 B 只能拿到其余答卷
func TestLockUnassigned_SkipLocked(t *testing.T) {
	subject, cleanup := seedSubject(t, 5)
	defer cleanup()

	repo := repository.NewRepository(testDB, 1)
	ctx := context.Background()

	locked := make(chan []model.WorkItem, 1)
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- repo.Transaction(ctx, func(tx *repository.Repository) error {
			items, err := tx.WorkItem.LockUnassigned(ctx, subject, "MidSem", 3)
			if err != nil {
				return err
			}
			locked <- items
			<-release
			return nil
		})
	}()

	var first []model.WorkItem
	select {
	case first = <-locked:
	case err := <-done:
		t.Fatalf("事务 A 提前结束: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("事务 A 未能加锁")
	}

	var second []model.WorkItem
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		second, err = tx.WorkItem.LockUnassigned(ctx, subject, "MidSem", 5)
		return err
	})
	close(release)
	if err != nil {
		t.Fatalf("事务 B 失败: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("事务 A 失败: %v", err)
	}

	if len(first) != 3 || len(second) != 2 {
		t.Fatalf("期望 3/2 份，实际 %d/%d", len(first), len(second))
	}
	seen := make(map[string]bool)
	for _, it := range first {
		seen[it.Barcode] = true
	}
	for _, it := range second {
		if seen[it.Barcode] {
			t.Errorf("答卷 %s 被两个事务同时锁定", it.Barcode)
		}
	}
}

// ═══════════════════════════════════════════════════════════
// Test: 部分唯一索引
// ═══════════════════════════════════════════════════════════

func TestLease_PartialUniqueIndex(t *testing.T) {
	subject, cleanup := seedSubject(t, 0)
	defer cleanup()

	repo := repository.NewRepository(testDB, 1)
	ctx := context.Background()
	now := time.Now().UTC()
	newLease := func() *model.Lease {
		return &model.Lease{
			LeaseID:     uuid.NewString(),
			EvaluatorID: "E1",
			SubjectCode: subject,
			ExamName:    "MidSem",
			IsActive:    true,
			ExpiresAt:   now.Add(24 * time.Hour),
			CreatedAt:   now,
		}
	}

	first := newLease()
	if err := repo.Lease.Create(ctx, first); err != nil {
		t.Fatalf("创建租约失败: %v", err)
	}
	if err := repo.Lease.Create(ctx, newLease()); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("期望 ErrDuplicatedKey，实际: %v", err)
	}

	if _, err := repo.Lease.Complete(ctx, first.LeaseID, now); err != nil {
		t.Fatalf("完成租约失败: %v", err)
	}
	if err := repo.Lease.Create(ctx, newLease()); err != nil {
		t.Fatalf("原租约完成后应允许新租约: %v", err)
	}
}
