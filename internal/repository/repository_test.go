package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"osm-eval/backend/internal/model"
	"osm-eval/backend/pkg/database"
	pkgerrors "osm-eval/backend/pkg/errors"
)

func newSQLiteRepo(t *testing.T, attempts int) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig("silent"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Lease{}, &model.LedgerEntry{}, &model.WorkItem{}))
	return NewRepository(db, attempts)
}

func testLease(evaluatorID string) *model.Lease {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &model.Lease{
		LeaseID:     uuid.NewString(),
		EvaluatorID: evaluatorID,
		SubjectCode: "PHY101",
		ExamName:    "MidSem",
		ItemCount:   1,
		IsActive:    true,
		ExpiresAt:   now.Add(24 * time.Hour),
		CreatedAt:   now,
	}
}

func TestTransaction_RetriesConflict(t *testing.T) {
	repo := newSQLiteRepo(t, 3)
	calls := 0
	err := repo.Transaction(context.Background(), func(tx *Repository) error {
		calls++
		if calls < 3 {
			return pkgerrors.ErrTransactionConflict
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestTransaction_ExhaustedAttempts(t *testing.T) {
	repo := newSQLiteRepo(t, 2)
	calls := 0
	err := repo.Transaction(context.Background(), func(tx *Repository) error {
		calls++
		return pkgerrors.ErrTransactionConflict
	})
	require.ErrorIs(t, err, pkgerrors.ErrTransactionConflict)
	require.Equal(t, 2, calls)
}

func TestTransaction_NonRetryableReturnsImmediately(t *testing.T) {
	repo := newSQLiteRepo(t, 3)
	boom := errors.New("boom")
	calls := 0
	err := repo.Transaction(context.Background(), func(tx *Repository) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestTransaction_RollbackOnError(t *testing.T) {
	repo := newSQLiteRepo(t, 1)
	ctx := context.Background()
	lease := testLease("E1")

	err := repo.Transaction(ctx, func(tx *Repository) error {
		if err := tx.Lease.Create(ctx, lease); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = repo.Lease.GetByID(ctx, lease.LeaseID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLease_FindLiveSkipsExpired(t *testing.T) {
	repo := newSQLiteRepo(t, 1)
	ctx := context.Background()

	older := testLease("E1")
	require.NoError(t, repo.Lease.Create(ctx, older))
	newer := testLease("E1")
	newer.SubjectCode = "CHE101"
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	newer.ExpiresAt = older.CreatedAt.Add(2 * time.Hour)
	require.NoError(t, repo.Lease.Create(ctx, newer))

	now := older.CreatedAt.Add(3 * time.Hour)
	got, err := repo.Lease.FindLive(ctx, "E1", "", now)
	require.NoError(t, err)
	require.Equal(t, older.LeaseID, got.LeaseID)

	_, err = repo.Lease.FindLive(ctx, "E1", "CHE101", now)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// 恰好到期视为失效
	_, err = repo.Lease.FindLive(ctx, "E1", "PHY101", older.ExpiresAt)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLease_ConditionalTransitions(t *testing.T) {
	repo := newSQLiteRepo(t, 1)
	ctx := context.Background()
	lease := testLease("E1")
	require.NoError(t, repo.Lease.Create(ctx, lease))

	// 未到期不能回收
	n, err := repo.Lease.Expire(ctx, lease.LeaseID, lease.CreatedAt.Add(time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = repo.Lease.Complete(ctx, lease.LeaseID, lease.CreatedAt.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// 已完成的租约不可再完成、延期或回收
	n, err = repo.Lease.Complete(ctx, lease.LeaseID, lease.CreatedAt.Add(2*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = repo.Lease.Extend(ctx, lease.LeaseID, lease.CreatedAt.Add(48*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = repo.Lease.Expire(ctx, lease.LeaseID, lease.CreatedAt.Add(48*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLease_OneActivePerEvaluatorSubject(t *testing.T) {
	repo := newSQLiteRepo(t, 1)
	ctx := context.Background()
	require.NoError(t, repo.Lease.Create(ctx, testLease("E1")))

	err := repo.Lease.Create(ctx, testLease("E1"))
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	require.NoError(t, repo.Lease.Create(ctx, testLease("E2")))
}

func TestLedger_OneOpenEntryPerBarcode(t *testing.T) {
	repo := newSQLiteRepo(t, 1)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entry := func(lease string) model.LedgerEntry {
		return model.LedgerEntry{EntryID: uuid.NewString(), Barcode: "A", LeaseID: lease, EvaluatorID: "E1", AssignedAt: at}
	}

	first := entry("L1")
	require.NoError(t, repo.Ledger.BatchCreate(ctx, []model.LedgerEntry{first}))
	require.ErrorIs(t, repo.Ledger.BatchCreate(ctx, []model.LedgerEntry{entry("L2")}), gorm.ErrDuplicatedKey)

	// 完成后的台账不占用唯一约束
	n, err := repo.Ledger.MarkChecked(ctx, first.EntryID, at)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.NoError(t, repo.Ledger.BatchCreate(ctx, []model.LedgerEntry{entry("L2")}))

	// 已完成的台账不可删除
	n, err = repo.Ledger.DeleteOpen(ctx, first.EntryID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestWorkItem_ReleaseKeepsChecked(t *testing.T) {
	repo := newSQLiteRepo(t, 1)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	inserted, err := repo.WorkItem.BatchInsert(ctx, []model.WorkItem{
		{Barcode: "A", SubjectCode: "PHY101", ExamName: "MidSem", CreatedAt: at},
		{Barcode: "B", SubjectCode: "PHY101", ExamName: "MidSem", CreatedAt: at},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), inserted)

	n, err := repo.WorkItem.MarkAssigned(ctx, []string{"A", "B"})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	// 第二次分配不命中任何行
	n, err = repo.WorkItem.MarkAssigned(ctx, []string{"A"})
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = repo.WorkItem.MarkChecked(ctx, "A")
	require.NoError(t, err)

	n, err = repo.WorkItem.Release(ctx, "A")
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = repo.WorkItem.Release(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	locked, err := repo.WorkItem.LockUnassigned(ctx, "PHY101", "MidSem", 10)
	require.NoError(t, err)
	require.Len(t, locked, 1)
	require.Equal(t, "B", locked[0].Barcode)
}
