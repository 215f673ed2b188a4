package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"osm-eval/backend/internal/model"
	"osm-eval/backend/internal/repository"
)

func TestCommit_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.seedItems(t, "PHY101", "MidSem", "A")
	valid := []byte(`{"schema_version":1,"data":[]}`)

	cases := []struct {
		name string
		in   CommitInput
	}{
		{"缺少条码", CommitInput{EvaluatorID: "E1", Score: 5, MaxScore: 10, Annotations: valid}},
		{"缺少评阅员", CommitInput{Barcode: "A", Score: 5, MaxScore: 10, Annotations: valid}},
		{"缺少批注", CommitInput{Barcode: "A", EvaluatorID: "E1", Score: 5, MaxScore: 10}},
		{"负分", CommitInput{Barcode: "A", EvaluatorID: "E1", Score: -1, MaxScore: 10, Annotations: valid}},
		{"超过满分", CommitInput{Barcode: "A", EvaluatorID: "E1", Score: 11, MaxScore: 10, Annotations: valid}},
		{"满分为0", CommitInput{Barcode: "A", EvaluatorID: "E1", Score: 0, MaxScore: 0, Annotations: valid}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			_, err := env.svc.Evaluation.Commit(context.Background(), &in)
			require.ErrorIs(t, err, ErrInvalidEvaluation)
		})
	}
	require.False(t, env.item(t, "A").IsChecked)
}

func TestCommit_UnknownBarcode(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.commit("GHOST", "E1", 5, 10)
	require.ErrorIs(t, err, ErrWorkItemNotFound)
}

func TestCommit_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.entitle(t, "E1", "PHY101", "MidSem")
	env.seedItems(t, "PHY101", "MidSem", "A", "B")

	_, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 2))
	require.NoError(t, err)

	status, err := env.commit("A", "E1", 8, 10)
	require.NoError(t, err)
	require.Equal(t, BatchStatusActive, status)

	env.clock.Advance(time.Minute)
	_, err = env.commit("A", "E1", 3, 10)
	require.ErrorIs(t, err, ErrAlreadyEvaluated)

	record, err := env.repo.Evaluation.GetByBarcode(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, 8.0, record.Score)
	require.True(t, record.EvaluatedAt.Equal(testEpoch))

	var records int64
	require.NoError(t, env.db.Model(&model.EvaluationRecord{}).Where("barcode = ?", "A").Count(&records).Error)
	require.Equal(t, int64(1), records)
}

func TestCommit_BatchCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.entitle(t, "E1", "PHY101", "MidSem")
	barcodes := env.seedNumbered(t, "PHY101", "MidSem", "P", 3)

	granted, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 3))
	require.NoError(t, err)

	var statuses []string
	for _, b := range barcodes {
		env.clock.Advance(time.Minute)
		status, err := env.commit(b, "E1", 6, 10)
		require.NoError(t, err)
		statuses = append(statuses, status)
	}
	require.Equal(t, []string{BatchStatusActive, BatchStatusActive, BatchStatusCompleted}, statuses)

	lease := env.lease(t, granted.LeaseID)
	require.False(t, lease.IsActive)
	require.NotNil(t, lease.CompletedAt)
	require.Nil(t, lease.ReclaimedAt)
	require.True(t, lease.CompletedAt.Equal(env.clock.Now()))

	for _, b := range barcodes {
		item := env.item(t, b)
		require.True(t, item.IsAssigned)
		require.True(t, item.IsChecked)
	}

	// 批次完成后可以领取新批次
	env.seedNumbered(t, "PHY101", "MidSem", "Q", 1)
	next, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 3))
	require.NoError(t, err)
	require.NotEqual(t, granted.LeaseID, next.LeaseID)
}

func TestCommit_WritesAnnotations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.entitle(t, "E1", "PHY101", "MidSem")
	env.seedItems(t, "PHY101", "MidSem", "A")
	_, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 1))
	require.NoError(t, err)

	annotations := []byte(`{"schema_version":2,"data":{"marks":[1,2]}}`)
	overlay := []byte(`{"schema_version":1,"data":"png"}`)
	_, err = env.svc.Evaluation.Commit(ctx, &CommitInput{
		Barcode: "A", EvaluatorID: "E1", Score: 7.5, MaxScore: 10,
		Annotations: annotations, Overlay: overlay,
	})
	require.NoError(t, err)

	got, err := env.svc.Evaluation.GetEvaluation(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, 7.5, got.Score)
	require.Equal(t, 10.0, got.MaxScore)
	require.Equal(t, "E1", got.EvaluatorID)
	require.JSONEq(t, string(annotations), string(got.Annotations))
	require.JSONEq(t, string(overlay), string(got.Overlay))
}

func TestGetEvaluation_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Evaluation.GetEvaluation(context.Background(), "A")
	require.ErrorIs(t, err, ErrEvaluationNotFound)
}

// 没有对应台账时提交照常生效，批次状态为 untracked
func TestCommit_WithoutLedgerEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.entitle(t, "E1", "PHY101", "MidSem")
	env.seedItems(t, "PHY101", "MidSem", "A", "B")

	held, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 1))
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, leaseBarcodes(held.Items))

	// B 不在任何租约中
	status, err := env.commit("B", "E1", 4, 10)
	require.NoError(t, err)
	require.Equal(t, BatchStatusUntracked, status)
	require.True(t, env.item(t, "B").IsChecked)

	// 他人持有的答卷由 E2 提交：E1 的台账一并关闭，批次随之完成
	status, err = env.commit("A", "E2", 4, 10)
	require.NoError(t, err)
	require.Equal(t, BatchStatusUntracked, status)
	open, err := env.repo.Ledger.CountOpenByLease(ctx, held.LeaseID)
	require.NoError(t, err)
	require.Equal(t, int64(0), open)
	lease := env.lease(t, held.LeaseID)
	require.False(t, lease.IsActive)
	require.NotNil(t, lease.CompletedAt)
}

// 他人抢先提交后，持有人的批次仍可正常完成，且可继续领取
func TestCommit_OtherEvaluatorClosesHolderEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.entitle(t, "E1", "PHY101", "MidSem")
	env.seedItems(t, "PHY101", "MidSem", "A", "B", "C")

	held, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 2))
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, leaseBarcodes(held.Items))

	status, err := env.commit("A", "E2", 5, 10)
	require.NoError(t, err)
	require.Equal(t, BatchStatusUntracked, status)

	// A 已不再出现在 E1 的批次中
	active, err := env.svc.Lease.GetActiveLease(ctx, "E1", "PHY101")
	require.NoError(t, err)
	require.True(t, active.HasLease)
	require.Equal(t, []string{"B"}, leaseBarcodes(active.Lease.Items))

	status, err = env.commit("B", "E1", 6, 10)
	require.NoError(t, err)
	require.Equal(t, BatchStatusCompleted, status)

	_, err = env.commit("A", "E1", 7, 10)
	require.ErrorIs(t, err, ErrAlreadyEvaluated)

	record, err := env.repo.Evaluation.GetByBarcode(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, "E2", record.EvaluatorID)

	next, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 2))
	require.NoError(t, err)
	require.False(t, next.Reused)
	require.Equal(t, []string{"C"}, leaseBarcodes(next.Items))
}

// 提交中途失败整体回滚，答卷可重新提交
func TestCommit_RollsBackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.entitle(t, "E1", "PHY101", "MidSem")
	env.seedItems(t, "PHY101", "MidSem", "A")

	granted, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 1))
	require.NoError(t, err)

	// 批注写入失败
	require.NoError(t, env.db.Migrator().DropTable(&model.AnnotationRecord{}))
	_, err = env.commit("A", "E1", 4, 10)
	require.Error(t, err)

	_, err = env.svc.Evaluation.GetEvaluation(ctx, "A")
	require.ErrorIs(t, err, ErrEvaluationNotFound)
	require.False(t, env.item(t, "A").IsChecked)
	open, err := env.repo.Ledger.CountOpenByLease(ctx, granted.LeaseID)
	require.NoError(t, err)
	require.Equal(t, int64(1), open)
	require.True(t, env.lease(t, granted.LeaseID).IsActive)

	require.NoError(t, env.db.AutoMigrate(&model.AnnotationRecord{}))
	status, err := env.commit("A", "E1", 4, 10)
	require.NoError(t, err)
	require.Equal(t, BatchStatusCompleted, status)
	require.True(t, env.item(t, "A").IsChecked)
}

// 读取租约后、置完成前租约已被回收：按过期返回
func TestSettleLease_ReclaimedInBetween(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.entitle(t, "E1", "PHY101", "MidSem")
	env.seedItems(t, "PHY101", "MidSem", "A")

	granted, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 1))
	require.NoError(t, err)
	stale := env.lease(t, granted.LeaseID)
	require.True(t, stale.IsActive)

	env.clock.Advance(25 * time.Hour)
	result, err := env.svc.Reclaim.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.LeasesReclaimed)

	svc := env.svc.Evaluation.(*evaluationService)
	var status string
	err = env.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		status, err = svc.settleLease(ctx, tx, stale, env.clock.Now())
		return err
	})
	require.NoError(t, err)
	require.Equal(t, BatchStatusExpired, status)
	require.Nil(t, env.lease(t, granted.LeaseID).CompletedAt)
}

// 租约已过期但尚未回收时提交仍然成功
func TestCommit_ExpiredButNotReclaimed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.entitle(t, "E1", "PHY101", "MidSem")
	env.seedNumbered(t, "PHY101", "MidSem", "P", 2)

	granted, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 2))
	require.NoError(t, err)

	env.clock.Advance(30 * time.Hour)
	status, err := env.commit("P-01", "E1", 4, 10)
	require.NoError(t, err)
	require.Equal(t, BatchStatusExpired, status)

	// 回收只释放剩余的 P-02
	result, err := env.svc.Reclaim.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.LeasesReclaimed)
	require.Equal(t, 1, result.ItemsReleased)
	require.False(t, env.item(t, "P-02").IsAssigned)
	require.True(t, env.item(t, "P-01").IsChecked)
	require.False(t, env.lease(t, granted.LeaseID).IsActive)
}

// 租约被回收后原评阅员提交：台账已删除，按 untracked 记录
func TestCommit_AfterReclaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.entitle(t, "E1", "PHY101", "MidSem")
	env.seedItems(t, "PHY101", "MidSem", "A")

	_, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 1))
	require.NoError(t, err)
	env.clock.Advance(25 * time.Hour)
	_, err = env.svc.Reclaim.Sweep(ctx)
	require.NoError(t, err)

	status, err := env.commit("A", "E1", 4, 10)
	require.NoError(t, err)
	require.Equal(t, BatchStatusUntracked, status)

	// 已批阅的答卷不会再被分配
	_, err = env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 1))
	require.ErrorIs(t, err, ErrNoWorkAvailable)
}

// E1 / PHY101 / MidSem 完整流程
func TestScenario_PhysicsMidSem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.entitle(t, "E1", "PHY101", "MidSem")
	env.seedItems(t, "PHY101", "MidSem", "A", "B", "C")

	l1, err := env.svc.Lease.RequestLease(ctx, "E1", leaseReq("PHY101", "MidSem", 2))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"A", "B"}, leaseBarcodes(l1.Items))
	require.True(t, env.item(t, "A").IsAssigned)
	require.True(t, env.item(t, "B").IsAssigned)
	require.False(t, env.item(t, "C").IsAssigned)

	status, err := env.commit("A", "E1", 8, 10)
	require.NoError(t, err)
	require.Equal(t, BatchStatusActive, status)
	_, err = env.repo.Evaluation.GetByBarcode(ctx, "A")
	require.NoError(t, err)
	_, err = env.repo.Ledger.FindOpen(ctx, "A", "E1")
	require.Error(t, err, "A 的台账应已完成")
	require.True(t, env.lease(t, l1.LeaseID).IsActive)

	status, err = env.commit("B", "E1", 9, 10)
	require.NoError(t, err)
	require.Equal(t, BatchStatusCompleted, status)
	require.False(t, env.lease(t, l1.LeaseID).IsActive)

	_, err = env.commit("A", "E1", 10, 10)
	require.ErrorIs(t, err, ErrAlreadyEvaluated)
}
