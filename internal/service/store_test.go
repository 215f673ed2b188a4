package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"osm-eval/backend/config"
	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/model"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/pkg/clock"
	"osm-eval/backend/pkg/database"
)

// ── 测试环境：内存 SQLite + 固定时钟 ──
//
// SQLite 不支持行锁，单连接下所有事务串行执行，
// 用于验证业务不变量；行锁路径由 repository 包的集成测试覆盖

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db    *gorm.DB
	repo  *repository.Repository
	clock *clock.Fixed
	cfg   *config.Config
	svc   *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig("silent"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Entitlement{},
		&model.WorkItem{},
		&model.Lease{},
		&model.LedgerEntry{},
		&model.EvaluationRecord{},
		&model.AnnotationRecord{},
		&model.ReevaluationRequest{},
	))

	cfg := &config.Config{
		Database: config.DatabaseConfig{TxMaxAttempts: 3},
		Lease: config.LeaseConfig{
			Duration:         24 * time.Hour,
			DefaultBatchSize: 10,
			MaxBatchSize:     50,
			ReclaimSchedule:  "@hourly",
		},
	}
	clk := clock.NewFixed(testEpoch)
	repo := repository.NewRepository(db, cfg.Database.TxMaxAttempts)

	return &testEnv{
		db:    db,
		repo:  repo,
		clock: clk,
		cfg:   cfg,
		svc:   NewService(cfg, repo, clk, zap.NewNop()),
	}
}

// entitle 授予评阅资格
func (e *testEnv) entitle(t *testing.T, evaluatorID, subject, exam string) {
	t.Helper()
	now := e.clock.Now()
	require.NoError(t, e.repo.Entitlement.Create(context.Background(), &model.Entitlement{
		EntitlementID: uuid.NewString(),
		EvaluatorID:   evaluatorID,
		SubjectCode:   subject,
		ExamName:      exam,
		IsActive:      true,
		GrantedBy:     "admin-1",
		AuditModel:    model.AuditModel{CreatedAt: now, UpdatedAt: now},
	}))
}

// seedItems 按给定顺序入库答卷
func (e *testEnv) seedItems(t *testing.T, subject, exam string, barcodes ...string) {
	t.Helper()
	items := make([]model.WorkItem, len(barcodes))
	for i, b := range barcodes {
		items[i] = model.WorkItem{
			Barcode:     b,
			SubjectCode: subject,
			ExamName:    exam,
			CreatedAt:   e.clock.Now(),
		}
	}
	n, err := e.repo.WorkItem.BatchInsert(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, int64(len(barcodes)), n)
}

// seedNumbered 入库 n 份答卷，条码为 prefix-01 … prefix-n
func (e *testEnv) seedNumbered(t *testing.T, subject, exam, prefix string, n int) []string {
	t.Helper()
	barcodes := make([]string, n)
	for i := range barcodes {
		barcodes[i] = fmt.Sprintf("%s-%02d", prefix, i+1)
	}
	e.seedItems(t, subject, exam, barcodes...)
	return barcodes
}

func (e *testEnv) item(t *testing.T, barcode string) *model.WorkItem {
	t.Helper()
	item, err := e.repo.WorkItem.GetByBarcode(context.Background(), barcode)
	require.NoError(t, err)
	return item
}

func (e *testEnv) lease(t *testing.T, leaseID string) *model.Lease {
	t.Helper()
	lease, err := e.repo.Lease.GetByID(context.Background(), leaseID)
	require.NoError(t, err)
	return lease
}

func (e *testEnv) activeLeaseCount(t *testing.T, evaluatorID, subject string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Lease{}).
		Where("evaluator_id = ? AND subject_code = ? AND is_active = ?", evaluatorID, subject, true).
		Count(&n).Error)
	return n
}

// commit 以合法批注提交评分
func (e *testEnv) commit(barcode, evaluatorID string, score, maxScore float64) (string, error) {
	resp, err := e.svc.Evaluation.Commit(context.Background(), &CommitInput{
		Barcode:     barcode,
		EvaluatorID: evaluatorID,
		Score:       score,
		MaxScore:    maxScore,
		Annotations: []byte(`{"schema_version":1,"data":[]}`),
	})
	if err != nil {
		return "", err
	}
	return resp.BatchStatus, nil
}

func leaseBarcodes(items []dto.LeaseItemResponse) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].Barcode
	}
	return out
}
