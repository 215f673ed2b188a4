package repository

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"osm-eval/backend/pkg/database"
	pkgerrors "osm-eval/backend/pkg/errors"
	"osm-eval/backend/pkg/metrics"
)

// defaultTxMaxAttempts 未配置时事务的最大尝试次数（含首次）
const defaultTxMaxAttempts = 3

// Repository 所有 Repository 的聚合入口
//
// 事务约定：
//   - 所有跨表写操作必须通过 Transaction 执行，回调内只能使用传入的 txRepo
//   - 每个事务句柄由 gorm.DB.Transaction 保证恰好一次提交或回滚
//   - 可重试冲突（串行化失败、死锁、ErrTransactionConflict）整体重跑回调
type Repository struct {
	db            *gorm.DB
	txMaxAttempts int

	Entitlement  EntitlementRepository
	WorkItem     WorkItemRepository
	Lease        LeaseRepository
	Ledger       LedgerRepository
	Evaluation   EvaluationRepository
	Reevaluation ReevaluationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB, txMaxAttempts int) *Repository {
	if txMaxAttempts <= 0 {
		txMaxAttempts = defaultTxMaxAttempts
	}
	r := bind(db)
	r.txMaxAttempts = txMaxAttempts
	return r
}

// bind 基于给定连接（或事务）构建各子 Repository
func bind(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		Entitlement:  NewEntitlementRepo(db),
		WorkItem:     NewWorkItemRepo(db),
		Lease:        NewLeaseRepo(db),
		Ledger:       NewLedgerRepo(db),
		Evaluation:   NewEvaluationRepo(db),
		Reevaluation: NewReevaluationRepo(db),
	}
}

// WithTx 返回绑定到事务 tx 的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	txRepo := bind(tx)
	txRepo.txMaxAttempts = 1
	return txRepo
}

// Transaction 在单个事务中执行 fn，可重试冲突时整体重跑
// 重试耗尽后返回包装了 ErrTransactionConflict 的错误
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	var err error
	for attempt := 1; attempt <= r.txMaxAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(r.WithTx(tx))
		})
		if err == nil || !database.IsRetryable(err) {
			return err
		}
		if attempt == r.txMaxAttempts {
			break
		}

		metrics.TxRetries.Inc()
		if waitErr := backoff(ctx, attempt); waitErr != nil {
			return waitErr
		}
	}
	return fmt.Errorf("%w: 已尝试 %d 次 (%v)", pkgerrors.ErrTransactionConflict, r.txMaxAttempts, err)
}

// backoff 线性退避 + 抖动，避免冲突双方同步重试
func backoff(ctx context.Context, attempt int) error {
	d := time.Duration(attempt)*10*time.Millisecond + time.Duration(rand.Intn(10))*time.Millisecond
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
