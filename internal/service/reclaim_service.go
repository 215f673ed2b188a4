package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"osm-eval/backend/internal/model"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/pkg/clock"
	"osm-eval/backend/pkg/metrics"
)

// sweepPageSize 单轮扫描读取的过期租约上限
const sweepPageSize = 200

// SweepResult 一次回收扫描的结果
type SweepResult struct {
	LeasesReclaimed int
	ItemsReleased   int
	ItemsSkipped    int // 与提交竞争落败或已批阅，未回池
	LeasesFailed    int
	Duration        time.Duration
}

// ReclaimService 过期租约回收接口
//
// 设计说明：
//   - 每个租约单独一个事务，单个租约失败只记日志，不影响其余租约
//   - 先条件失效租约，再逐条删除未完成台账并释放答卷；任何一步命中 0 行都视为竞争落败而跳过
//   - 已完成的台账与评分记录不受影响
type ReclaimService interface {
	Sweep(ctx context.Context) (*SweepResult, error)
}

type reclaimService struct {
	repo   *repository.Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewReclaimService 创建 ReclaimService 实例
func NewReclaimService(repo *repository.Repository, clk clock.Clock, logger *zap.Logger) ReclaimService {
	return &reclaimService{repo: repo, clock: clk, logger: logger}
}

func (s *reclaimService) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	now := s.clock.Now()
	result := &SweepResult{}

	failed := make(map[string]bool)
	for {
		leases, err := s.repo.Lease.ListExpired(ctx, now, sweepPageSize)
		if err != nil {
			s.logger.Error("查询过期租约失败", zap.Error(err))
			return result, err
		}

		progressed := false
		for i := range leases {
			lease := &leases[i]
			if failed[lease.LeaseID] {
				continue
			}
			progressed = true

			var one leaseReclaim
			err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
				var txErr error
				one, txErr = reclaimLease(ctx, tx, lease, now)
				return txErr
			})
			if err != nil {
				failed[lease.LeaseID] = true
				result.LeasesFailed++
				s.logger.Error("回收租约失败",
					zap.String("lease_id", lease.LeaseID),
					zap.String("evaluator_id", lease.EvaluatorID),
					zap.Error(err),
				)
				continue
			}
			if !one.reclaimed {
				continue
			}

			result.LeasesReclaimed++
			result.ItemsReleased += one.released
			result.ItemsSkipped += one.skipped
			s.logger.Info("租约已过期回收",
				zap.String("lease_id", lease.LeaseID),
				zap.String("evaluator_id", lease.EvaluatorID),
				zap.String("subject_code", lease.SubjectCode),
				zap.Int("items_released", one.released),
				zap.Int("items_skipped", one.skipped),
			)
		}

		// 本页全部为失败租约或不足一页，说明已扫完
		if !progressed || len(leases) < sweepPageSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	result.Duration = time.Since(start)
	metrics.LeasesReclaimed.Add(float64(result.LeasesReclaimed))
	metrics.ItemsReleased.Add(float64(result.ItemsReleased))
	metrics.SweepDuration.Observe(result.Duration.Seconds())

	if result.LeasesReclaimed > 0 || result.LeasesFailed > 0 {
		s.logger.Info("过期回收完成",
			zap.Int("leases_reclaimed", result.LeasesReclaimed),
			zap.Int("items_released", result.ItemsReleased),
			zap.Int("items_skipped", result.ItemsSkipped),
			zap.Int("leases_failed", result.LeasesFailed),
			zap.Duration("duration", result.Duration),
		)
	}
	return result, nil
}

// leaseReclaim 单个租约的回收结果
type leaseReclaim struct {
	reclaimed bool
	released  int
	skipped   int
}

// reclaimLease 在事务 tx 内回收单个过期租约
// 租约已完成或已被延期时 reclaimed = false 且不做任何修改
func reclaimLease(ctx context.Context, tx *repository.Repository, lease *model.Lease, now time.Time) (leaseReclaim, error) {
	var out leaseReclaim

	affected, err := tx.Lease.Expire(ctx, lease.LeaseID, now)
	if err != nil {
		return out, err
	}
	if affected == 0 {
		return out, nil
	}
	out.reclaimed = true

	entries, err := tx.Ledger.ListOpenByLease(ctx, lease.LeaseID)
	if err != nil {
		return out, err
	}
	for i := range entries {
		deleted, err := tx.Ledger.DeleteOpen(ctx, entries[i].EntryID)
		if err != nil {
			return out, err
		}
		if deleted == 0 {
			out.skipped++
			continue
		}
		released, err := tx.WorkItem.Release(ctx, entries[i].Barcode)
		if err != nil {
			return out, err
		}
		if released == 0 {
			out.skipped++
			continue
		}
		out.released++
	}
	return out, nil
}
