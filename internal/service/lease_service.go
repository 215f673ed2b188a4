package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"osm-eval/backend/config"
	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/model"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/pkg/clock"
	pkgerrors "osm-eval/backend/pkg/errors"
	"osm-eval/backend/pkg/metrics"
)

// ── 租约模块业务错误 ──

var (
	ErrNotEntitled     = errors.New("无该科目评阅资格")
	ErrNoWorkAvailable = errors.New("该科目暂无可分配答卷")
	ErrNotLeased       = errors.New("该答卷不在你的有效批次中")
)

// LeaseService 批次租约业务接口
//
// 设计说明：
//   - 领取、延期均在单个事务内完成，并发安全由数据库行锁与部分唯一索引保证
//   - 同一评阅员同一科目同时只有一个有效租约，重复请求返回已有租约
//   - 到期时间统一由注入的 Clock 计算
type LeaseService interface {
	// RequestLease 领取一批答卷
	RequestLease(ctx context.Context, evaluatorID string, req *dto.RequestLeaseRequest) (*dto.LeaseResponse, error)
	// GetActiveLease 查询当前有效租约；subjectCode 为空时不限科目
	GetActiveLease(ctx context.Context, evaluatorID, subjectCode string) (*dto.ActiveLeaseResponse, error)
	// RenewOnStart 开始评阅某份答卷，租约顺延一个完整周期
	RenewOnStart(ctx context.Context, evaluatorID, barcode string) (*dto.StartItemResponse, error)
	// Stats 评阅员台账统计
	Stats(ctx context.Context, evaluatorID, subjectCode string) (*dto.LeaseStatsResponse, error)
}

type leaseService struct {
	cfg    *config.LeaseConfig
	repo   *repository.Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewLeaseService 创建 LeaseService 实例
func NewLeaseService(cfg *config.LeaseConfig, repo *repository.Repository, clk clock.Clock, logger *zap.Logger) LeaseService {
	return &leaseService{cfg: cfg, repo: repo, clock: clk, logger: logger}
}

// ════════════════════════════════════════════════════════════
// RequestLease — 资格校验 → 复用有效租约 → 锁定答卷 → 建租约与台账
// ════════════════════════════════════════════════════════════

func (s *leaseService) RequestLease(ctx context.Context, evaluatorID string, req *dto.RequestLeaseRequest) (*dto.LeaseResponse, error) {
	batchSize := s.batchSize(req.BatchSize)

	var resp *dto.LeaseResponse
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		resp = nil
		now := s.clock.Now()

		// 1. 资格校验（共享锁，防止领取过程中资格被停用）
		if _, err := tx.Entitlement.FindActive(ctx, evaluatorID, req.SubjectCode, req.ExamName); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotEntitled
			}
			return err
		}

		// 2. 已有租约：未过期直接返回；已过期但尚未回收的先就地回收
		existing, err := tx.Lease.FindActive(ctx, evaluatorID, req.SubjectCode)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if existing != nil {
			if existing.IsLive(now) {
				resp, err = s.buildLeaseResponse(ctx, tx, existing, true)
				return err
			}
			result, err := reclaimLease(ctx, tx, existing, now)
			if err != nil {
				return err
			}
			if !result.reclaimed {
				// 恰好处于到期时刻，既不算有效也不可回收，按原租约返回
				resp, err = s.buildLeaseResponse(ctx, tx, existing, true)
				return err
			}
			s.logger.Info("领取前回收本人过期租约",
				zap.String("lease_id", existing.LeaseID),
				zap.String("evaluator_id", evaluatorID),
				zap.Int("items_released", result.released),
			)
		}

		// 3. 锁定最早入库的未分配答卷
		items, err := tx.WorkItem.LockUnassigned(ctx, req.SubjectCode, req.ExamName, batchSize)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrNoWorkAvailable
		}

		// 4. 创建租约
		lease := &model.Lease{
			LeaseID:     uuid.New().String(),
			EvaluatorID: evaluatorID,
			SubjectCode: req.SubjectCode,
			ExamName:    req.ExamName,
			ItemCount:   len(items),
			IsActive:    true,
			ExpiresAt:   now.Add(s.cfg.Duration),
			CreatedAt:   now,
		}
		if err := tx.Lease.Create(ctx, lease); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// 同一评阅员的并发请求已先建好租约，重试后会走复用分支
				return fmt.Errorf("%w: lease evaluator=%s subject=%s", pkgerrors.ErrTransactionConflict, evaluatorID, req.SubjectCode)
			}
			return err
		}

		// 5. 条件标记已分配，行数不足说明被并发抢走
		barcodes := make([]string, len(items))
		for i := range items {
			barcodes[i] = items[i].Barcode
		}
		affected, err := tx.WorkItem.MarkAssigned(ctx, barcodes)
		if err != nil {
			return err
		}
		if affected != int64(len(barcodes)) {
			return fmt.Errorf("%w: 期望分配 %d 份，实际 %d 份", pkgerrors.ErrTransactionConflict, len(barcodes), affected)
		}

		// 6. 写台账
		entries := make([]model.LedgerEntry, len(items))
		for i := range items {
			entries[i] = model.LedgerEntry{
				EntryID:     uuid.New().String(),
				Barcode:     items[i].Barcode,
				LeaseID:     lease.LeaseID,
				EvaluatorID: evaluatorID,
				AssignedAt:  now,
			}
		}
		if err := tx.Ledger.BatchCreate(ctx, entries); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: ledger lease=%s", pkgerrors.ErrTransactionConflict, lease.LeaseID)
			}
			return err
		}

		resp = toLeaseResponse(lease, entries, false)
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrNotEntitled):
		metrics.LeasesGranted.WithLabelValues("not_entitled").Inc()
		return nil, err
	case errors.Is(err, ErrNoWorkAvailable):
		metrics.LeasesGranted.WithLabelValues("no_work").Inc()
		return nil, err
	default:
		metrics.LeasesGranted.WithLabelValues("error").Inc()
		s.logger.Error("领取批次失败",
			zap.String("evaluator_id", evaluatorID),
			zap.String("subject_code", req.SubjectCode),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.Reused {
		metrics.LeasesGranted.WithLabelValues("reused").Inc()
		return resp, nil
	}

	metrics.LeasesGranted.WithLabelValues("created").Inc()
	metrics.ItemsLeased.Add(float64(resp.ItemCount))
	s.logger.Info("批次已分配",
		zap.String("lease_id", resp.LeaseID),
		zap.String("evaluator_id", evaluatorID),
		zap.String("subject_code", req.SubjectCode),
		zap.Int("item_count", resp.ItemCount),
	)
	return resp, nil
}

// batchSize 缺省取默认值，超过上限截断
func (s *leaseService) batchSize(requested int) int {
	if requested <= 0 {
		return s.cfg.DefaultBatchSize
	}
	if requested > s.cfg.MaxBatchSize {
		return s.cfg.MaxBatchSize
	}
	return requested
}

// ════════════════════════════════════════════════════════════
// GetActiveLease
// ════════════════════════════════════════════════════════════

func (s *leaseService) GetActiveLease(ctx context.Context, evaluatorID, subjectCode string) (*dto.ActiveLeaseResponse, error) {
	lease, err := s.repo.Lease.FindLive(ctx, evaluatorID, subjectCode, s.clock.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.ActiveLeaseResponse{HasLease: false}, nil
		}
		s.logger.Error("查询有效租约失败", zap.String("evaluator_id", evaluatorID), zap.Error(err))
		return nil, err
	}

	resp, err := s.buildLeaseResponse(ctx, s.repo, lease, true)
	if err != nil {
		s.logger.Error("查询租约台账失败", zap.String("lease_id", lease.LeaseID), zap.Error(err))
		return nil, err
	}
	return &dto.ActiveLeaseResponse{HasLease: true, Lease: resp}, nil
}

// ════════════════════════════════════════════════════════════
// RenewOnStart
// ════════════════════════════════════════════════════════════

func (s *leaseService) RenewOnStart(ctx context.Context, evaluatorID, barcode string) (*dto.StartItemResponse, error) {
	var resp *dto.StartItemResponse
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		now := s.clock.Now()

		entry, err := tx.Ledger.FindOpen(ctx, barcode, evaluatorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotLeased
			}
			return err
		}

		// 已过期但尚未被回收的租约仍允许延期，与回收任务的竞争由其条件更新裁决
		expiresAt := now.Add(s.cfg.Duration)
		affected, err := tx.Lease.Extend(ctx, entry.LeaseID, expiresAt)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotLeased
		}

		if err := tx.Ledger.MarkStarted(ctx, entry.EntryID, now); err != nil {
			return err
		}

		resp = &dto.StartItemResponse{
			Barcode:   barcode,
			LeaseID:   entry.LeaseID,
			StartedAt: dto.FormatTime(now),
			ExpiresAt: dto.FormatTime(expiresAt),
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotLeased) {
			s.logger.Error("开始评阅失败",
				zap.String("evaluator_id", evaluatorID),
				zap.String("barcode", barcode),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return resp, nil
}

// ════════════════════════════════════════════════════════════
// Stats
// ════════════════════════════════════════════════════════════

func (s *leaseService) Stats(ctx context.Context, evaluatorID, subjectCode string) (*dto.LeaseStatsResponse, error) {
	counts, err := s.repo.Ledger.CountByEvaluator(ctx, evaluatorID, subjectCode)
	if err != nil {
		s.logger.Error("统计评阅台账失败", zap.String("evaluator_id", evaluatorID), zap.Error(err))
		return nil, err
	}
	return &dto.LeaseStatsResponse{
		Leased:  counts.Leased,
		Checked: counts.Checked,
		Pending: counts.Pending,
	}, nil
}

// ── 内部方法 ──

func (s *leaseService) buildLeaseResponse(ctx context.Context, repo *repository.Repository, lease *model.Lease, reused bool) (*dto.LeaseResponse, error) {
	entries, err := repo.Ledger.ListOpenByLease(ctx, lease.LeaseID)
	if err != nil {
		return nil, err
	}
	return toLeaseResponse(lease, entries, reused), nil
}

func toLeaseResponse(lease *model.Lease, entries []model.LedgerEntry, reused bool) *dto.LeaseResponse {
	items := make([]dto.LeaseItemResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.LeaseItemResponse{
			Barcode:    entries[i].Barcode,
			AssignedAt: dto.FormatTime(entries[i].AssignedAt),
			StartedAt:  dto.FormatTimePtr(entries[i].StartedAt),
		})
	}
	return &dto.LeaseResponse{
		LeaseID:     lease.LeaseID,
		EvaluatorID: lease.EvaluatorID,
		SubjectCode: lease.SubjectCode,
		ExamName:    lease.ExamName,
		ItemCount:   lease.ItemCount,
		IsActive:    lease.IsActive,
		ExpiresAt:   dto.FormatTime(lease.ExpiresAt),
		CreatedAt:   dto.FormatTime(lease.CreatedAt),
		Reused:      reused,
		Items:       items,
	}
}
