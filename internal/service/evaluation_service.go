package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/model"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/pkg/clock"
	"osm-eval/backend/pkg/metrics"
)

// ── 评分模块业务错误 ──

var (
	ErrAlreadyEvaluated   = errors.New("该答卷已评分，不可重复提交")
	ErrWorkItemNotFound   = errors.New("答卷不存在")
	ErrEvaluationNotFound = errors.New("评分记录不存在")
	ErrInvalidEvaluation  = errors.New("评分数据无效")
)

// 提交后所属批次的状态
const (
	BatchStatusActive    = "active"    // 批次内仍有未完成答卷
	BatchStatusCompleted = "completed" // 本次提交完成了整个批次
	BatchStatusExpired   = "expired"   // 批次已过期（含已被回收）
	BatchStatusUntracked = "untracked" // 未找到对应台账
)

// CommitInput 评分提交入参；批注为渲染层提交的原始字节
type CommitInput struct {
	Barcode     string
	EvaluatorID string
	Score       float64
	MaxScore    float64
	Annotations []byte
	Overlay     []byte
}

// EvaluationService 评分提交业务接口
//
// 设计说明：
//   - 评分记录、批注记录、台账、答卷状态、批次完成在同一事务内写入，任一步失败全部回滚
//   - 每份答卷只有一条评分记录，重复提交返回 ErrAlreadyEvaluated，不覆盖
//   - 找不到提交人的未完成台账时记警告，提交照常生效；答卷仍挂在他人台账上时一并关闭
type EvaluationService interface {
	Commit(ctx context.Context, in *CommitInput) (*dto.CommitEvaluationResponse, error)
	GetEvaluation(ctx context.Context, barcode string) (*dto.EvaluationResponse, error)
}

type evaluationService struct {
	repo   *repository.Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewEvaluationService 创建 EvaluationService 实例
func NewEvaluationService(repo *repository.Repository, clk clock.Clock, logger *zap.Logger) EvaluationService {
	return &evaluationService{repo: repo, clock: clk, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Commit — 评分 + 批注 + 台账 + 答卷 + 批次，一次提交
// ════════════════════════════════════════════════════════════

func (s *evaluationService) Commit(ctx context.Context, in *CommitInput) (*dto.CommitEvaluationResponse, error) {
	if err := validateCommit(in); err != nil {
		return nil, err
	}

	var resp *dto.CommitEvaluationResponse
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		now := s.clock.Now()

		// 1. 答卷存在且未评分
		if _, err := tx.WorkItem.GetByBarcode(ctx, in.Barcode); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWorkItemNotFound
			}
			return err
		}
		exists, err := tx.Evaluation.Exists(ctx, in.Barcode)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyEvaluated
		}

		// 2. 评分与批注
		record := &model.EvaluationRecord{
			RecordID:    uuid.New().String(),
			Barcode:     in.Barcode,
			Score:       in.Score,
			MaxScore:    in.MaxScore,
			EvaluatorID: in.EvaluatorID,
			EvaluatedAt: now,
		}
		if err := tx.Evaluation.Create(ctx, record); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyEvaluated
			}
			return err
		}
		annotation := &model.AnnotationRecord{
			RecordID:    uuid.New().String(),
			Barcode:     in.Barcode,
			Annotations: in.Annotations,
			Overlay:     in.Overlay,
			CreatedAt:   now,
		}
		if err := tx.Evaluation.CreateAnnotation(ctx, annotation); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyEvaluated
			}
			return err
		}

		// 3. 台账置完成
		status := BatchStatusUntracked
		var lease *model.Lease
		entry, err := tx.Ledger.FindOpen(ctx, in.Barcode, in.EvaluatorID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			checked, err := tx.Ledger.MarkChecked(ctx, entry.EntryID, now)
			if err != nil {
				return err
			}
			if checked > 0 {
				lease, err = tx.Lease.GetByID(ctx, entry.LeaseID)
				if err != nil {
					return err
				}
			}
		}
		if lease == nil {
			if err := s.settleUntracked(ctx, tx, in, now); err != nil {
				return err
			}
		}

		// 4. 答卷置已批阅
		if _, err := tx.WorkItem.MarkChecked(ctx, in.Barcode); err != nil {
			return err
		}

		// 5. 批次完成判定
		if lease != nil {
			status, err = s.settleLease(ctx, tx, lease, now)
			if err != nil {
				return err
			}
		}

		resp = &dto.CommitEvaluationResponse{
			Barcode:     in.Barcode,
			BatchStatus: status,
			EvaluatedAt: dto.FormatTime(now),
		}
		if lease != nil {
			resp.LeaseID = lease.LeaseID
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyEvaluated) && !errors.Is(err, ErrWorkItemNotFound) {
			s.logger.Error("提交评分失败",
				zap.String("barcode", in.Barcode),
				zap.String("evaluator_id", in.EvaluatorID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	metrics.Commits.WithLabelValues(resp.BatchStatus).Inc()
	if resp.BatchStatus == BatchStatusCompleted {
		s.logger.Info("批次已全部完成",
			zap.String("lease_id", resp.LeaseID),
			zap.String("evaluator_id", in.EvaluatorID),
		)
	}
	return resp, nil
}

// settleLease 批次无未完成台账时置为完成，返回批次状态
func (s *evaluationService) settleLease(ctx context.Context, tx *repository.Repository, lease *model.Lease, now time.Time) (string, error) {
	if !lease.IsActive {
		return BatchStatusExpired, nil
	}
	open, err := tx.Ledger.CountOpenByLease(ctx, lease.LeaseID)
	if err != nil {
		return "", err
	}
	if open == 0 {
		completed, err := tx.Lease.Complete(ctx, lease.LeaseID, now)
		if err != nil {
			return "", err
		}
		// 读取租约之后已被回收任务置为失效
		if completed == 0 {
			return BatchStatusExpired, nil
		}
		return BatchStatusCompleted, nil
	}
	if !lease.IsLive(now) {
		return BatchStatusExpired, nil
	}
	return BatchStatusActive, nil
}

// settleUntracked 提交人名下没有该答卷的未完成台账：记录一致性警告，
// 若答卷仍挂在他人台账上，则一并置完成并结算持有人的批次
func (s *evaluationService) settleUntracked(ctx context.Context, tx *repository.Repository, in *CommitInput, now time.Time) error {
	metrics.ConsistencyWarnings.Inc()
	fields := []zap.Field{
		zap.String("barcode", in.Barcode),
		zap.String("evaluator_id", in.EvaluatorID),
	}

	holder, err := tx.Ledger.FindOpenByBarcode(ctx, in.Barcode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("一致性警告: 提交人无该答卷的未完成台账，评分仍已记录", fields...)
		return nil
	}
	if err != nil {
		return err
	}
	fields = append(fields,
		zap.String("holder_evaluator_id", holder.EvaluatorID),
		zap.String("holder_lease_id", holder.LeaseID),
	)
	s.logger.Warn("一致性警告: 提交人无该答卷的未完成台账，评分仍已记录", fields...)

	checked, err := tx.Ledger.MarkChecked(ctx, holder.EntryID, now)
	if err != nil || checked == 0 {
		return err
	}
	holderLease, err := tx.Lease.GetByID(ctx, holder.LeaseID)
	if err != nil {
		return err
	}
	status, err := s.settleLease(ctx, tx, holderLease, now)
	if err != nil {
		return err
	}
	s.logger.Info("已关闭持有人台账",
		zap.String("barcode", in.Barcode),
		zap.String("holder_lease_id", holder.LeaseID),
		zap.String("holder_batch_status", status),
	)
	return nil
}

func validateCommit(in *CommitInput) error {
	if in.Barcode == "" || in.EvaluatorID == "" {
		return ErrInvalidEvaluation
	}
	if len(in.Annotations) == 0 {
		return ErrInvalidEvaluation
	}
	if in.MaxScore <= 0 || in.Score < 0 || in.Score > in.MaxScore {
		return ErrInvalidEvaluation
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// GetEvaluation
// ════════════════════════════════════════════════════════════

func (s *evaluationService) GetEvaluation(ctx context.Context, barcode string) (*dto.EvaluationResponse, error) {
	record, err := s.repo.Evaluation.GetByBarcode(ctx, barcode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEvaluationNotFound
		}
		s.logger.Error("查询评分记录失败", zap.String("barcode", barcode), zap.Error(err))
		return nil, err
	}

	resp := &dto.EvaluationResponse{
		RecordID:     record.RecordID,
		Barcode:      record.Barcode,
		Score:        record.Score,
		MaxScore:     record.MaxScore,
		EvaluatorID:  record.EvaluatorID,
		EvaluatedAt:  dto.FormatTime(record.EvaluatedAt),
		RejectReason: record.RejectReason,
		IsVoided:     record.IsVoided,
	}

	annotation, err := s.repo.Evaluation.GetAnnotation(ctx, barcode)
	switch {
	case err == nil:
		resp.Annotations = annotation.Annotations
		resp.Overlay = annotation.Overlay
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Warn("评分记录缺少批注", zap.String("barcode", barcode))
	default:
		s.logger.Error("查询批注失败", zap.String("barcode", barcode), zap.Error(err))
		return nil, err
	}
	return resp, nil
}
