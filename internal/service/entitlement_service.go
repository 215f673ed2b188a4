package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/model"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/pkg/clock"
	pkgerrors "osm-eval/backend/pkg/errors"
)

// ── 评阅资格业务错误 ──

var (
	ErrEntitlementNotFound = errors.New("评阅资格不存在")
)

// EntitlementService 评阅资格业务接口
// 资格只停用不删除；停用不影响已领取的批次
type EntitlementService interface {
	// Grant 授予资格；已存在则重新启用，幂等
	Grant(ctx context.Context, req *dto.GrantEntitlementRequest, callerID string) (*dto.EntitlementResponse, error)
	Revoke(ctx context.Context, id, callerID string) error
	List(ctx context.Context, req *dto.EntitlementListRequest) ([]dto.EntitlementResponse, int64, error)
}

type entitlementService struct {
	repo   *repository.Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewEntitlementService 创建 EntitlementService 实例
func NewEntitlementService(repo *repository.Repository, clk clock.Clock, logger *zap.Logger) EntitlementService {
	return &entitlementService{repo: repo, clock: clk, logger: logger}
}

func (s *entitlementService) Grant(ctx context.Context, req *dto.GrantEntitlementRequest, callerID string) (*dto.EntitlementResponse, error) {
	var granted *model.Entitlement
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		existing, err := tx.Entitlement.GetByTriple(ctx, req.EvaluatorID, req.SubjectCode, req.ExamName)
		switch {
		case err == nil:
			if !existing.IsActive {
				if err := tx.Entitlement.Reactivate(ctx, existing.EntitlementID, callerID); err != nil {
					return err
				}
			}
			granted, err = tx.Entitlement.GetByID(ctx, existing.EntitlementID)
			return err
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		now := s.clock.Now()
		granted = &model.Entitlement{
			EntitlementID: uuid.New().String(),
			EvaluatorID:   req.EvaluatorID,
			SubjectCode:   req.SubjectCode,
			ExamName:      req.ExamName,
			IsActive:      true,
			GrantedBy:     callerID,
			AuditModel:    model.AuditModel{CreatedAt: now, UpdatedAt: now},
		}
		if err := tx.Entitlement.Create(ctx, granted); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: entitlement evaluator=%s", pkgerrors.ErrTransactionConflict, req.EvaluatorID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error("授予评阅资格失败",
			zap.String("evaluator_id", req.EvaluatorID),
			zap.String("subject_code", req.SubjectCode),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("评阅资格已授予",
		zap.String("entitlement_id", granted.EntitlementID),
		zap.String("evaluator_id", granted.EvaluatorID),
		zap.String("subject_code", granted.SubjectCode),
		zap.String("exam_name", granted.ExamName),
		zap.String("granted_by", callerID),
	)
	return toEntitlementResponse(granted), nil
}

func (s *entitlementService) Revoke(ctx context.Context, id, callerID string) error {
	if _, err := s.repo.Entitlement.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEntitlementNotFound
		}
		s.logger.Error("查询评阅资格失败", zap.String("entitlement_id", id), zap.Error(err))
		return err
	}

	affected, err := s.repo.Entitlement.Deactivate(ctx, id, callerID, s.clock.Now())
	if err != nil {
		s.logger.Error("停用评阅资格失败", zap.String("entitlement_id", id), zap.Error(err))
		return err
	}
	if affected > 0 {
		s.logger.Info("评阅资格已停用", zap.String("entitlement_id", id), zap.String("revoked_by", callerID))
	}
	return nil
}

func (s *entitlementService) List(ctx context.Context, req *dto.EntitlementListRequest) ([]dto.EntitlementResponse, int64, error) {
	filter := repository.EntitlementFilter{
		EvaluatorID: req.EvaluatorID,
		SubjectCode: req.SubjectCode,
		ExamName:    req.ExamName,
		ActiveOnly:  req.ActiveOnly,
	}
	list, total, err := s.repo.Entitlement.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询评阅资格列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.EntitlementResponse, 0, len(list))
	for i := range list {
		result = append(result, *toEntitlementResponse(&list[i]))
	}
	return result, total, nil
}

func toEntitlementResponse(e *model.Entitlement) *dto.EntitlementResponse {
	return &dto.EntitlementResponse{
		EntitlementID: e.EntitlementID,
		EvaluatorID:   e.EvaluatorID,
		SubjectCode:   e.SubjectCode,
		ExamName:      e.ExamName,
		IsActive:      e.IsActive,
		GrantedBy:     e.GrantedBy,
		RevokedBy:     e.RevokedBy,
		RevokedAt:     dto.FormatTimePtr(e.RevokedAt),
		CreatedAt:     dto.FormatTime(e.CreatedAt),
		UpdatedAt:     dto.FormatTime(e.UpdatedAt),
	}
}
