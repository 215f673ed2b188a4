package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/model"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/pkg/clock"
	"osm-eval/backend/pkg/jwt"
)

// ── 复评模块业务错误 ──

var (
	ErrNotYetEvaluated      = errors.New("该答卷尚未评分，无法发起复评")
	ErrReevaluationNotFound = errors.New("复评申请不存在")
	ErrReevaluationOpen     = errors.New("该答卷已有未完成的复评")
	ErrAlreadyAssigned      = errors.New("复评申请已分配")
	ErrNotInAssignedState   = errors.New("复评申请不在已分配状态")
	ErrNotAssignedToYou     = errors.New("该复评未分配给你")
)

// ReevaluationService 复评业务接口
//
// 设计说明：
//   - 状态单向流转 pending → assigned → completed，无自动过期
//   - 每次迁移都是带前置状态的条件更新，并发时只有一方成功
//   - 原评分记录始终不变，复评结果单独记录
type ReevaluationService interface {
	CreateRequest(ctx context.Context, req *dto.CreateReevaluationRequest, callerID string) (*dto.ReevaluationResponse, error)
	Assign(ctx context.Context, requestID string, req *dto.AssignReevaluationRequest) (*dto.ReevaluationResponse, error)
	Submit(ctx context.Context, requestID, evaluatorID string, req *dto.SubmitReevaluationRequest) (*dto.ReevaluationResponse, error)
	// List 评阅员只能看到分配给自己的复评
	List(ctx context.Context, req *dto.ReevaluationListRequest, callerID, callerRole string) ([]dto.ReevaluationResponse, int64, error)
}

type reevaluationService struct {
	repo   *repository.Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewReevaluationService 创建 ReevaluationService 实例
func NewReevaluationService(repo *repository.Repository, clk clock.Clock, logger *zap.Logger) ReevaluationService {
	return &reevaluationService{repo: repo, clock: clk, logger: logger}
}

func (s *reevaluationService) CreateRequest(ctx context.Context, req *dto.CreateReevaluationRequest, callerID string) (*dto.ReevaluationResponse, error) {
	record, err := s.repo.Evaluation.GetByBarcode(ctx, req.Barcode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotYetEvaluated
		}
		s.logger.Error("查询评分记录失败", zap.String("barcode", req.Barcode), zap.Error(err))
		return nil, err
	}

	now := s.clock.Now()
	request := &model.ReevaluationRequest{
		RequestID:   uuid.New().String(),
		Barcode:     req.Barcode,
		Reason:      req.Reason,
		Status:      model.ReevaluationPending,
		RequestedBy: callerID,
		AuditModel:  model.AuditModel{CreatedAt: now, UpdatedAt: now},
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		open, err := tx.Reevaluation.HasOpen(ctx, req.Barcode)
		if err != nil {
			return err
		}
		if open {
			return ErrReevaluationOpen
		}
		if err := tx.Reevaluation.Create(ctx, request); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrReevaluationOpen
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrReevaluationOpen) {
			s.logger.Error("创建复评申请失败", zap.String("barcode", req.Barcode), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("复评申请已创建",
		zap.String("request_id", request.RequestID),
		zap.String("barcode", request.Barcode),
		zap.String("requested_by", callerID),
	)
	return toReevaluationResponse(request, record), nil
}

func (s *reevaluationService) Assign(ctx context.Context, requestID string, req *dto.AssignReevaluationRequest) (*dto.ReevaluationResponse, error) {
	if _, err := s.getRequest(ctx, s.repo, requestID); err != nil {
		return nil, err
	}

	affected, err := s.repo.Reevaluation.Assign(ctx, requestID, req.EvaluatorID, s.clock.Now())
	if err != nil {
		s.logger.Error("分配复评失败", zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}
	if affected == 0 {
		return nil, ErrAlreadyAssigned
	}

	s.logger.Info("复评已分配",
		zap.String("request_id", requestID),
		zap.String("evaluator_id", req.EvaluatorID),
	)
	return s.loadResponse(ctx, requestID)
}

func (s *reevaluationService) Submit(ctx context.Context, requestID, evaluatorID string, req *dto.SubmitReevaluationRequest) (*dto.ReevaluationResponse, error) {
	if req.Score == nil {
		return nil, ErrInvalidEvaluation
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		request, err := s.getRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if request.Status != model.ReevaluationAssigned {
			return ErrNotInAssignedState
		}
		if request.AssignedEvaluatorID == nil || *request.AssignedEvaluatorID != evaluatorID {
			return ErrNotAssignedToYou
		}

		// 复评分数以原评分的满分为上限
		record, err := tx.Evaluation.GetByBarcode(ctx, request.Barcode)
		if err != nil {
			return err
		}
		if *req.Score < 0 || *req.Score > record.MaxScore {
			return ErrInvalidEvaluation
		}

		affected, err := tx.Reevaluation.Complete(ctx, requestID, evaluatorID, *req.Score, req.Remarks, s.clock.Now())
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotInAssignedState
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("复评已提交",
		zap.String("request_id", requestID),
		zap.String("evaluator_id", evaluatorID),
		zap.Float64("score", *req.Score),
	)
	return s.loadResponse(ctx, requestID)
}

func (s *reevaluationService) List(ctx context.Context, req *dto.ReevaluationListRequest, callerID, callerRole string) ([]dto.ReevaluationResponse, int64, error) {
	filter := repository.ReevaluationFilter{
		Status:              req.Status,
		Barcode:             req.Barcode,
		AssignedEvaluatorID: req.AssignedEvaluatorID,
	}
	if callerRole != jwt.RoleAdmin {
		filter.AssignedEvaluatorID = callerID
	}

	list, total, err := s.repo.Reevaluation.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询复评列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ReevaluationResponse, 0, len(list))
	for i := range list {
		result = append(result, *toReevaluationResponse(&list[i], nil))
	}
	return result, total, nil
}

// ── 内部方法 ──

func (s *reevaluationService) getRequest(ctx context.Context, repo *repository.Repository, requestID string) (*model.ReevaluationRequest, error) {
	request, err := repo.Reevaluation.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReevaluationNotFound
		}
		s.logger.Error("查询复评申请失败", zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}
	return request, nil
}

func (s *reevaluationService) loadResponse(ctx context.Context, requestID string) (*dto.ReevaluationResponse, error) {
	request, err := s.getRequest(ctx, s.repo, requestID)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.Evaluation.GetByBarcode(ctx, request.Barcode)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询评分记录失败", zap.String("barcode", request.Barcode), zap.Error(err))
		return nil, err
	}
	return toReevaluationResponse(request, record), nil
}

func toReevaluationResponse(r *model.ReevaluationRequest, original *model.EvaluationRecord) *dto.ReevaluationResponse {
	resp := &dto.ReevaluationResponse{
		RequestID:           r.RequestID,
		Barcode:             r.Barcode,
		Reason:              r.Reason,
		Status:              r.Status,
		RequestedBy:         r.RequestedBy,
		AssignedEvaluatorID: r.AssignedEvaluatorID,
		AssignedAt:          dto.FormatTimePtr(r.AssignedAt),
		ReevaluatedScore:    r.ReevaluatedScore,
		Remarks:             r.Remarks,
		SubmittedAt:         dto.FormatTimePtr(r.SubmittedAt),
		CreatedAt:           dto.FormatTime(r.CreatedAt),
	}
	if original != nil {
		score, maxScore := original.Score, original.MaxScore
		resp.OriginalScore = &score
		resp.MaxScore = &maxScore
	}
	return resp
}
