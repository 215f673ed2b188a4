package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"osm-eval/backend/internal/model"
)

// ReevaluationFilter 复评列表筛选条件
type ReevaluationFilter struct {
	Status              string
	Barcode             string
	AssignedEvaluatorID string
}

// ReevaluationRepository 复评申请数据访问接口
type ReevaluationRepository interface {
	Create(ctx context.Context, req *model.ReevaluationRequest) error
	GetByID(ctx context.Context, id string) (*model.ReevaluationRequest, error)
	// HasOpen 该答卷是否存在未完成（pending/assigned）的复评
	HasOpen(ctx context.Context, barcode string) (bool, error)
	// Assign 条件分配，仅命中 pending 状态
	Assign(ctx context.Context, id, evaluatorID string, at time.Time) (int64, error)
	// Complete 条件提交，仅命中 assigned 且分配给该评阅员的申请
	Complete(ctx context.Context, id, evaluatorID string, score float64, remarks string, at time.Time) (int64, error)
	List(ctx context.Context, filter ReevaluationFilter, offset, limit int) ([]model.ReevaluationRequest, int64, error)
	// LatestCompletedByBarcodes 每份答卷最近一次完成的复评
	LatestCompletedByBarcodes(ctx context.Context, barcodes []string) (map[string]model.ReevaluationRequest, error)
}

type reevaluationRepo struct {
	db *gorm.DB
}

func NewReevaluationRepo(db *gorm.DB) ReevaluationRepository {
	return &reevaluationRepo{db: db}
}

func (r *reevaluationRepo) Create(ctx context.Context, req *model.ReevaluationRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *reevaluationRepo) GetByID(ctx context.Context, id string) (*model.ReevaluationRequest, error) {
	var req model.ReevaluationRequest
	err := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *reevaluationRepo) HasOpen(ctx context.Context, barcode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ReevaluationRequest{}).
		Where("barcode = ? AND status IN ?", barcode,
			[]string{model.ReevaluationPending, model.ReevaluationAssigned}).
		Count(&count).Error
	return count > 0, err
}

func (r *reevaluationRepo) Assign(ctx context.Context, id, evaluatorID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ReevaluationRequest{}).
		Where("request_id = ? AND status = ?", id, model.ReevaluationPending).
		Updates(map[string]interface{}{
			"status":                model.ReevaluationAssigned,
			"assigned_evaluator_id": evaluatorID,
			"assigned_at":           at,
		})
	return result.RowsAffected, result.Error
}

func (r *reevaluationRepo) Complete(ctx context.Context, id, evaluatorID string, score float64, remarks string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ReevaluationRequest{}).
		Where("request_id = ? AND status = ? AND assigned_evaluator_id = ?", id, model.ReevaluationAssigned, evaluatorID).
		Updates(map[string]interface{}{
			"status":            model.ReevaluationCompleted,
			"reevaluated_score": score,
			"remarks":           remarks,
			"submitted_at":      at,
		})
	return result.RowsAffected, result.Error
}

func (r *reevaluationRepo) List(ctx context.Context, filter ReevaluationFilter, offset, limit int) ([]model.ReevaluationRequest, int64, error) {
	var list []model.ReevaluationRequest
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ReevaluationRequest{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Barcode != "" {
		db = db.Where("barcode = ?", filter.Barcode)
	}
	if filter.AssignedEvaluatorID != "" {
		db = db.Where("assigned_evaluator_id = ?", filter.AssignedEvaluatorID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&list).Error
	return list, total, err
}

func (r *reevaluationRepo) LatestCompletedByBarcodes(ctx context.Context, barcodes []string) (map[string]model.ReevaluationRequest, error) {
	result := make(map[string]model.ReevaluationRequest)
	if len(barcodes) == 0 {
		return result, nil
	}

	var list []model.ReevaluationRequest
	err := r.db.WithContext(ctx).
		Where("barcode IN ? AND status = ?", barcodes, model.ReevaluationCompleted).
		Order("submitted_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	// 升序遍历，后写覆盖先写，保留最近一次
	for _, req := range list {
		result[req.Barcode] = req
	}
	return result, nil
}
