package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"osm-eval/backend/internal/model"
)

// EntitlementFilter 评阅资格列表筛选条件
type EntitlementFilter struct {
	EvaluatorID string
	SubjectCode string
	ExamName    string
	ActiveOnly  bool
}

// EntitlementRepository 评阅资格数据访问接口
type EntitlementRepository interface {
	Create(ctx context.Context, e *model.Entitlement) error
	GetByID(ctx context.Context, id string) (*model.Entitlement, error)
	GetByTriple(ctx context.Context, evaluatorID, subjectCode, examName string) (*model.Entitlement, error)
	// FindActive 查找有效资格并加共享锁，防止领取过程中资格被并发停用
	FindActive(ctx context.Context, evaluatorID, subjectCode, examName string) (*model.Entitlement, error)
	Reactivate(ctx context.Context, id, grantedBy string) error
	Deactivate(ctx context.Context, id, revokedBy string, at time.Time) (int64, error)
	List(ctx context.Context, filter EntitlementFilter, offset, limit int) ([]model.Entitlement, int64, error)
}

type entitlementRepo struct {
	db *gorm.DB
}

func NewEntitlementRepo(db *gorm.DB) EntitlementRepository {
	return &entitlementRepo{db: db}
}

func (r *entitlementRepo) Create(ctx context.Context, e *model.Entitlement) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *entitlementRepo) GetByID(ctx context.Context, id string) (*model.Entitlement, error) {
	var e model.Entitlement
	err := r.db.WithContext(ctx).
		Where("entitlement_id = ?", id).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *entitlementRepo) GetByTriple(ctx context.Context, evaluatorID, subjectCode, examName string) (*model.Entitlement, error) {
	var e model.Entitlement
	err := r.db.WithContext(ctx).
		Where("evaluator_id = ? AND subject_code = ? AND exam_name = ?", evaluatorID, subjectCode, examName).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *entitlementRepo) FindActive(ctx context.Context, evaluatorID, subjectCode, examName string) (*model.Entitlement, error) {
	var e model.Entitlement
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("evaluator_id = ? AND subject_code = ? AND exam_name = ? AND is_active = ?", evaluatorID, subjectCode, examName, true).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *entitlementRepo) Reactivate(ctx context.Context, id, grantedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Entitlement{}).
		Where("entitlement_id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  true,
			"granted_by": grantedBy,
			"revoked_by": nil,
			"revoked_at": nil,
		}).Error
}

func (r *entitlementRepo) Deactivate(ctx context.Context, id, revokedBy string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Entitlement{}).
		Where("entitlement_id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"revoked_by": revokedBy,
			"revoked_at": at,
		})
	return result.RowsAffected, result.Error
}

func (r *entitlementRepo) List(ctx context.Context, filter EntitlementFilter, offset, limit int) ([]model.Entitlement, int64, error) {
	var list []model.Entitlement
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Entitlement{})
	if filter.EvaluatorID != "" {
		db = db.Where("evaluator_id = ?", filter.EvaluatorID)
	}
	if filter.SubjectCode != "" {
		db = db.Where("subject_code = ?", filter.SubjectCode)
	}
	if filter.ExamName != "" {
		db = db.Where("exam_name = ?", filter.ExamName)
	}
	if filter.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&list).Error
	return list, total, err
}
