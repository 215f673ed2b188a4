package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"osm-eval/backend/internal/model"
)

// EvaluationExportRow 成绩导出行（评分记录 + 答卷元数据）
type EvaluationExportRow struct {
	Barcode      string
	SubjectCode  string
	ExamName     string
	BagID        string
	PackID       string
	Score        float64
	MaxScore     float64
	EvaluatorID  string
	EvaluatedAt  time.Time
	RejectReason *string
	IsVoided     bool
}

// EvaluationRepository 评分与批注记录数据访问接口
type EvaluationRepository interface {
	Exists(ctx context.Context, barcode string) (bool, error)
	Create(ctx context.Context, record *model.EvaluationRecord) error
	CreateAnnotation(ctx context.Context, record *model.AnnotationRecord) error
	GetByBarcode(ctx context.Context, barcode string) (*model.EvaluationRecord, error)
	GetAnnotation(ctx context.Context, barcode string) (*model.AnnotationRecord, error)
	ListForExport(ctx context.Context, subjectCode, examName string) ([]EvaluationExportRow, error)
}

type evaluationRepo struct {
	db *gorm.DB
}

func NewEvaluationRepo(db *gorm.DB) EvaluationRepository {
	return &evaluationRepo{db: db}
}

func (r *evaluationRepo) Exists(ctx context.Context, barcode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.EvaluationRecord{}).
		Where("barcode = ?", barcode).
		Count(&count).Error
	return count > 0, err
}

func (r *evaluationRepo) Create(ctx context.Context, record *model.EvaluationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *evaluationRepo) CreateAnnotation(ctx context.Context, record *model.AnnotationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *evaluationRepo) GetByBarcode(ctx context.Context, barcode string) (*model.EvaluationRecord, error) {
	var record model.EvaluationRecord
	err := r.db.WithContext(ctx).
		Where("barcode = ?", barcode).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *evaluationRepo) GetAnnotation(ctx context.Context, barcode string) (*model.AnnotationRecord, error) {
	var record model.AnnotationRecord
	err := r.db.WithContext(ctx).
		Where("barcode = ?", barcode).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *evaluationRepo) ListForExport(ctx context.Context, subjectCode, examName string) ([]EvaluationExportRow, error) {
	var rows []EvaluationExportRow
	db := r.db.WithContext(ctx).
		Table("evaluation_records AS er").
		Select("er.barcode, wi.subject_code, wi.exam_name, wi.bag_id, wi.pack_id, " +
			"er.score, er.max_score, er.evaluator_id, er.evaluated_at, er.reject_reason, er.is_voided").
		Joins("JOIN work_items AS wi ON wi.barcode = er.barcode")
	if subjectCode != "" {
		db = db.Where("wi.subject_code = ?", subjectCode)
	}
	if examName != "" {
		db = db.Where("wi.exam_name = ?", examName)
	}
	err := db.Order("wi.subject_code ASC, wi.id ASC").Scan(&rows).Error
	return rows, err
}
