package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"osm-eval/backend/internal/model"
)

// WorkItemFilter 答卷列表筛选条件
type WorkItemFilter struct {
	SubjectCode string
	ExamName    string
	BagID       string
	Assigned    *bool
	Checked     *bool
}

// SubjectProgress 科目评阅进度（按 work_items 计数得出）
type SubjectProgress struct {
	Total    int64
	Assigned int64
	Checked  int64
}

// WorkItemRepository 答卷池数据访问接口
type WorkItemRepository interface {
	// BatchInsert 批量入库，barcode 已存在的跳过；返回实际插入行数
	BatchInsert(ctx context.Context, items []model.WorkItem) (int64, error)
	GetByBarcode(ctx context.Context, barcode string) (*model.WorkItem, error)
	// LockUnassigned 按入库顺序锁定至多 limit 份未分配答卷（FOR UPDATE SKIP LOCKED）
	LockUnassigned(ctx context.Context, subjectCode, examName string, limit int) ([]model.WorkItem, error)
	// MarkAssigned 条件置 is_assigned = true，仅命中仍未分配的行
	MarkAssigned(ctx context.Context, barcodes []string) (int64, error)
	// Release 条件置 is_assigned = false，已批阅的答卷不会回池
	Release(ctx context.Context, barcode string) (int64, error)
	MarkChecked(ctx context.Context, barcode string) (int64, error)
	List(ctx context.Context, filter WorkItemFilter, offset, limit int) ([]model.WorkItem, int64, error)
	Progress(ctx context.Context, subjectCode, examName string) (*SubjectProgress, error)
}

type workItemRepo struct {
	db *gorm.DB
}

func NewWorkItemRepo(db *gorm.DB) WorkItemRepository {
	return &workItemRepo{db: db}
}

func (r *workItemRepo) BatchInsert(ctx context.Context, items []model.WorkItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "barcode"}},
			DoNothing: true,
		}).
		CreateInBatches(&items, 500)
	return result.RowsAffected, result.Error
}

func (r *workItemRepo) GetByBarcode(ctx context.Context, barcode string) (*model.WorkItem, error) {
	var item model.WorkItem
	err := r.db.WithContext(ctx).
		Where("barcode = ?", barcode).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *workItemRepo) LockUnassigned(ctx context.Context, subjectCode, examName string, limit int) ([]model.WorkItem, error) {
	var items []model.WorkItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("subject_code = ? AND exam_name = ? AND is_assigned = ? AND is_checked = ?", subjectCode, examName, false, false).
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *workItemRepo) MarkAssigned(ctx context.Context, barcodes []string) (int64, error) {
	if len(barcodes) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&model.WorkItem{}).
		Where("barcode IN ? AND is_assigned = ? AND is_checked = ?", barcodes, false, false).
		Update("is_assigned", true)
	return result.RowsAffected, result.Error
}

func (r *workItemRepo) Release(ctx context.Context, barcode string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.WorkItem{}).
		Where("barcode = ? AND is_checked = ?", barcode, false).
		Update("is_assigned", false)
	return result.RowsAffected, result.Error
}

func (r *workItemRepo) MarkChecked(ctx context.Context, barcode string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.WorkItem{}).
		Where("barcode = ? AND is_checked = ?", barcode, false).
		Update("is_checked", true)
	return result.RowsAffected, result.Error
}

func (r *workItemRepo) List(ctx context.Context, filter WorkItemFilter, offset, limit int) ([]model.WorkItem, int64, error) {
	var items []model.WorkItem
	var total int64

	db := r.db.WithContext(ctx).Model(&model.WorkItem{})
	if filter.SubjectCode != "" {
		db = db.Where("subject_code = ?", filter.SubjectCode)
	}
	if filter.ExamName != "" {
		db = db.Where("exam_name = ?", filter.ExamName)
	}
	if filter.BagID != "" {
		db = db.Where("bag_id = ?", filter.BagID)
	}
	if filter.Assigned != nil {
		db = db.Where("is_assigned = ?", *filter.Assigned)
	}
	if filter.Checked != nil {
		db = db.Where("is_checked = ?", *filter.Checked)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("id ASC").
		Find(&items).Error
	return items, total, err
}

func (r *workItemRepo) Progress(ctx context.Context, subjectCode, examName string) (*SubjectProgress, error) {
	var p SubjectProgress
	db := r.db.WithContext(ctx).
		Model(&model.WorkItem{}).
		Select(
			"COUNT(*) AS total, " +
				"COALESCE(SUM(CASE WHEN is_assigned THEN 1 ELSE 0 END), 0) AS assigned, " +
				"COALESCE(SUM(CASE WHEN is_checked THEN 1 ELSE 0 END), 0) AS checked",
		).
		Where("subject_code = ?", subjectCode)
	if examName != "" {
		db = db.Where("exam_name = ?", examName)
	}
	if err := db.Scan(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
